// Package classify assigns each ingested document one category from a
// closed label set, using an external language-model oracle whose free-text
// answer is never trusted as a valid label.
package classify

import "strings"

// Category is one member of the closed label set.
type Category string

const (
	CategoryInterested       Category = "Interested"
	CategoryNotInterested    Category = "Not Interested"
	CategoryMeetingBooked    Category = "Meeting Booked"
	CategoryMeetingCompleted Category = "Meeting Completed"
	CategorySpam             Category = "Spam"
	CategoryClosed           Category = "Closed"
)

// DefaultCategory is the fallback for unmatched or empty oracle output.
const DefaultCategory = CategoryNotInterested

// AlertCategory triggers the alert dispatcher when assigned.
const AlertCategory = CategoryInterested

// AllCategories returns the closed label set in prompt order.
func AllCategories() []Category {
	return []Category{
		CategoryInterested,
		CategoryNotInterested,
		CategoryMeetingBooked,
		CategoryMeetingCompleted,
		CategorySpam,
		CategoryClosed,
	}
}

// IsValid reports whether c is a member of the closed label set.
func (c Category) IsValid() bool {
	switch c {
	case CategoryInterested, CategoryNotInterested, CategoryMeetingBooked,
		CategoryMeetingCompleted, CategorySpam, CategoryClosed:
		return true
	}
	return false
}

// NormalizeLabel maps the oracle's free-text answer onto the closed label
// set by case-insensitive substring matching. Precedence matters: compound
// phrases are checked before the single tokens they contain, so
// "NOT interested" never matches Interested. Unmatched input falls back to
// DefaultCategory.
func NormalizeLabel(raw string) Category {
	upper := strings.ToUpper(raw)

	switch {
	case strings.Contains(upper, "NOT") && strings.Contains(upper, "INTERESTED"):
		return CategoryNotInterested
	case strings.Contains(upper, "INTERESTED"):
		return CategoryInterested
	case strings.Contains(upper, "MEETING") && strings.Contains(upper, "BOOKED"):
		return CategoryMeetingBooked
	case strings.Contains(upper, "MEETING") && strings.Contains(upper, "COMPLETED"):
		return CategoryMeetingCompleted
	case strings.Contains(upper, "SPAM"):
		return CategorySpam
	case strings.Contains(upper, "CLOSED"):
		return CategoryClosed
	default:
		return DefaultCategory
	}
}
