package classify

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestNormalizeLabel(t *testing.T) {
	cases := []struct {
		raw  string
		want Category
	}{
		{"Interested", CategoryInterested},
		{"interested", CategoryInterested},
		{"The sender seems Interested in the product.", CategoryInterested},
		{"I am NOT interested", CategoryNotInterested},
		{"Not Interested", CategoryNotInterested},
		{"not-interested", CategoryNotInterested},
		{"SPAM!!", CategorySpam},
		{"This looks like spam", CategorySpam},
		{"meeting booked next week", CategoryMeetingBooked},
		{"Meeting Booked", CategoryMeetingBooked},
		{"the meeting was completed", CategoryMeetingCompleted},
		{"Closed", CategoryClosed},
		{"deal is closed now", CategoryClosed},
		{"", DefaultCategory},
		{"no idea whatsoever", DefaultCategory},
		{"maybe later", DefaultCategory},
	}

	for _, tc := range cases {
		if got := NormalizeLabel(tc.raw); got != tc.want {
			t.Errorf("NormalizeLabel(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

// "not" anywhere alongside "interested" must win over the bare token.
func TestNormalizeLabelNegationPrecedence(t *testing.T) {
	inputs := []string{
		"NOT INTERESTED",
		"definitely not interested, stop emailing",
		"Interested? No. Not at all.",
	}
	for _, raw := range inputs {
		if got := NormalizeLabel(raw); got != CategoryNotInterested {
			t.Errorf("NormalizeLabel(%q) = %q, want %q", raw, got, CategoryNotInterested)
		}
	}
}

func TestProperty_NormalizeLabelAlwaysValid(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("normalized_label_is_member_of_closed_set", prop.ForAll(
		func(raw string) bool {
			return NormalizeLabel(raw).IsValid()
		},
		gen.AnyString(),
	))

	properties.Property("normalization_is_idempotent", prop.ForAll(
		func(raw string) bool {
			first := NormalizeLabel(raw)
			return NormalizeLabel(string(first)) == first
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestProperty_NormalizeLabelCaseInsensitive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("case_does_not_change_result", prop.ForAll(
		func(raw string) bool {
			return NormalizeLabel(strings.ToLower(raw)) == NormalizeLabel(strings.ToUpper(raw))
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestCategoryIsValid(t *testing.T) {
	for _, c := range AllCategories() {
		if !c.IsValid() {
			t.Errorf("AllCategories member %q reported invalid", c)
		}
	}
	if Category("Unknown").IsValid() {
		t.Error("Unknown category reported valid")
	}
	if Category("").IsValid() {
		t.Error("empty category reported valid")
	}
}
