package models

import (
	"encoding/json"
	"time"
)

// Address is a single mailbox participant.
type Address struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Email is the canonical mail document: the normalized, storable
// representation of one message. (account_id, message_id) is the primary
// identity; re-ingesting the same pair overwrites instead of duplicating.
type Email struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	AccountID  string    `gorm:"size:255;not null;uniqueIndex:idx_emails_account_message" json:"account_id"`
	MessageID  string    `gorm:"size:255;not null;uniqueIndex:idx_emails_account_message" json:"message_id"`
	FromName   string    `gorm:"size:255" json:"-"`
	FromAddr   string    `gorm:"size:255" json:"-"`
	ToAddrs    string    `gorm:"type:text" json:"-"` // JSON array of Address
	Subject    string    `gorm:"size:500" json:"subject"`
	Body       string    `gorm:"type:text" json:"body"`
	ReceivedAt time.Time `gorm:"index" json:"received_at"`
	Folder     string    `gorm:"size:100;index" json:"folder"`
	Category   string    `gorm:"size:50" json:"category,omitempty"` // empty until classified
	CreatedAt  time.Time `json:"-"`
}

// Folder values used by the ingestion pipeline.
const (
	FolderInbox = "INBOX"
	FolderSent  = "Sent"
	FolderSpam  = "Spam"
)

// From returns the sender as a structured address.
func (e *Email) From() Address {
	return Address{Name: e.FromName, Address: e.FromAddr}
}

// SetFrom stores a structured sender address.
func (e *Email) SetFrom(addr Address) {
	e.FromName = addr.Name
	e.FromAddr = addr.Address
}

// ToList decodes the stored recipient list. A column that fails to decode
// yields an empty list rather than an error; recipients are optional.
func (e *Email) ToList() []Address {
	if e.ToAddrs == "" {
		return []Address{}
	}
	var addrs []Address
	if err := json.Unmarshal([]byte(e.ToAddrs), &addrs); err != nil {
		return []Address{}
	}
	return addrs
}

// SetToList encodes and stores the recipient list.
func (e *Email) SetToList(addrs []Address) {
	if addrs == nil {
		addrs = []Address{}
	}
	data, err := json.Marshal(addrs)
	if err != nil {
		e.ToAddrs = "[]"
		return
	}
	e.ToAddrs = string(data)
}

// MarshalJSON renders the document in its wire shape, with from/to as
// structured addresses instead of the flattened storage columns.
func (e Email) MarshalJSON() ([]byte, error) {
	type wireDoc struct {
		AccountID  string    `json:"accountId"`
		MessageID  string    `json:"messageId"`
		From       Address   `json:"from"`
		To         []Address `json:"to"`
		Subject    string    `json:"subject"`
		Body       string    `json:"body"`
		ReceivedAt time.Time `json:"receivedAt"`
		Folder     string    `json:"folder"`
		Category   string    `json:"category,omitempty"`
	}
	return json.Marshal(wireDoc{
		AccountID:  e.AccountID,
		MessageID:  e.MessageID,
		From:       e.From(),
		To:         e.ToList(),
		Subject:    e.Subject,
		Body:       e.Body,
		ReceivedAt: e.ReceivedAt,
		Folder:     e.Folder,
		Category:   e.Category,
	})
}
