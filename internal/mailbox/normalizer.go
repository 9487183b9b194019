package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/CoderParva/Onebox/internal/database/models"
	"github.com/CoderParva/Onebox/internal/services"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

var (
	// ErrEmptyMessage indicates an empty raw message
	ErrEmptyMessage = errors.New("empty message")
	// ErrMalformedMessage indicates a message neither parser could read
	ErrMalformedMessage = errors.New("malformed message")
)

// Normalizer transforms raw protocol messages into canonical mail
// documents. Parse failures produce no document and no side effects;
// missing optional fields default to empty values.
type Normalizer struct {
	logService *services.LogService
}

// NewNormalizer creates a new Normalizer instance
func NewNormalizer(logService *services.LogService) *Normalizer {
	return &Normalizer{logService: logService}
}

// Normalize parses raw message bytes into a document owned by accountID in
// the given folder. A message without a Message-Id still produces a
// document under a synthetic identifier (at-least-once ingestion is
// preferred over silent loss); the fallback is flagged in the logs.
func (n *Normalizer) Normalize(raw []byte, accountID, folder string) (*models.Email, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyMessage
	}

	doc := &models.Email{
		AccountID: accountID,
		Folder:    folder,
	}
	doc.SetToList(nil)

	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		// go-message rejects some real-world messages; net/mail is the
		// lenient second pass.
		if fallbackErr := n.normalizePlain(raw, doc); fallbackErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
	} else {
		n.normalizeEntity(entity, doc)
	}

	if doc.ReceivedAt.IsZero() {
		doc.ReceivedAt = time.Now()
	}

	if doc.MessageID == "" {
		doc.MessageID = syntheticMessageID()
		n.logService.LogWarn(models.LogModuleMailbox, "normalize", "Message without Message-Id, generated synthetic identifier", map[string]interface{}{
			"account_id":   accountID,
			"folder":       folder,
			"subject":      doc.Subject,
			"synthetic_id": doc.MessageID,
		})
	}

	return doc, nil
}

// normalizeEntity fills the document from a parsed go-message entity.
func (n *Normalizer) normalizeEntity(entity *message.Entity, doc *models.Email) {
	hdr := mail.Header{Header: entity.Header}

	if subject, err := hdr.Subject(); err == nil {
		doc.Subject = subject
	}
	if date, err := hdr.Date(); err == nil && !date.IsZero() {
		doc.ReceivedAt = date
	}
	if id, err := hdr.MessageID(); err == nil {
		doc.MessageID = id
	}

	if fromList, err := hdr.AddressList("From"); err == nil && len(fromList) > 0 {
		doc.SetFrom(models.Address{Name: fromList[0].Name, Address: fromList[0].Address})
	}
	if toList, err := hdr.AddressList("To"); err == nil && len(toList) > 0 {
		addrs := make([]models.Address, 0, len(toList))
		for _, to := range toList {
			addrs = append(addrs, models.Address{Name: to.Name, Address: to.Address})
		}
		doc.SetToList(addrs)
	}

	doc.Body = extractPlainText(entity)
}

// normalizePlain is the net/mail fallback for messages go-message rejects.
func (n *Normalizer) normalizePlain(raw []byte, doc *models.Email) error {
	m, err := netmail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return err
	}

	doc.Subject = m.Header.Get("Subject")

	id := strings.TrimSpace(m.Header.Get("Message-Id"))
	if id == "" {
		id = strings.TrimSpace(m.Header.Get("Message-ID"))
	}
	doc.MessageID = strings.Trim(id, "<>")

	if date, err := m.Header.Date(); err == nil {
		doc.ReceivedAt = date
	}

	if from, err := netmail.ParseAddress(m.Header.Get("From")); err == nil {
		doc.SetFrom(models.Address{Name: from.Name, Address: from.Address})
	}
	if toList, err := m.Header.AddressList("To"); err == nil && len(toList) > 0 {
		addrs := make([]models.Address, 0, len(toList))
		for _, to := range toList {
			addrs = append(addrs, models.Address{Name: to.Name, Address: to.Address})
		}
		doc.SetToList(addrs)
	}

	body, _ := io.ReadAll(m.Body)
	doc.Body = string(body)

	return nil
}

// extractPlainText walks the MIME tree and returns the first text/plain
// part. HTML-only messages yield an empty body; the store keeps plain text
// only.
func extractPlainText(entity *message.Entity) string {
	mediaType, _, _ := entity.Header.ContentType()

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := entity.MultipartReader()
		if mr == nil {
			return ""
		}
		for {
			part, err := mr.NextPart()
			if err != nil {
				return ""
			}
			if text := extractPlainText(part); text != "" {
				return text
			}
		}
	}

	if mediaType == "text/plain" || mediaType == "" {
		body, err := io.ReadAll(entity.Body)
		if err != nil {
			return ""
		}
		return string(body)
	}

	return ""
}

// syntheticMessageID builds a fallback identifier from the ingestion
// timestamp plus a random component. Not reproducible: re-fetching the
// same raw message after a crash produces a different id.
func syntheticMessageID() string {
	return fmt.Sprintf("gen:%d-%s", time.Now().UnixNano(), uuid.NewString())
}
