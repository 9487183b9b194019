// Package ingest owns all writes to the document store. The Gateway is the
// single point enforcing the (account_id, message_id) uniqueness invariant;
// everything else in the pipeline goes through it.
package ingest

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/CoderParva/Onebox/internal/database/models"
	"github.com/CoderParva/Onebox/internal/services"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrStoreUnavailable indicates the document store is not reachable
	ErrStoreUnavailable = errors.New("document store unavailable")
	// ErrDocumentNotFound indicates the target document does not exist
	ErrDocumentNotFound = errors.New("document not found")
	// ErrAlreadyCategorized indicates the document already carries a category
	ErrAlreadyCategorized = errors.New("document already categorized")
	// ErrInvalidDocument indicates a document is missing its identity fields
	ErrInvalidDocument = errors.New("invalid document")
)

// Startup probe parameters against the store.
const (
	readyAttempts = 5
	readyBackoff  = 5 * time.Second
)

// Columns the normalizer owns. Category is deliberately excluded so a
// re-ingested message never loses or changes an assigned category.
var upsertColumns = []string{
	"from_name", "from_addr", "to_addrs", "subject", "body", "received_at", "folder",
}

// Gateway is the only writer to the document store.
type Gateway struct {
	db         *gorm.DB
	logService *services.LogService
	ready      bool
}

// NewGateway creates a new Gateway instance. Call WaitReady before serving
// traffic; until then all writes fail fast with ErrStoreUnavailable.
func NewGateway(db *gorm.DB, logService *services.LogService) *Gateway {
	return &Gateway{
		db:         db,
		logService: logService,
	}
}

// WaitReady probes the store with bounded retries and fixed backoff. On
// exhaustion the gateway stays degraded: ingestion calls fail fast rather
// than block.
func (g *Gateway) WaitReady() error {
	var lastErr error
	for attempt := 1; attempt <= readyAttempts; attempt++ {
		lastErr = g.ping()
		if lastErr == nil {
			g.ready = true
			return nil
		}
		log.Printf("[Ingest] Store not ready (attempt %d/%d): %v", attempt, readyAttempts, lastErr)
		if attempt < readyAttempts {
			time.Sleep(readyBackoff)
		}
	}
	g.logService.LogError(models.LogModuleIngest, "ready", "Store unreachable, pipeline degraded", map[string]interface{}{
		"attempts": readyAttempts,
		"error":    lastErr.Error(),
	})
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, lastErr)
}

func (g *Gateway) ping() error {
	if g.db == nil {
		return errors.New("no database handle")
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Upsert idempotently persists a document. The same (account_id, message_id)
// pair overwrites the normalizer-owned fields instead of creating a second
// record; an existing category is left untouched.
func (g *Gateway) Upsert(doc *models.Email) error {
	if doc == nil || doc.AccountID == "" || doc.MessageID == "" {
		return ErrInvalidDocument
	}
	if !g.ready {
		return ErrStoreUnavailable
	}

	err := g.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(doc).Error
	if err != nil {
		g.logService.LogError(models.LogModuleIngest, "upsert", "Failed to persist document", map[string]interface{}{
			"account_id": doc.AccountID,
			"message_id": doc.MessageID,
			"error":      err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// UpdateCategory records the classification result for one document. It is
// a partial update and never touches other fields. The document must have
// been upserted first; a missing target fails loudly, and a document that
// already carries a category keeps it (category is monotonic).
func (g *Gateway) UpdateCategory(accountID, messageID, category string) error {
	if accountID == "" || messageID == "" || category == "" {
		return ErrInvalidDocument
	}
	if !g.ready {
		return ErrStoreUnavailable
	}

	res := g.db.Model(&models.Email{}).
		Where("account_id = ? AND message_id = ? AND (category = '' OR category IS NULL)", accountID, messageID).
		Update("category", category)
	if res.Error != nil {
		g.logService.LogError(models.LogModuleIngest, "update_category", "Failed to update category", map[string]interface{}{
			"message_id": messageID,
			"category":   category,
			"error":      res.Error.Error(),
		})
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		g.db.Model(&models.Email{}).
			Where("account_id = ? AND message_id = ?", accountID, messageID).
			Count(&count)
		if count == 0 {
			g.logService.LogError(models.LogModuleIngest, "update_category", "Category update for unknown document", map[string]interface{}{
				"account_id": accountID,
				"message_id": messageID,
			})
			return fmt.Errorf("%w: %s", ErrDocumentNotFound, messageID)
		}
		return ErrAlreadyCategorized
	}
	return nil
}

// Search is the read path used by the API layer. It filters on account and
// folder, matches query against subject/body/sender when non-empty, and
// returns newest first with a bounded page size.
func (g *Gateway) Search(accountID, folder, query string, limit int) ([]models.Email, error) {
	if !g.ready {
		return nil, ErrStoreUnavailable
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	q := g.db.Model(&models.Email{}).Where("account_id = ?", accountID)
	if folder != "" {
		q = q.Where("folder = ?", folder)
	}
	if query != "" {
		pattern := "%" + query + "%"
		q = q.Where(
			"subject LIKE ? OR body LIKE ? OR from_name LIKE ? OR from_addr LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}

	var emails []models.Email
	if err := q.Order("received_at DESC").Limit(limit).Find(&emails).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return emails, nil
}

// Get returns one document by its identity pair.
func (g *Gateway) Get(accountID, messageID string) (*models.Email, error) {
	if !g.ready {
		return nil, ErrStoreUnavailable
	}

	var email models.Email
	err := g.db.Where("account_id = ? AND message_id = ?", accountID, messageID).First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, messageID)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &email, nil
}
