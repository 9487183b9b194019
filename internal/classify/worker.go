package classify

import (
	"errors"
	"sync"

	"github.com/CoderParva/Onebox/internal/database/models"
	"github.com/CoderParva/Onebox/internal/ingest"
	"github.com/CoderParva/Onebox/internal/services"
)

// Classifier is the oracle call the worker makes, one at a time.
type Classifier interface {
	Classify(fromName, fromAddr, subject, body string) (string, error)
}

// CategoryStore persists classification results.
type CategoryStore interface {
	UpdateCategory(accountID, messageID, category string) error
}

// Broadcaster pushes classification events to live viewers.
type Broadcaster interface {
	BroadcastClassified(messageID, category string)
}

// Alerter reacts to alert-triggering classifications.
type Alerter interface {
	Notify(doc *models.Email, category string)
}

// Worker drains an unbounded FIFO of newly ingested documents and assigns
// each one a category. Exactly one classification call is in flight at any
// instant: the queue and the busy flag are the only shared state, and the
// drain goroutine re-arms after every item so nothing is stranded when
// arrivals race with completion.
type Worker struct {
	mu    sync.Mutex
	queue []*models.Email
	busy  bool

	oracle     Classifier
	store      CategoryStore
	hub        Broadcaster
	alerts     Alerter
	logService *services.LogService
}

// NewWorker creates a new Worker instance. hub and alerts may be nil when
// fanout or alerting is not wired.
func NewWorker(oracle Classifier, store CategoryStore, hub Broadcaster, alerts Alerter, logService *services.LogService) *Worker {
	return &Worker{
		oracle:     oracle,
		store:      store,
		hub:        hub,
		alerts:     alerts,
		logService: logService,
	}
}

// Enqueue appends a document to the pending queue and arms the drain
// goroutine if it is idle. It never blocks; callers invoke it synchronously
// right after a successful upsert.
func (w *Worker) Enqueue(doc *models.Email) {
	if doc == nil {
		return
	}

	w.mu.Lock()
	w.queue = append(w.queue, doc)
	if !w.busy {
		w.busy = true
		go w.drain()
	}
	w.mu.Unlock()
}

// Pending returns the number of queued documents, excluding the in-flight one.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// drain processes queued documents one at a time until the queue is empty,
// then parks. The empty check and the busy reset happen under the same lock
// so an Enqueue racing with shutdown either sees busy=true or starts a new
// drain itself.
func (w *Worker) drain() {
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			w.busy = false
			w.mu.Unlock()
			return
		}
		doc := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.process(doc)
	}
}

// process runs one item through classify → persist → broadcast → alert.
// Any failure drops only this item; the drain loop keeps going.
func (w *Worker) process(doc *models.Email) {
	raw, err := w.oracle.Classify(doc.FromName, doc.FromAddr, doc.Subject, doc.Body)
	if err != nil {
		w.logService.LogWarn(models.LogModuleClassify, "classify", "Oracle call failed, dropping item", map[string]interface{}{
			"account_id": doc.AccountID,
			"message_id": doc.MessageID,
			"error":      err.Error(),
		})
		return
	}

	category := NormalizeLabel(raw)

	if err := w.store.UpdateCategory(doc.AccountID, doc.MessageID, string(category)); err != nil {
		if errors.Is(err, ingest.ErrAlreadyCategorized) {
			// Re-ingested message, already classified on a previous pass.
			w.logService.LogDebug(models.LogModuleClassify, "classify", "Document already categorized", map[string]interface{}{
				"message_id": doc.MessageID,
			})
			return
		}
		w.logService.LogError(models.LogModuleClassify, "persist", "Failed to persist category", map[string]interface{}{
			"account_id": doc.AccountID,
			"message_id": doc.MessageID,
			"category":   string(category),
			"error":      err.Error(),
		})
		return
	}

	doc.Category = string(category)

	w.logService.LogInfo(models.LogModuleClassify, "classify", "Document classified", map[string]interface{}{
		"message_id": doc.MessageID,
		"category":   string(category),
		"raw":        raw,
	})

	if w.hub != nil {
		w.hub.BroadcastClassified(doc.MessageID, string(category))
	}

	if category == AlertCategory && w.alerts != nil {
		w.alerts.Notify(doc, string(category))
	}
}
