// Package mailbox owns the pull side of the pipeline: one Session per
// configured account holds a persistent IMAP connection, detects backlog
// and new arrivals, and hands every fetched message to the normalizer and
// on to the ingestion gateway.
package mailbox

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/CoderParva/Onebox/internal/config"
	"github.com/CoderParva/Onebox/internal/database/models"
	"github.com/CoderParva/Onebox/internal/services"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	id "github.com/emersion/go-imap-id"
)

var (
	// ErrConnectionFailed indicates the IMAP connection could not be established
	ErrConnectionFailed = errors.New("IMAP connection failed")
	// ErrFetchFailed indicates an in-flight fetch batch was aborted
	ErrFetchFailed = errors.New("IMAP fetch failed")
	// ErrSessionClosed indicates the session was stopped
	ErrSessionClosed = errors.New("session closed")
)

const fetchBatchSize = 10

// Ingestor persists normalized documents.
type Ingestor interface {
	Upsert(doc *models.Email) error
}

// Publisher pushes ingestion events to live viewers.
type Publisher interface {
	BroadcastNewMail(doc *models.Email)
}

// Enqueuer hands documents to the classification queue.
type Enqueuer interface {
	Enqueue(doc *models.Email)
}

// Session owns one long-lived connection to one mailbox account. Sessions
// share no mutable state with each other; each runs in its own goroutine.
// A connection error ends the session without reconnecting; supervision
// is the caller's concern.
type Session struct {
	account    config.AccountConfig
	syncDays   int
	normalizer *Normalizer
	gateway    Ingestor
	hub        Publisher
	worker     Enqueuer
	logService *services.LogService

	client  *client.Client
	stop    chan struct{}
	syncReq chan int
}

// NewSession creates a new Session instance for one configured mailbox.
func NewSession(account config.AccountConfig, syncDays int, gateway Ingestor, hub Publisher, worker Enqueuer, logService *services.LogService) *Session {
	if syncDays <= 0 {
		syncDays = config.DefaultSyncDays
	}
	return &Session{
		account:    account,
		syncDays:   syncDays,
		normalizer: NewNormalizer(logService),
		gateway:    gateway,
		hub:        hub,
		worker:     worker,
		logService: logService,
		stop:       make(chan struct{}),
		syncReq:    make(chan int, 1),
	}
}

// AccountID returns the mailbox identity this session ingests for.
func (s *Session) AccountID() string {
	return s.account.Address
}

// Stop asks the session to end after the current operation. Safe to call
// once from any goroutine.
func (s *Session) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// RequestSync asks the session loop to re-run the sync window. The IMAP
// client lives on the session goroutine and cannot take commands while it
// is parked in IDLE, so callers hand the request over instead of touching
// the connection; a request is dropped when one is already pending.
func (s *Session) RequestSync(days int) {
	if days <= 0 {
		days = s.syncDays
	}
	select {
	case s.syncReq <- days:
	default:
	}
}

// Run connects, backfills the sync window, then waits for server-pushed
// new-mail signals until the connection dies or Stop is called. The error
// return describes why the session ended; it never reconnects on its own.
func (s *Session) Run() error {
	if err := s.connect(); err != nil {
		log.Printf("[Mailbox %s] Connection error: %v", s.account.Address, err)
		s.logService.LogError(models.LogModuleMailbox, "connect", "IMAP connection failed, session ended", map[string]interface{}{
			"account": s.account.Address,
			"host":    s.account.IMAPHost,
			"error":   err.Error(),
		})
		return err
	}
	defer s.client.Logout()

	log.Printf("[Mailbox %s] Connected, syncing last %d days", s.account.Address, s.syncDays)

	// Initial backfill. A fetch error here aborts only that batch; the
	// session still moves on to waiting for new mail.
	if err := s.syncWindow(s.syncDays); err != nil {
		log.Printf("[Mailbox %s] Backfill error: %v", s.account.Address, err)
	}

	return s.waitForMail()
}

// connect establishes the IMAP session: dial with a bounded timeout,
// identify to servers that require it, authenticate, and open the target
// folder.
func (s *Session) connect() error {
	addr := fmt.Sprintf("%s:%d", s.account.IMAPHost, s.account.IMAPPort)
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	var c *client.Client
	if s.account.UseSSL {
		tlsConfig := &tls.Config{ServerName: s.account.IMAPHost}
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
		c, err = client.New(conn)
		if err != nil {
			conn.Close()
			return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
	} else {
		conn, err := dialer.Dial("tcp", addr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
		c, err = client.New(conn)
		if err != nil {
			conn.Close()
			return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
	}

	// Some providers reject logins from unidentified clients.
	if ok, _ := c.Support("ID"); ok {
		idClient := id.NewClient(c)
		if _, err := idClient.ID(id.ID{
			id.FieldName:    "Onebox",
			id.FieldVersion: "1.0.0",
		}); err != nil {
			log.Printf("[Mailbox %s] ID handshake failed: %v", s.account.Address, err)
		}
	}

	if err := c.Login(s.account.Username, s.account.Password); err != nil {
		c.Logout()
		return fmt.Errorf("%w: login failed: %v", ErrConnectionFailed, err)
	}

	// Read-write select: fetching message bodies marks them seen.
	if _, err := c.Select(s.account.Folder, false); err != nil {
		c.Logout()
		return fmt.Errorf("%w: failed to select %s: %v", ErrConnectionFailed, s.account.Folder, err)
	}

	s.client = c
	return nil
}

// syncWindow searches for messages received within the last `days` days
// and ingests every match. Runs on the session goroutine only; manual
// re-syncs arrive through RequestSync.
func (s *Session) syncWindow(days int) error {
	if s.client == nil {
		return ErrConnectionFailed
	}

	since := time.Now().AddDate(0, 0, -days)
	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, time.UTC)

	seqNums, err := s.client.Search(criteria)
	if err != nil {
		return fmt.Errorf("%w: search failed: %v", ErrFetchFailed, err)
	}
	if len(seqNums) == 0 {
		log.Printf("[Mailbox %s] No messages in the last %d days", s.account.Address, days)
		return nil
	}

	log.Printf("[Mailbox %s] Found %d message(s) to sync", s.account.Address, len(seqNums))
	return s.fetchAndProcess(seqNums)
}

// fetchUnseen searches for unseen messages and ingests only those. Called
// on every server-pushed new-mail signal; already-seen messages are never
// re-fetched here.
func (s *Session) fetchUnseen() error {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	seqNums, err := s.client.Search(criteria)
	if err != nil {
		return fmt.Errorf("%w: unseen search failed: %v", ErrFetchFailed, err)
	}
	if len(seqNums) == 0 {
		return nil
	}

	log.Printf("[Mailbox %s] %d new message(s)", s.account.Address, len(seqNums))
	return s.fetchAndProcess(seqNums)
}

// fetchAndProcess fetches full bodies for the given sequence numbers in
// batches and pushes each message through normalize → upsert → fanout →
// classify-enqueue. The body fetch is non-peek, so the server marks a
// message seen only once the full body has been delivered. A stream error
// aborts the remaining batches; messages already processed stay ingested.
func (s *Session) fetchAndProcess(seqNums []uint32) error {
	// Non-peek body section: fetching it sets \Seen.
	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	for i := 0; i < len(seqNums); i += fetchBatchSize {
		end := i + fetchBatchSize
		if end > len(seqNums) {
			end = len(seqNums)
		}

		seqSet := new(imap.SeqSet)
		seqSet.AddNum(seqNums[i:end]...)

		messages := make(chan *imap.Message, fetchBatchSize)
		done := make(chan error, 1)
		go func() {
			done <- s.client.Fetch(seqSet, items, messages)
		}()

		for msg := range messages {
			if msg == nil {
				continue
			}
			s.processMessage(msg)
		}

		if err := <-done; err != nil {
			s.logService.LogWarn(models.LogModuleMailbox, "fetch", "Fetch stream error, aborting batch", map[string]interface{}{
				"account": s.account.Address,
				"error":   err.Error(),
			})
			return fmt.Errorf("%w: %v", ErrFetchFailed, err)
		}
	}

	return nil
}

// processMessage normalizes one fetched message and runs the ingestion
// ordering: persist first, then fan out, then enqueue for classification.
// Parse failures discard only this message.
func (s *Session) processMessage(msg *imap.Message) {
	var raw []byte
	for _, literal := range msg.Body {
		content, err := io.ReadAll(literal)
		if err == nil && len(content) > 0 {
			raw = content
			break
		}
	}

	doc, err := s.normalizer.Normalize(raw, s.account.Address, s.account.Folder)
	if err != nil {
		s.logService.LogWarn(models.LogModuleMailbox, "normalize", "Discarding unparseable message", map[string]interface{}{
			"account": s.account.Address,
			"uid":     msg.Uid,
			"error":   err.Error(),
		})
		return
	}

	if err := s.gateway.Upsert(doc); err != nil {
		// Not requeued: the pipeline favors forward progress over
		// completeness when the store is down.
		s.logService.LogError(models.LogModuleMailbox, "ingest", "Failed to persist document", map[string]interface{}{
			"account":    s.account.Address,
			"message_id": doc.MessageID,
			"error":      err.Error(),
		})
		return
	}

	if s.hub != nil {
		s.hub.BroadcastNewMail(doc)
	}
	if s.worker != nil {
		s.worker.Enqueue(doc)
	}
}

// waitForMail parks the connection in IDLE and reacts to server-pushed
// mailbox updates by fetching unseen messages. Returns when the connection
// dies or the session is stopped.
func (s *Session) waitForMail() error {
	updates := make(chan client.Update, 256)
	s.client.Updates = updates

	for {
		idleStop := make(chan struct{})
		idleDone := make(chan error, 1)
		go func() {
			idleDone <- s.client.Idle(idleStop, nil)
		}()

		newMail := false
		syncDays := 0
		ended := false
		var idleErr error

	waiting:
		for {
			select {
			case update := <-updates:
				if _, ok := update.(*client.MailboxUpdate); ok {
					newMail = true
					break waiting
				}
			case days := <-s.syncReq:
				syncDays = days
				break waiting
			case idleErr = <-idleDone:
				ended = true
				break waiting
			case <-s.stop:
				close(idleStop)
				<-idleDone
				return ErrSessionClosed
			}
		}

		if ended {
			if idleErr != nil {
				log.Printf("[Mailbox %s] Connection lost: %v", s.account.Address, idleErr)
				s.logService.LogError(models.LogModuleMailbox, "idle", "Connection lost, session ended", map[string]interface{}{
					"account": s.account.Address,
					"error":   idleErr.Error(),
				})
				return fmt.Errorf("%w: %v", ErrConnectionFailed, idleErr)
			}
			// Idle ended cleanly without being stopped; re-arm.
			continue
		}

		// Leave IDLE before issuing search/fetch commands.
		close(idleStop)
		<-idleDone

		if syncDays > 0 {
			if err := s.syncWindow(syncDays); err != nil {
				log.Printf("[Mailbox %s] Manual sync error: %v", s.account.Address, err)
			}
		}

		// Keep fetching while new-mail signals arrive during the fetch
		// itself, so nothing waits for the next IDLE round.
		for newMail {
			if err := s.fetchUnseen(); err != nil {
				log.Printf("[Mailbox %s] Fetch error: %v", s.account.Address, err)
			}
			newMail = false
		drain:
			for {
				select {
				case update := <-updates:
					if _, ok := update.(*client.MailboxUpdate); ok {
						newMail = true
					}
				default:
					break drain
				}
			}
		}
	}
}
