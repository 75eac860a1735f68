// Package audit implements Component I: an append-only, tenant-scoped
// event log, written asynchronously off the request path.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pramana-labs/pramana/internal/auth"
	"github.com/pramana-labs/pramana/internal/tenant"
)

// Entry represents a single audit log entry to be written. Unlike the
// teacher's schema-per-tenant Entry, tenancy is carried as a plain
// TenantID column value — see internal/tenant for the rationale.
type Entry struct {
	TenantID     string
	Actor        string
	EventType    string
	ResourceType string
	ResourceID   uuid.UUID
	Detail       json.RawMessage
	IPAddress    *netip.Addr
	UserAgent    *string
}

// Writer is an async, buffered audit log writer. Entries are sent to an
// internal channel and flushed by a background goroutine, exactly as the
// teacher's audit.Writer works — grouping by tenant schema is no longer
// needed since tenant_id is just a column, so flush is a single batched
// insert instead of one SET search_path per tenant.
type Writer struct {
	pool     *pgxpool.Pool
	logger   *slog.Logger
	notifier *Notifier
	entries  chan Entry
	wg       sync.WaitGroup
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// notifyEventTypes lists the event types that additionally trigger a Slack
// webhook notification, per SPEC_FULL.md's narrow Slack wiring.
var notifyEventTypes = map[string]bool{
	"requirement_intent.confirmed": true,
	"credential.revoked":           true,
}

// NewWriter creates an audit Writer. Call Start to begin processing entries.
// notifier may be nil, in which case no Slack notification is ever sent.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger, notifier *Notifier) *Writer {
	return &Writer{
		pool:     pool,
		logger:   logger,
		notifier: notifier,
		entries:  make(chan Entry, bufferSize),
	}
}

// Start begins the background goroutine that flushes audit entries to the database.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close waits for all pending entries to be flushed.
func (w *Writer) Close() {
	close(w.entries)
	w.wg.Wait()
}

// Log enqueues an audit entry for async writing. It never blocks the caller;
// if the buffer is full the entry is dropped and a warning is logged.
func (w *Writer) Log(entry Entry) {
	select {
	case w.entries <- entry:
	default:
		w.logger.Warn("audit log buffer full, dropping entry",
			"event_type", entry.EventType, "resource_type", entry.ResourceType)
	}

	if w.notifier != nil && notifyEventTypes[entry.EventType] {
		go w.notifier.Notify(context.Background(), entry)
	}
}

// LogFromRequest is a convenience method that extracts identity, tenant, IP,
// and user agent from the request context, then enqueues the entry.
func (w *Writer) LogFromRequest(r *http.Request, eventType, resourceType string, resourceID uuid.UUID, detail json.RawMessage) {
	entry := Entry{
		TenantID:     tenant.FromContext(r.Context()),
		EventType:    eventType,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Detail:       detail,
	}

	if id := auth.FromContext(r.Context()); id != nil {
		entry.Actor = id.Subject
	}

	ip := clientIP(r)
	if ip.IsValid() {
		entry.IPAddress = &ip
	}

	ua := r.Header.Get("User-Agent")
	if ua != "" {
		entry.UserAgent = &ua
	}

	w.Log(entry)
}

// run is the background loop that drains the entries channel.
func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, flushBatch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case entry, ok := <-w.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// flush writes a batch of entries to the database in one round trip.
func (w *Writer) flush(entries []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	batch := &pgx.Batch{}
	for _, e := range entries {
		resourceID := &e.ResourceID
		if e.ResourceID == uuid.Nil {
			resourceID = nil
		}
		batch.Queue(
			`INSERT INTO audit_events (id, tenant_id, event_type, actor, resource_type, resource_id, payload, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
			uuid.New(), e.TenantID, e.EventType, e.Actor, e.ResourceType, resourceID, nullableJSON(e.Detail),
		)
	}

	results := w.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			w.logger.Error("writing audit log entry", "error", err)
		}
	}
}

func nullableJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}

// clientIP extracts the client IP address from the request, preferring
// X-Forwarded-For and X-Real-IP headers over RemoteAddr.
func clientIP(r *http.Request) netip.Addr {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if addr, err := netip.ParseAddr(strings.TrimSpace(parts[0])); err == nil {
			return addr
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
			return addr
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, _ := netip.ParseAddr(host)
	return addr
}
