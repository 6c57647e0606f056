// Package document implements the document lifecycle coordinator: creation,
// checkout/checkin, locking, renaming, moving, aliasing, archival and
// re-indexing of versioned documents. The coordinator keeps the relational
// record store, the binary content store and the full-text index consistent
// without a transaction spanning them, using a serialization discipline plus
// compensating actions.
package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/papermill-forge/papermill/pkg/models"
	"github.com/papermill-forge/papermill/pkg/parser"
	"github.com/papermill-forge/papermill/pkg/search"
	"github.com/papermill-forge/papermill/pkg/store"
)

// Config tunes the coordinator.
type Config struct {
	// StartVersion is the version string assigned to a document's first
	// version. Defaults to "1.0".
	StartVersion string

	// VersionWriteMaxChecks bounds how many times the async version writer
	// polls for the owning document row before abandoning the write.
	// Defaults to 100.
	VersionWriteMaxChecks int

	// VersionWriteCheckInterval is the polling cadence of the async version
	// writer. Defaults to 1 second.
	VersionWriteCheckInterval time.Duration

	// DefaultStoreTier receives content whose folder chain pins no tier.
	DefaultStoreTier int

	// TicketTTLHours is the default download-ticket lifetime.
	TicketTTLHours int

	// ServerURL prefixes ticket URLs.
	ServerURL string

	// SkipIndexingOnError durably marks a document as skipped after a
	// parsing failure instead of retrying it forever. Per-tenant overrides
	// take precedence.
	SkipIndexingOnError       bool
	TenantSkipIndexingOnError map[uint64]bool
}

func (c Config) withDefaults() Config {
	if c.StartVersion == "" {
		c.StartVersion = "1.0"
	}
	if c.VersionWriteMaxChecks == 0 {
		c.VersionWriteMaxChecks = 100
	}
	if c.VersionWriteCheckInterval == 0 {
		c.VersionWriteCheckInterval = time.Second
	}
	if c.DefaultStoreTier == 0 {
		c.DefaultStoreTier = 1
	}
	if c.TicketTTLHours == 0 {
		c.TicketTTLHours = 24
	}
	return c
}

func (c Config) skipIndexingOnError(tenantID uint64) bool {
	if v, ok := c.TenantSkipIndexingOnError[tenantID]; ok {
		return v
	}
	return c.SkipIndexingOnError
}

// Coordinator orchestrates document lifecycle operations across the record
// store, the content store and the full-text index.
//
// Lifecycle-mutating operations serialize on a single coordinator-wide mutex:
// the underlying persistence session is not safe for concurrent interleaved
// use, and the read-modify-write sequences here must not interleave for the
// same document. The mutex could be sharded per document id without changing
// any signature.
type Coordinator struct {
	db        *gorm.DB
	store     store.Store
	search    search.Provider
	parsers   *parser.Registry
	history   HistorySink
	listeners []Listener
	cfg       Config
	logger    hclog.Logger

	mu sync.Mutex

	// bg governs the async version writers; Close cancels it and drains.
	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option is a functional option for creating a Coordinator.
type Option func(*Coordinator)

// WithDatabase sets the record store connection.
func WithDatabase(db *gorm.DB) Option {
	return func(c *Coordinator) { c.db = db }
}

// WithStore sets the content store.
func WithStore(s store.Store) Option {
	return func(c *Coordinator) { c.store = s }
}

// WithSearch sets the full-text index.
func WithSearch(p search.Provider) Option {
	return func(c *Coordinator) { c.search = p }
}

// WithParsers sets the parser registry.
func WithParsers(r *parser.Registry) Option {
	return func(c *Coordinator) { c.parsers = r }
}

// WithHistorySink sets the audit sink.
func WithHistorySink(h HistorySink) Option {
	return func(c *Coordinator) { c.history = h }
}

// WithListeners registers checkin hooks.
func WithListeners(listeners ...Listener) Option {
	return func(c *Coordinator) { c.listeners = append(c.listeners, listeners...) }
}

// WithLogger sets the logger.
func WithLogger(logger hclog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithConfig sets the tuning configuration.
func WithConfig(cfg Config) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

// NewCoordinator creates a document lifecycle coordinator.
func NewCoordinator(opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		logger: hclog.New(&hclog.LoggerOptions{Name: "coordinator"}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if c.store == nil {
		return nil, fmt.Errorf("content store is required")
	}
	if c.search == nil {
		return nil, fmt.Errorf("search provider is required")
	}
	if c.parsers == nil {
		c.parsers = parser.NewRegistry()
	}
	if c.history == nil {
		c.history = &GormHistorySink{DB: c.db}
	}
	c.cfg = c.cfg.withDefaults()

	c.bg, c.cancel = context.WithCancel(context.Background())
	return c, nil
}

// Close cancels outstanding background version writes and waits for them to
// exit.
func (c *Coordinator) Close() error {
	c.cancel()
	c.wg.Wait()
	return nil
}

// findDocument loads a non-deleted document.
func (c *Coordinator) findDocument(ctx context.Context, id uint64) (*models.Document, error) {
	doc, err := models.FindDocumentByID(c.db.WithContext(ctx), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &UnexistingReference{Kind: "document", ID: id}
		}
		return nil, err
	}
	return doc, nil
}

// findFolder loads a non-deleted folder.
func (c *Coordinator) findFolder(ctx context.Context, id uint64) (*models.Folder, error) {
	folder, err := models.FindFolderByID(c.db.WithContext(ctx), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &UnexistingReference{Kind: "folder", ID: id}
		}
		return nil, err
	}
	return folder, nil
}

// save persists the document without recording history.
func (c *Coordinator) save(ctx context.Context, doc *models.Document) error {
	return c.db.WithContext(ctx).Save(doc).Error
}

// saveWithHistory persists the document and appends an audit entry for the
// event. History failures are logged, not propagated: auditing is a side
// effect, not a precondition.
func (c *Coordinator) saveWithHistory(ctx context.Context, doc *models.Document, tx *Transaction, event string) error {
	if err := c.save(ctx, doc); err != nil {
		return err
	}
	c.recordHistory(ctx, doc, tx, event)
	return nil
}

func (c *Coordinator) recordHistory(ctx context.Context, doc *models.Document, tx *Transaction, event string) {
	if tx == nil {
		return
	}
	if err := c.history.Store(ctx, tx.historyEntry(doc, event)); err != nil {
		c.logger.Error("failed to record history", "event", event, "doc", doc.ID, "error", err)
	}
}

// storeContent writes the document's current file-version resource.
func (c *Coordinator) storeContent(ctx context.Context, doc *models.Document, content io.Reader) error {
	resource := store.ResourceName(doc, "", "")
	return c.store.Store(ctx, doc.ID, resource, content)
}

// countPages updates doc.Pages from the given content, best effort.
func (c *Coordinator) countPages(doc *models.Document, content io.Reader) {
	p := c.parsers.ForFilename(doc.FileName)
	pages, err := p.CountPages(content, doc.FileName)
	if err != nil {
		c.logger.Warn("cannot count pages", "doc", doc.ID, "error", err)
		return
	}
	doc.Pages = pages
}

// CountPages counts the pages of the document's stored content, returning 1
// when the content cannot be read or parsed.
func (c *Coordinator) CountPages(ctx context.Context, doc *models.Document) int {
	resource := store.ResourceName(doc, "", "")
	stream, err := c.store.GetStream(ctx, doc.ID, resource)
	if err != nil {
		c.logger.Warn("cannot read content to count pages", "doc", doc.ID, "error", err)
		return 1
	}
	defer stream.Close()

	pages, err := c.parsers.ForFilename(doc.FileName).CountPages(stream, doc.FileName)
	if err != nil {
		c.logger.Warn("cannot count pages", "doc", doc.ID, "error", err)
		return 1
	}
	return pages
}

// checkCustomIDUnique enforces tenant-wide custom id uniqueness, ignoring the
// document itself.
func (c *Coordinator) checkCustomIDUnique(ctx context.Context, customID *string, tenantID, selfID uint64) error {
	if customID == nil || *customID == "" {
		return nil
	}
	existing, err := models.FindDocumentByCustomID(c.db.WithContext(ctx), *customID, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != selfID {
		return &DuplicateIdentifier{CustomID: *customID, TenantID: tenantID}
	}
	return nil
}

// canOverrideImmutable reports whether the actor may mutate an immutable
// document.
func canOverrideImmutable(user *models.User) bool {
	return user != nil && user.IsAdmin()
}
