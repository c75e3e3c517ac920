package sheetedit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Dialer opens an authenticated store handle
type Dialer func(ctx context.Context) (Adapter, error)

const handleKey = "adapter"

// Client is the main entry point: cached snapshots, per-user views and saves
type Client struct {
	config     Config
	dial       Dialer
	handles    *Cache[Adapter]
	snapshots  *Cache[*Snapshot]
	reconciler Reconciler
	refresher  *Refresher
	log        logrus.FieldLogger
	mu         sync.Mutex
	closed     bool
}

// SaveResult describes what a save wrote
type SaveResult struct {
	Strategy Strategy `json:"strategy"`
	Updated  []int    `json:"updated"`
	Added    int      `json:"added"`
	Deleted  int      `json:"deleted"`
	Written  bool     `json:"written"`
}

// New creates a new client with the given adapter and configuration
func New(adapter Adapter, config *Config) *Client {
	return NewWithDialer(func(context.Context) (Adapter, error) { return adapter, nil }, config)
}

// NewWithDialer creates a client that opens store handles lazily and caches
// them for CacheTTL
func NewWithDialer(dial Dialer, config *Config) *Client {
	if config == nil {
		config = &Config{}
	}
	cfg := *config
	cfg.setDefaults()

	client := &Client{
		config:     cfg,
		dial:       dial,
		handles:    NewCache[Adapter](WithClock(cfg.Clock)),
		snapshots:  NewCache[*Snapshot](WithClock(cfg.Clock)),
		reconciler: NewReconciler(cfg.Strategy, ApplyOptions{VerifyVersions: cfg.VerifyVersions}),
		log:        cfg.Logger.WithField("sheet", cfg.Sheet),
	}

	if cfg.RefreshInterval > 0 {
		client.refresher = NewRefresher(client, cfg.RefreshInterval)
		client.refresher.Start()
	}

	return client
}

// Config returns the effective configuration
func (c *Client) Config() Config {
	return c.config
}

func (c *Client) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return nil
}

func (c *Client) adapter(ctx context.Context) (Adapter, error) {
	return c.handles.GetOrFetch(ctx, handleKey, c.config.CacheTTL, func(ctx context.Context) (Adapter, error) {
		c.log.Debug("opening store handle")
		a, err := c.dial(ctx)
		if err != nil {
			return nil, &LoadError{Sheet: c.config.Sheet, Err: fmt.Errorf("failed to open store: %w", err)}
		}
		return a, nil
	})
}

// Snapshot returns the cached snapshot, fetching it when missing or expired.
// The returned value is shared and must not be modified.
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	fetched := false
	snap, err := c.snapshots.GetOrFetch(ctx, c.config.Sheet, c.config.CacheTTL, func(ctx context.Context) (*Snapshot, error) {
		fetched = true
		return c.loadWithRetry(ctx)
	})
	if err != nil {
		return nil, err
	}
	if !fetched {
		c.log.Debug("snapshot served from cache")
	}
	return snap, nil
}

// loadWithRetry loads the snapshot with exponential backoff
func (c *Client) loadWithRetry(ctx context.Context) (*Snapshot, error) {
	adapter, err := c.adapter(ctx)
	if err != nil {
		return nil, err
	}

	var snap *Snapshot
	for i := 0; i <= c.config.MaxRetries; i++ {
		snap, err = LoadSnapshot(ctx, adapter, c.config.Sheet)
		if err == nil {
			break
		}
		if isPermanent(err) || i == c.config.MaxRetries {
			break
		}

		// Exponential backoff with reasonable limits
		backoff := time.Duration(1<<uint(i)) * c.config.RetryInterval
		if backoff > 2*time.Second {
			backoff = 2 * time.Second
		}
		c.log.WithError(err).WithField("attempt", i+1).Warn("load failed, retrying")

		select {
		case <-ctx.Done():
			return nil, &LoadError{Sheet: c.config.Sheet, Err: ctx.Err()}
		case <-time.After(backoff):
		}
	}
	if err != nil {
		return nil, err
	}

	snap.FetchedAt = c.config.Clock()
	c.log.WithField("rows", len(snap.Rows)).Debug("snapshot fetched")
	return snap, nil
}

func isPermanent(err error) bool {
	return errors.Is(err, errMalformedHeader) || errors.Is(err, ErrNoSheet) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Worksheets lists the sheet names of the workbook
func (c *Client) Worksheets(ctx context.Context) ([]string, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	adapter, err := c.adapter(ctx)
	if err != nil {
		return nil, err
	}
	names, err := adapter.ListWorksheets(ctx)
	if err != nil {
		return nil, &LoadError{Sheet: c.config.Sheet, Err: err}
	}
	return names, nil
}

// Identities lists the distinct values of the identity column
func (c *Client) Identities(ctx context.Context) ([]string, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return Identities(snap, c.config.IdentityColumn)
}

// View returns the rows belonging to identity
func (c *Client) View(ctx context.Context, identity string) (*View, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return FilterView(snap, c.config.IdentityColumn, identity)
}

// Save diffs candidate against view and writes the result with the configured
// strategy. A save without edits issues no writes. Edited cells are checked
// against Config.Columns first. The rewrite strategy refuses a view whose
// FetchedAt is not that of the current snapshot.
func (c *Client) Save(ctx context.Context, view *View, candidate *Table) (*SaveResult, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	if len(c.config.Columns) > 0 {
		candidate = candidate.Clone()
		c.config.Columns.Normalize(candidate)
	}

	cs, err := ComputeChangeSet(view, candidate)
	if err != nil {
		return nil, err
	}
	if err := c.config.Columns.Check(cs); err != nil {
		return nil, err
	}

	result := &SaveResult{
		Strategy: c.config.Strategy,
		Updated:  cs.Keys(),
		Added:    len(cs.Added),
		Deleted:  len(cs.Deleted),
	}
	log := c.log.WithFields(logrus.Fields{
		"identity": view.Identity,
		"strategy": c.config.Strategy,
	})

	if c.config.Strategy == StrategyRows {
		if len(cs.Added) > 0 || len(cs.Deleted) > 0 {
			log.WithFields(logrus.Fields{
				"added":   len(cs.Added),
				"deleted": len(cs.Deleted),
			}).Warn("row strategy does not write added or deleted rows")
		}
		if cs.Empty() {
			log.Debug("no changes to save")
			return result, nil
		}
	} else if cs.Empty() && len(cs.Added) == 0 && len(cs.Deleted) == 0 {
		log.Debug("no changes to save")
		return result, nil
	}

	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	adapter, err := c.adapter(ctx)
	if err != nil {
		return nil, err
	}

	if c.config.Strategy == StrategyRewrite && !view.FetchedAt.IsZero() && !view.FetchedAt.Equal(snap.FetchedAt) {
		// Row keys of an older snapshot may point elsewhere after a rewrite
		err = &ConflictError{}
	} else {
		err = c.reconciler.Reconcile(ctx, adapter, snap, cs)
	}

	var we *WriteError
	var ce *ConflictError
	if err == nil || errors.As(err, &we) || errors.As(err, &ce) {
		// Some rows may have landed, or the remote moved on
		c.snapshots.Invalidate(c.config.Sheet)
	}
	if err != nil {
		log.WithError(err).Error("save failed")
		return nil, err
	}

	result.Written = true
	log.WithField("rows", result.Updated).Info("saved")
	return result, nil
}

// Invalidate drops the cached snapshot
func (c *Client) Invalidate() {
	c.snapshots.Invalidate(c.config.Sheet)
}

// Close stops the refresher and releases cached handles
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	// Mark as closed to prevent new operations
	c.closed = true
	refresher := c.refresher
	c.refresher = nil
	c.mu.Unlock()

	// Stop the refresher without holding the mutex
	if refresher != nil {
		refresher.Stop()
	}

	c.snapshots.Clear()
	c.handles.Clear()
	return nil
}

// Refresher re-fetches the snapshot periodically so requests rarely wait on the store
type Refresher struct {
	client     *Client
	interval   time.Duration
	ticker     *time.Ticker
	done       chan bool
	fetchMutex sync.Mutex
	wg         sync.WaitGroup
}

// NewRefresher creates a new refresher
func NewRefresher(client *Client, interval time.Duration) *Refresher {
	return &Refresher{
		client:   client,
		interval: interval,
		done:     make(chan bool),
	}
}

// Start begins the periodic refresh
func (r *Refresher) Start() {
	r.ticker = time.NewTicker(r.interval)
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		for {
			select {
			case <-r.ticker.C:
				r.refresh()
			case <-r.done:
				return
			}
		}
	}()
}

// refresh skips the cycle when the previous one is still running
func (r *Refresher) refresh() {
	if !r.fetchMutex.TryLock() {
		return
	}
	defer r.fetchMutex.Unlock()

	r.client.Invalidate()
	if _, err := r.client.Snapshot(context.Background()); err != nil {
		r.client.log.WithError(err).Warn("background refresh failed")
	}
}

// Stop stops the refresher and waits for an ongoing refresh
func (r *Refresher) Stop() {
	if r.ticker != nil {
		r.ticker.Stop()
	}

	close(r.done)
	r.wg.Wait()

	r.fetchMutex.Lock()
	r.fetchMutex.Unlock()
}
