// Package dataset keeps a local replica of a dataset in sync with its source
// and selects how queries against it are answered.
//
// A Dataset probes its source on Load. Sources that answer queries
// themselves are used remotely and never downloaded. All others are
// downloaded to a cache path, compared against the info sidecar written
// after the last download, and pulled again when the source changed.
package dataset

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"os"
	"sync"
	"time"

	"github.com/fwojciec/docsync"
	"github.com/fwojciec/docsync/fs"
	"github.com/xhit/go-str2duration/v2"
)

// Defaults applied by New.
const (
	// DefaultSyncDelay is the pause between closing the query engine and
	// moving a finished download into place.
	DefaultSyncDelay = 500 * time.Millisecond

	// DefaultMinUpdateInterval is the shortest refresh interval honored from
	// dataset metadata. Shorter intervals disable background refresh.
	DefaultMinUpdateInterval = 15 * time.Minute

	// UpdateIntervalKey is the metadata key holding the refresh interval.
	UpdateIntervalKey = "updateInterval"
)

// Mode tells how queries against a dataset are answered.
type Mode string

// Mode constants. A dataset has no mode until it has been loaded.
const (
	ModeNone   Mode = ""
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// EventType identifies a dataset state transition.
type EventType string

// EventType constants.
const (
	EventUpdateAvailable EventType = "update_available"
	EventUpdated         EventType = "updated"
	EventMetadata        EventType = "metadata"
)

// Event is published to subscribers on state transitions.
type Event struct {
	Type    EventType
	Dataset string
}

// LocalFactory creates the query engine for a downloaded dataset file.
type LocalFactory func(id, path string) docsync.Searcher

// RemoteFactory creates the query engine for a source that answers queries.
type RemoteFactory func(id, url string) docsync.Searcher

// Config configures a Dataset.
type Config struct {
	// Path is the cache file location. Defaults to fs.DefaultCachePath.
	Path string

	// AllowRemote permits answering queries remotely when the source
	// supports it.
	AllowRemote bool

	// AutoUpdate checks for updates and pulls during Load.
	AutoUpdate bool

	// Lock adds an advisory file lock to the temp file check during pulls.
	Lock bool

	Fetcher docsync.Fetcher
	Local   LocalFactory
	Remote  RemoteFactory
	Logger  *slog.Logger

	// SyncDelay overrides DefaultSyncDelay. Negative means no delay.
	SyncDelay time.Duration

	// MinUpdateInterval overrides DefaultMinUpdateInterval.
	MinUpdateInterval time.Duration
}

// Info is a snapshot of dataset state.
type Info struct {
	ID               string            `json:"id" yaml:"id"`
	URL              string            `json:"url" yaml:"url"`
	Path             string            `json:"path" yaml:"path"`
	Mode             Mode              `json:"mode" yaml:"mode"`
	Remote           bool              `json:"remote" yaml:"remote"`
	Metadata         map[string]string `json:"metadata" yaml:"metadata"`
	Size             int64             `json:"size" yaml:"size"`
	ModTime          *time.Time        `json:"mtime,omitempty" yaml:"mtime,omitempty"`
	Transferred      int64             `json:"transferred" yaml:"transferred"`
	Transferring     bool              `json:"transferring" yaml:"transferring"`
	UpdateAvailable  bool              `json:"updateAvailable" yaml:"updateAvailable"`
	UpdatesCheckedAt *time.Time        `json:"updatesCheckedAt,omitempty" yaml:"updatesCheckedAt,omitempty"`
	Fingerprint      string            `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Error            string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// Dataset is one dataset and its synchronization state.
type Dataset struct {
	url    string
	id     string
	path   string
	config Config
	logger *slog.Logger

	// ctx scopes background refresh and is cancelled by Destroy.
	ctx    context.Context
	stop   context.CancelFunc
	reset  chan struct{}
	wg     sync.WaitGroup
	ticker bool

	mu               sync.Mutex
	mode             Mode
	searcher         docsync.Searcher
	metadata         map[string]string
	stored           *docsync.StorageInfo
	size             int64
	modTime          time.Time
	transferred      int64
	transferring     bool
	pulling          bool
	updateAvailable  bool
	updatesCheckedAt time.Time
	interval         time.Duration
	err              error
	cancel           context.CancelFunc
	destroyed        bool
	refreshing       bool
	release          func()
	subscribers      map[int]func(Event)
	nextSubscriber   int
}

// New creates an idle Dataset for the source at url.
func New(url string, config Config) (*Dataset, error) {
	if config.Fetcher == nil {
		return nil, docsync.Errorf(docsync.EINVALID, "dataset %s: fetcher required", url)
	}
	if config.Local == nil {
		return nil, docsync.Errorf(docsync.EINVALID, "dataset %s: local engine factory required", url)
	}
	if config.AllowRemote && config.Remote == nil {
		return nil, docsync.Errorf(docsync.EINVALID, "dataset %s: remote engine factory required", url)
	}
	if config.Path == "" {
		config.Path = fs.DefaultCachePath(url)
	}
	if config.SyncDelay == 0 {
		config.SyncDelay = DefaultSyncDelay
	}
	if config.MinUpdateInterval <= 0 {
		config.MinUpdateInterval = DefaultMinUpdateInterval
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	id := docsync.DatasetID(url)
	ctx, stop := context.WithCancel(context.Background())

	return &Dataset{
		url:         url,
		id:          id,
		path:        config.Path,
		config:      config,
		logger:      config.Logger.With("dataset", id),
		ctx:         ctx,
		stop:        stop,
		reset:       make(chan struct{}, 1),
		metadata:    map[string]string{},
		subscribers: make(map[int]func(Event)),
	}, nil
}

// URL returns the source URL.
func (d *Dataset) URL() string { return d.url }

// ID returns the dataset identifier derived from the URL.
func (d *Dataset) ID() string { return d.id }

// Path returns the cache file location.
func (d *Dataset) Path() string { return d.path }

// Mode returns how queries are currently answered.
func (d *Dataset) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Searcher returns the active query engine, or nil before the first
// successful Load.
func (d *Dataset) Searcher() docsync.Searcher {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.searcher
}

// Err returns the error of the last Load, or nil if it succeeded.
func (d *Dataset) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Metadata returns a copy of the dataset metadata.
func (d *Dataset) Metadata() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.metadata)
}

// Subscribe registers fn for state transition events. Callbacks run on the
// goroutine that caused the transition and may call Destroy. The returned
// function unsubscribes.
func (d *Dataset) Subscribe(fn func(Event)) (unsubscribe func()) {
	d.mu.Lock()
	id := d.nextSubscriber
	d.nextSubscriber++
	d.subscribers[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.subscribers, id)
		d.mu.Unlock()
	}
}

func (d *Dataset) emit(t EventType) {
	d.mu.Lock()
	fns := make([]func(Event), 0, len(d.subscribers))
	for _, fn := range d.subscribers {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(Event{Type: t, Dataset: d.id})
	}
}

// Probe asks the source for its current info without downloading.
func (d *Dataset) Probe(ctx context.Context) (*docsync.StorageInfo, error) {
	info, err := d.config.Fetcher.Probe(ctx, d.url)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.size = info.Size
	d.mu.Unlock()

	return info, nil
}

// Load probes the source, selects the query mode and, for local datasets
// with AutoUpdate, pulls when the source changed. A refresh interval found
// in metadata schedules recurring loads. Failures are recorded and
// reported through Err.
func (d *Dataset) Load(ctx context.Context) bool {
	err := d.load(ctx)

	d.mu.Lock()
	d.err = err
	d.mu.Unlock()

	if err != nil {
		d.logger.Warn("load failed", "err", err)
		return false
	}
	return true
}

func (d *Dataset) load(ctx context.Context) error {
	head, err := d.Probe(ctx)
	if err != nil {
		return err
	}

	if head.Remote && d.config.AllowRemote {
		d.setEngine(ModeRemote)
		d.setMetadata(head.Metadata)
	} else {
		d.setEngine(ModeLocal)
		if d.config.AutoUpdate {
			stale, err := d.CheckForUpdates(ctx, head)
			if err != nil {
				return err
			}
			if stale {
				if _, err := d.Pull(ctx, false); err != nil {
					return err
				}
			}
			d.setMetadata(head.Metadata)
		}
		d.statLocal()
	}

	d.scheduleRefresh()
	return nil
}

// setEngine installs a query engine for mode. The engine is kept when the
// mode is unchanged; a replaced engine is closed.
func (d *Dataset) setEngine(mode Mode) {
	d.mu.Lock()
	if d.mode == mode && d.searcher != nil {
		d.mu.Unlock()
		return
	}
	old := d.searcher
	if mode == ModeRemote {
		d.searcher = d.config.Remote(d.id, d.url)
	} else {
		d.searcher = d.config.Local(d.id, d.path)
	}
	d.mode = mode
	d.mu.Unlock()

	d.logger.Info("mode selected", "mode", mode)
	if old != nil {
		if err := old.Close(); err != nil {
			d.logger.Warn("failed to close query engine", "err", err)
		}
	}
}

func (d *Dataset) setMetadata(metadata map[string]string) {
	if metadata == nil {
		metadata = map[string]string{}
	}

	d.mu.Lock()
	changed := !maps.Equal(d.metadata, metadata)
	d.metadata = maps.Clone(metadata)
	d.mu.Unlock()

	if changed {
		d.emit(EventMetadata)
	}
}

func (d *Dataset) statLocal() {
	st, err := os.Stat(d.path)
	if err != nil {
		return
	}

	d.mu.Lock()
	d.modTime = st.ModTime()
	if d.size <= 0 {
		d.size = st.Size()
	}
	d.mu.Unlock()
}

// CheckForUpdates compares head, or a fresh probe when head is nil, with the
// info sidecar of the cached file. An update is available when there is no
// sidecar or the two differ.
func (d *Dataset) CheckForUpdates(ctx context.Context, head *docsync.StorageInfo) (bool, error) {
	if head == nil {
		var err error
		if head, err = d.Probe(ctx); err != nil {
			return false, err
		}
	}

	stored, err := fs.ReadInfo(d.path)
	if err != nil {
		return false, err
	}
	available := stored == nil || !stored.Equal(head)

	d.mu.Lock()
	was := d.updateAvailable
	d.updateAvailable = available
	d.updatesCheckedAt = time.Now()
	d.stored = stored
	d.mu.Unlock()

	if available && !was {
		d.logger.Info("update available", "fingerprint", head.Fingerprint())
		d.emit(EventUpdateAvailable)
	}
	return available, nil
}

// Pull downloads the dataset and moves it into place. It reports whether the
// cached file was replaced.
//
// Without force, Pull does nothing unless an update is available and no
// other pull of this dataset is running. Either way it does nothing while a
// temp file from another download exists. A failed transfer leaves the
// cached file untouched.
func (d *Dataset) Pull(ctx context.Context, force bool) (bool, error) {
	d.mu.Lock()
	if !force && (d.pulling || !d.updateAvailable) {
		d.mu.Unlock()
		return false, nil
	}
	d.pulling = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.pulling = false
		d.mu.Unlock()
	}()

	var opts []fs.DownloadOption
	if d.config.Lock {
		opts = append(opts, fs.WithLock())
	}
	dl := fs.NewDownload(d.path, opts...)

	reserved, err := dl.Reserve()
	if err != nil {
		return false, err
	}
	if !reserved {
		d.logger.Info("download already in progress", "tmp", dl.TempPath())
		return false, nil
	}

	info, err := d.transfer(ctx, dl)
	if err != nil || info == nil {
		if aerr := dl.Abort(); aerr != nil {
			d.logger.Warn("failed to remove temp file", "err", aerr)
		}
		return false, err
	}

	if err := d.swap(dl, info); err != nil {
		return false, err
	}

	d.mu.Lock()
	d.updateAvailable = false
	d.stored = info
	d.size = info.Size
	d.mu.Unlock()
	d.statLocal()

	d.logger.Info("updated", "size", info.Size, "fingerprint", info.Fingerprint())
	d.emit(EventUpdated)
	return true, nil
}

// transfer fetches the source into dl. The transfer can be cancelled
// through Abort.
func (d *Dataset) transfer(ctx context.Context, dl *fs.Download) (info *docsync.StorageInfo, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	d.cancel = cancel
	d.transferring = true
	d.transferred = 0
	d.mu.Unlock()

	defer func(begin time.Time) {
		d.mu.Lock()
		d.cancel = nil
		d.transferring = false
		transferred := d.transferred
		d.mu.Unlock()
		d.logger.Info("transfer", "bytes", transferred, "duration", time.Since(begin), "err", err)
	}(time.Now())

	return d.config.Fetcher.Fetch(ctx, d.url, dl, func(n int64) {
		d.mu.Lock()
		d.transferred = n
		d.mu.Unlock()
	})
}

// swap writes the sidecar and renames the finished download onto the cache
// path. The query engine is closed first so it does not keep reading the
// replaced file; it reopens on next use.
func (d *Dataset) swap(dl *fs.Download, info *docsync.StorageInfo) error {
	if err := dl.Close(); err != nil {
		_ = dl.Abort()
		return err
	}
	if err := fs.WriteInfo(d.path, info); err != nil {
		_ = dl.Abort()
		return err
	}

	if searcher := d.Searcher(); searcher != nil {
		if err := searcher.Close(); err != nil {
			d.logger.Warn("failed to close query engine", "err", err)
		}
	}

	if d.config.SyncDelay > 0 {
		time.Sleep(d.config.SyncDelay)
	}

	if err := dl.Commit(); err != nil {
		// Without the sidecar the next check pulls again.
		_ = os.Remove(fs.InfoPath(d.path))
		_ = dl.Abort()
		return err
	}
	return nil
}

// Abort cancels an in-flight transfer. The pull that started it fails and
// removes its temp file.
func (d *Dataset) Abort() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.transferred = 0
}

// Destroy aborts any transfer, stops background refresh and closes the
// query engine. With unlinkData the cached file, its sidecar and any temp
// file are removed as well. When called while a refresh tick is loading,
// for example from a subscriber, Destroy returns without waiting and the
// refresh goroutine releases the dataset once the tick ends.
func (d *Dataset) Destroy(unlinkData bool) {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	transferring := d.transferring
	deferred := d.refreshing
	if deferred {
		d.release = func() { d.close(unlinkData) }
	}
	d.mu.Unlock()

	if transferring {
		d.Abort()
	}

	d.stop()
	if deferred {
		return
	}
	d.wg.Wait()
	d.close(unlinkData)
}

// close releases the query engine and optionally the cached files.
func (d *Dataset) close(unlinkData bool) {
	d.mu.Lock()
	searcher := d.searcher
	d.mu.Unlock()

	if searcher != nil {
		if err := searcher.Close(); err != nil {
			d.logger.Warn("failed to close query engine", "err", err)
		}
	}

	if unlinkData {
		fs.Remove(d.path)
	}
}

// Info returns a snapshot of the dataset state.
func (d *Dataset) Info() Info {
	d.mu.Lock()
	defer d.mu.Unlock()

	info := Info{
		ID:              d.id,
		URL:             d.url,
		Path:            d.path,
		Mode:            d.mode,
		Remote:          d.mode == ModeRemote,
		Metadata:        maps.Clone(d.metadata),
		Size:            d.size,
		Transferred:     d.transferred,
		Transferring:    d.transferring,
		UpdateAvailable: d.updateAvailable,
		Fingerprint:     d.stored.Fingerprint(),
	}
	if d.mode == ModeLocal && !d.modTime.IsZero() {
		t := d.modTime
		info.ModTime = &t
	}
	if !d.updatesCheckedAt.IsZero() {
		t := d.updatesCheckedAt
		info.UpdatesCheckedAt = &t
	}
	if d.err != nil {
		info.Error = errorMessage(d.err)
	}
	return info
}

// updateInterval parses the refresh interval from metadata. It returns zero
// when none is set, it cannot be parsed or it is below the floor.
func (d *Dataset) updateInterval() time.Duration {
	d.mu.Lock()
	raw, ok := docsync.MetadataValue(d.metadata, UpdateIntervalKey)
	d.mu.Unlock()
	if !ok || raw == "" {
		return 0
	}

	interval, err := str2duration.ParseDuration(raw)
	if err != nil {
		d.logger.Warn("invalid update interval", "value", raw, "err", err)
		return 0
	}
	if interval < d.config.MinUpdateInterval {
		return 0
	}
	return interval
}

// scheduleRefresh starts background refresh, or adjusts its interval, from
// the current metadata.
func (d *Dataset) scheduleRefresh() {
	interval := d.updateInterval()
	if interval == 0 {
		return
	}

	d.mu.Lock()
	if d.destroyed || d.interval == interval {
		d.mu.Unlock()
		return
	}
	d.interval = interval
	start := !d.ticker
	d.ticker = true
	d.mu.Unlock()

	if start {
		d.wg.Add(1)
		go d.refresh(interval)
		return
	}

	select {
	case d.reset <- struct{}{}:
	default:
	}
}

// refresh reloads the dataset on every tick until Destroy.
func (d *Dataset) refresh(interval time.Duration) {
	defer d.wg.Done()

	d.logger.Info("refresh scheduled", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-d.reset:
			d.mu.Lock()
			interval = d.interval
			d.mu.Unlock()
			ticker.Reset(interval)
			d.logger.Info("refresh rescheduled", "interval", interval)
		case <-ticker.C:
			if !d.tick() {
				return
			}
		}
	}
}

// tick reloads the dataset once and reports whether refresh should go on.
func (d *Dataset) tick() bool {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return false
	}
	d.refreshing = true
	d.mu.Unlock()

	ok := d.Load(d.ctx)

	d.mu.Lock()
	d.refreshing = false
	release := d.release
	d.release = nil
	d.mu.Unlock()

	if release != nil {
		release()
		return false
	}
	return ok || !errors.Is(d.ctx.Err(), context.Canceled)
}

// errorMessage returns the message of application errors and the full text
// of any other error.
func errorMessage(err error) string {
	var e *docsync.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
