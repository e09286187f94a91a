package dataset

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/docsync"
	"github.com/fwojciec/docsync/fs"
	"golang.org/x/sync/errgroup"
)

// DefaultLoadConcurrency bounds parallel loads in LoadAll.
const DefaultLoadConcurrency = 4

// RegistryConfig configures a Registry. Every dataset added to the registry
// shares it.
type RegistryConfig struct {
	// Dir is the cache root. Datasets are placed at fs.CachePath below it;
	// without it they go to fs.DefaultCachePath.
	Dir string

	AllowRemote bool
	AutoUpdate  bool
	Lock        bool

	// Fetchers maps URL schemes to the fetcher that handles them.
	Fetchers map[string]docsync.Fetcher

	Local  LocalFactory
	Remote RemoteFactory
	Logger *slog.Logger

	SyncDelay         time.Duration
	MinUpdateInterval time.Duration
}

// Registry is the set of known datasets keyed by source URL.
type Registry struct {
	config RegistryConfig
	logger *slog.Logger

	mu       sync.RWMutex
	datasets map[string]*Dataset
	order    []string
}

// NewRegistry creates an empty Registry.
func NewRegistry(config RegistryConfig) *Registry {
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		config:   config,
		logger:   config.Logger,
		datasets: make(map[string]*Dataset),
	}
}

// Add registers the dataset at rawURL. It returns false if the URL is
// already registered. URLs with a scheme no fetcher handles are rejected
// with ENOTFOUND.
func (r *Registry) Add(rawURL string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.datasets[rawURL]; ok {
		return false, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false, docsync.Errorf(docsync.EINVALID, "invalid source URL %q: %v", rawURL, err)
	}
	fetcher, ok := r.config.Fetchers[u.Scheme]
	if !ok {
		return false, docsync.Errorf(docsync.ENOTFOUND, "unsupported protocol %q for %s", u.Scheme, rawURL)
	}

	path := fs.DefaultCachePath(rawURL)
	if r.config.Dir != "" {
		if path, err = fs.CachePath(r.config.Dir, rawURL); err != nil {
			return false, err
		}
	}

	d, err := New(rawURL, Config{
		Path:              path,
		AllowRemote:       r.config.AllowRemote,
		AutoUpdate:        r.config.AutoUpdate,
		Lock:              r.config.Lock,
		Fetcher:           fetcher,
		Local:             r.config.Local,
		Remote:            r.config.Remote,
		Logger:            r.logger,
		SyncDelay:         r.config.SyncDelay,
		MinUpdateInterval: r.config.MinUpdateInterval,
	})
	if err != nil {
		return false, err
	}

	for _, other := range r.datasets {
		if other.ID() == d.ID() {
			r.logger.Warn("dataset id already in use, lookups by id return the first", "id", d.ID(), "url", rawURL, "first", other.URL())
			break
		}
	}

	r.datasets[rawURL] = d
	r.order = append(r.order, rawURL)
	return true, nil
}

// Get looks up a dataset. A value containing "://" matches the source URL;
// anything else matches the dataset ID, first added wins.
func (r *Registry) Get(urlOrID string) (*Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(urlOrID)
}

func (r *Registry) get(urlOrID string) (*Dataset, error) {
	if strings.Contains(urlOrID, "://") {
		if d, ok := r.datasets[urlOrID]; ok {
			return d, nil
		}
		return nil, docsync.Errorf(docsync.ENOTFOUND, "dataset %s not found", urlOrID)
	}
	for _, u := range r.order {
		if d := r.datasets[u]; d.ID() == urlOrID {
			return d, nil
		}
	}
	return nil, docsync.Errorf(docsync.ENOTFOUND, "dataset %q not found", urlOrID)
}

// Remove destroys a dataset, deleting its cached data, and forgets it.
func (r *Registry) Remove(urlOrID string) error {
	r.mu.Lock()
	d, err := r.get(urlOrID)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	delete(r.datasets, d.URL())
	for i, u := range r.order {
		if u == d.URL() {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	d.Destroy(true)
	return nil
}

// Datasets returns the registered datasets in insertion order.
func (r *Registry) Datasets() []*Dataset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a := make([]*Dataset, 0, len(r.order))
	for _, u := range r.order {
		a = append(a, r.datasets[u])
	}
	return a
}

// List returns a snapshot of every dataset in insertion order.
func (r *Registry) List() []Info {
	datasets := r.Datasets()
	a := make([]Info, 0, len(datasets))
	for _, d := range datasets {
		a = append(a, d.Info())
	}
	return a
}

// LoadAll loads every dataset with at most concurrency loads in flight.
// Individual failures do not stop the others; they are joined into the
// returned error.
func (r *Registry) LoadAll(ctx context.Context, concurrency int) error {
	if concurrency <= 0 {
		concurrency = DefaultLoadConcurrency
	}

	var mu sync.Mutex
	var errs []error

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for _, d := range r.Datasets() {
		g.Go(func() error {
			if !d.Load(ctx) {
				mu.Lock()
				errs = append(errs, d.Err())
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// Close destroys every dataset without deleting cached data.
func (r *Registry) Close() {
	r.mu.Lock()
	datasets := make([]*Dataset, 0, len(r.order))
	for _, u := range r.order {
		datasets = append(datasets, r.datasets[u])
	}
	r.datasets = make(map[string]*Dataset)
	r.order = nil
	r.mu.Unlock()

	for _, d := range datasets {
		d.Destroy(false)
	}
}
