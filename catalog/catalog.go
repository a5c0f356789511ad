// Package catalog caches the platform's node-type schemas.
//
// A Cache is built once and passed to whatever needs schemas. The first
// lookup loads the full list; later lookups are served from memory until
// Refresh is called, the TTL expires or a scheduled refresh runs. Schemas
// returned by the cache are shared and must be treated as read-only;
// flowise.BuildNode copies what it uses.
package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	flowise "github.com/goliatone/go-flowise"
	"github.com/goliatone/go-flowise/cron"
	"github.com/goliatone/go-flowise/logging"
)

// Source fetches schemas from the platform. *client.Client satisfies it.
type Source interface {
	ListNodes(ctx context.Context) ([]*flowise.Schema, error)
	GetNode(ctx context.Context, name string) (*flowise.Schema, error)
}

type Option func(*Cache)

func WithLogger(l logging.Logger) Option {
	return func(c *Cache) {
		c.logger = logging.Normalize(l)
	}
}

// WithTTL reloads the list on the next lookup once it is older than ttl.
// Zero keeps it until an explicit refresh.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

type index struct {
	all        []*flowise.Schema
	byName     map[string]*flowise.Schema
	categories []string
	loadedAt   time.Time
}

// Cache is safe for concurrent use. Reads never observe a partially built
// index: refreshes build a new one and swap it in.
type Cache struct {
	src    Source
	logger logging.Logger
	ttl    time.Duration
	now    func() time.Time

	loadMu sync.Mutex
	mu     sync.RWMutex
	idx    *index
}

// New builds an empty cache over src.
func New(src Source, opts ...Option) *Cache {
	c := &Cache{
		src:    src,
		logger: logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// All returns every schema, loading or reloading as needed.
func (c *Cache) All(ctx context.Context, forceRefresh bool) ([]*flowise.Schema, error) {
	idx, err := c.ensure(ctx, forceRefresh)
	if err != nil {
		return nil, err
	}
	return append([]*flowise.Schema(nil), idx.all...), nil
}

// Refresh reloads the full list unconditionally.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err := c.ensure(ctx, true)
	return err
}

// Lookup returns the schema for name. Names missing from the bulk list are
// fetched individually; a failed individual fetch counts as absent. Only a
// failed bulk load is returned as an error.
func (c *Cache) Lookup(ctx context.Context, name string) (*flowise.Schema, bool, error) {
	idx, err := c.ensure(ctx, false)
	if err != nil {
		return nil, false, err
	}

	c.mu.RLock()
	schema, ok := idx.byName[name]
	c.mu.RUnlock()
	if ok {
		return schema, true, nil
	}

	schema, err = c.src.GetNode(ctx, name)
	if err != nil || schema == nil || schema.Name == "" {
		if err != nil {
			c.logger.Debug("schema %q not available: %v", name, err)
		}
		return nil, false, nil
	}

	c.mu.Lock()
	// the index may have been swapped by a refresh meanwhile
	if c.idx != nil {
		c.idx.byName[name] = schema
	}
	c.mu.Unlock()
	return schema, true, nil
}

// Categories returns the sorted distinct category names.
func (c *Cache) Categories(ctx context.Context) ([]string, error) {
	idx, err := c.ensure(ctx, false)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), idx.categories...), nil
}

// ByCategory returns the schemas in category, matched exactly.
func (c *Cache) ByCategory(ctx context.Context, category string) ([]*flowise.Schema, error) {
	idx, err := c.ensure(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]*flowise.Schema, 0)
	for _, s := range idx.all {
		if s.Category == category {
			out = append(out, s)
		}
	}
	return out, nil
}

// Search matches query case-insensitively against name, label and
// description.
func (c *Cache) Search(ctx context.Context, query string) ([]*flowise.Schema, error) {
	idx, err := c.ensure(ctx, false)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	out := make([]*flowise.Schema, 0)
	for _, s := range idx.all {
		if strings.Contains(strings.ToLower(s.Name), q) ||
			strings.Contains(strings.ToLower(s.Label), q) ||
			strings.Contains(strings.ToLower(s.Description), q) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Loaded reports whether the bulk list has been fetched.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idx != nil
}

// ScheduleRefresh reloads the cache on expr using scheduler.
func (c *Cache) ScheduleRefresh(scheduler *cron.Scheduler, expr string) (cron.Handle, error) {
	return scheduler.Schedule(cron.JobConfig{
		Name:       "catalog.refresh",
		Expression: expr,
		Timeout:    time.Minute,
		MaxRetries: 1,
	}, c.Refresh)
}

func (c *Cache) current(force bool) *index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if force || c.idx == nil {
		return nil
	}
	if c.ttl > 0 && c.now().Sub(c.idx.loadedAt) > c.ttl {
		return nil
	}
	return c.idx
}

func (c *Cache) ensure(ctx context.Context, force bool) (*index, error) {
	if idx := c.current(force); idx != nil {
		return idx, nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	// another caller may have loaded while we waited
	if !force {
		if idx := c.current(false); idx != nil {
			return idx, nil
		}
	}

	schemas, err := c.src.ListNodes(ctx)
	if err != nil {
		c.logger.Error("load node schemas: %v", err)
		return nil, err
	}

	idx := buildIndex(schemas, c.now())
	c.mu.Lock()
	c.idx = idx
	c.mu.Unlock()

	c.logger.Info("loaded %d node schemas in %d categories", len(idx.all), len(idx.categories))
	return idx, nil
}

func buildIndex(schemas []*flowise.Schema, now time.Time) *index {
	idx := &index{
		all:      make([]*flowise.Schema, 0, len(schemas)),
		byName:   make(map[string]*flowise.Schema, len(schemas)),
		loadedAt: now,
	}
	seen := map[string]struct{}{}
	for _, s := range schemas {
		if s == nil {
			continue
		}
		idx.all = append(idx.all, s)
		if s.Name != "" {
			idx.byName[s.Name] = s
		}
		if s.Category != "" {
			if _, ok := seen[s.Category]; !ok {
				seen[s.Category] = struct{}{}
				idx.categories = append(idx.categories, s.Category)
			}
		}
	}
	sort.Strings(idx.categories)
	if idx.categories == nil {
		idx.categories = []string{}
	}
	return idx
}
