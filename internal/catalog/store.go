// Package catalog holds the categories and items available to the terminal for one session.
package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fjod/billflow/internal/domain"
	"github.com/fjod/billflow/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	cacheTimeout = time.Second
	fetchTimeout = 30 * time.Second
)

// Source is the backend catalog API.
type Source interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListItems(ctx context.Context) ([]domain.CatalogItem, error)
}

type Snapshot struct {
	Categories []domain.Category    `json:"categories"`
	Items      []domain.CatalogItem `json:"items"`
	LoadedAt   time.Time            `json:"loaded_at"`
}

// Store loads the catalog once and serves it read-only afterwards.
// A failed list degrades to empty without affecting the other list.
type Store struct {
	source Source
	cache  Cache
	scope  string
	log    *zap.Logger
	sfg    singleflight.Group

	mu   sync.RWMutex
	snap *Snapshot
}

// NewStore builds a store over source. cache may be nil.
func NewStore(source Source, cache Cache, scope string, log *zap.Logger) *Store {
	if scope == "" {
		scope = "default"
	}
	return &Store{
		source: source,
		cache:  cache,
		scope:  scope,
		log:    logger.OrNop(log),
	}
}

// Load returns the session snapshot, fetching it on first use.
// Concurrent first calls share one fetch, which outlives the caller's context.
func (s *Store) Load(ctx context.Context) *Snapshot {
	if snap := s.current(); snap != nil {
		return snap
	}

	v, _, _ := s.sfg.Do(s.scope, func() (interface{}, error) {
		if snap := s.current(); snap != nil {
			return snap, nil
		}
		snap, _ := s.fetch(ctx)
		s.mu.Lock()
		s.snap = snap
		s.mu.Unlock()
		return snap, nil
	})
	return v.(*Snapshot)
}

// Refresh drops the cached copy and reloads from the backend. An incomplete
// reload keeps the previous snapshot.
func (s *Store) Refresh(ctx context.Context) *Snapshot {
	v, _, _ := s.sfg.Do("refresh:"+s.scope, func() (interface{}, error) {
		if s.cache != nil {
			cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
			if err := s.cache.Delete(cctx, s.scope); err != nil {
				s.log.Warn("catalog cache delete failed", zap.Error(err))
			}
			cancel()
		}

		snap, complete := s.fetch(ctx)
		s.mu.Lock()
		defer s.mu.Unlock()
		if !complete && s.snap != nil {
			s.log.Warn("catalog refresh incomplete, keeping previous snapshot",
				zap.Time("loaded_at", s.snap.LoadedAt))
			return s.snap, nil
		}
		s.snap = snap
		return snap, nil
	})
	return v.(*Snapshot)
}

func (s *Store) Categories(ctx context.Context) []domain.Category {
	return s.Load(ctx).Categories
}

func (s *Store) Items(ctx context.Context) []domain.CatalogItem {
	return s.Load(ctx).Items
}

func (s *Store) Item(ctx context.Context, id string) (domain.CatalogItem, bool) {
	for _, it := range s.Load(ctx).Items {
		if it.ID == id {
			return it, true
		}
	}
	return domain.CatalogItem{}, false
}

// Filter returns items in categoryID (all categories when empty) whose name
// contains query, ignoring case.
func (s *Store) Filter(ctx context.Context, categoryID, query string) []domain.CatalogItem {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.CatalogItem, 0)
	for _, it := range s.Load(ctx).Items {
		if categoryID != "" && it.CategoryID != categoryID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(it.Name), query) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (s *Store) current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// fetch reports whether both lists loaded. Cancelling parent does not stop it;
// only fetchTimeout does.
func (s *Store) fetch(parent context.Context) (*Snapshot, bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), fetchTimeout)
	defer cancel()
	log := logger.WithTrace(ctx, s.log)

	if s.cache != nil {
		cctx, cancelGet := context.WithTimeout(ctx, cacheTimeout)
		snap, err := s.cache.Get(cctx, s.scope)
		cancelGet()
		if err == nil {
			log.Debug("catalog served from cache", zap.String("scope", s.scope))
			return snap, true
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Warn("catalog cache get failed", zap.Error(err))
		}
	}

	snap := &Snapshot{LoadedAt: time.Now().UTC()}
	complete := true

	categories, err := s.source.ListCategories(ctx)
	if err != nil {
		log.Warn("loading categories failed, continuing with none", zap.Error(err))
		categories, complete = []domain.Category{}, false
	}
	items, err := s.source.ListItems(ctx)
	if err != nil {
		log.Warn("loading items failed, continuing with none", zap.Error(err))
		items, complete = []domain.CatalogItem{}, false
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	if items == nil {
		items = []domain.CatalogItem{}
	}
	snap.Categories, snap.Items = categories, items

	log.Info("catalog loaded",
		zap.Int("categories", len(categories)),
		zap.Int("items", len(items)),
		zap.Bool("complete", complete))

	// partial snapshots are kept for this session only
	if complete && s.cache != nil {
		cctx, cancelSet := context.WithTimeout(ctx, cacheTimeout)
		if err := s.cache.Set(cctx, s.scope, snap); err != nil {
			log.Warn("catalog cache set failed", zap.Error(err))
		}
		cancelSet()
	}
	return snap, complete
}
