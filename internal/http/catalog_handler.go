package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/billflow/internal/catalog"
	"github.com/fjod/billflow/internal/domain"
)

type CatalogStore interface {
	Categories(ctx context.Context) []domain.Category
	Filter(ctx context.Context, categoryID, query string) []domain.CatalogItem
	Item(ctx context.Context, id string) (domain.CatalogItem, bool)
	Refresh(ctx context.Context) *catalog.Snapshot
}

type CatalogHandler struct {
	store   CatalogStore
	timeout time.Duration
}

func NewCatalogHandler(store CatalogStore, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{store: store, timeout: timeout}
}

type catalogSnapshotDTO struct {
	Categories []domain.Category    `json:"categories"`
	Items      []domain.CatalogItem `json:"items"`
	LoadedAt   time.Time            `json:"loaded_at"`
}

// GET /api/v1/catalog/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	respondJSON(w, http.StatusOK, h.store.Categories(ctx))
}

// GET /api/v1/catalog/items?category=&q=
func (h *CatalogHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	respondJSON(w, http.StatusOK, h.store.Filter(ctx, q.Get("category"), q.Get("q")))
}

// POST /api/v1/catalog/refresh
func (h *CatalogHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	snap := h.store.Refresh(ctx)
	respondJSON(w, http.StatusOK, catalogSnapshotDTO{
		Categories: snap.Categories,
		Items:      snap.Items,
		LoadedAt:   snap.LoadedAt,
	})
}
