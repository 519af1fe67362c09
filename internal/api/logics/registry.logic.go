package logics

import (
	"strings"

	"go-history/internal/utils"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
)

// ViewFactory builds the controller of a newly created view.
type ViewFactory func(viewID string) *HistoryController

// ViewRegistry keeps the most recently used history views. The least
// recently used view is evicted once capacity is reached.
type ViewRegistry struct {
	views   *lru.Cache
	factory ViewFactory
}

func NewViewRegistry(capacity int, factory ViewFactory) (*ViewRegistry, error) {
	if capacity <= 0 {
		capacity = 256
	}
	cache, err := lru.NewWithEvict(capacity, func(key, _ interface{}) {
		utils.LogDebug("history view %v evicted", key)
	})
	if err != nil {
		return nil, utils.NewConfigError("REGISTRY_FAILED", "failed to create view registry", err)
	}
	return &ViewRegistry{views: cache, factory: factory}, nil
}

// Create registers a new view under a fresh id.
func (r *ViewRegistry) Create() *HistoryController {
	id := uuid.NewString()
	c := r.factory(id)
	r.views.Add(id, c)
	return c
}

// Get returns the view registered under id.
func (r *ViewRegistry) Get(id string) (*HistoryController, error) {
	id = strings.TrimSpace(id)
	if v, ok := r.views.Get(id); ok {
		return v.(*HistoryController), nil
	}
	return nil, utils.NewUnknownViewError(id)
}

// Delete drops the view. It reports whether the view existed.
func (r *ViewRegistry) Delete(id string) bool {
	if !r.views.Contains(id) {
		return false
	}
	r.views.Remove(id)
	return true
}

func (r *ViewRegistry) Len() int { return r.views.Len() }
