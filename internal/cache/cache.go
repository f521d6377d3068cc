// Package cache provides the process-wide LRU holding content-hashed
// templates and derived station configurations.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/voltbench/ocpp-sim/internal/domain"
	"github.com/voltbench/ocpp-sim/internal/template"
)

const defaultSize = 256

// Cache is a process-wide LRU keyed by content hash. Mutation is serialized
// by the underlying lru implementation; the singleton is guarded for
// Init/Teardown races.
type Cache struct {
	templates      *lru.Cache[string, *template.Template]
	configurations *lru.Cache[string, *domain.StationConfiguration]
}

var (
	mu       sync.Mutex
	instance *Cache
)

// Init creates the process-wide cache. Calling Init twice returns the same
// instance.
func Init(size int) (*Cache, error) {
	mu.Lock()
	defer mu.Unlock()
	if instance != nil {
		return instance, nil
	}
	if size <= 0 {
		size = defaultSize
	}
	templates, err := lru.New[string, *template.Template](size)
	if err != nil {
		return nil, err
	}
	configurations, err := lru.New[string, *domain.StationConfiguration](size)
	if err != nil {
		return nil, err
	}
	instance = &Cache{templates: templates, configurations: configurations}
	return instance, nil
}

// Get returns the process-wide cache, initializing it with defaults when
// needed.
func Get() *Cache {
	mu.Lock()
	inst := instance
	mu.Unlock()
	if inst != nil {
		return inst
	}
	c, _ := Init(defaultSize)
	return c
}

// Teardown drops the process-wide cache. Intended for tests and shutdown.
func Teardown() {
	mu.Lock()
	defer mu.Unlock()
	if instance != nil {
		instance.templates.Purge()
		instance.configurations.Purge()
		instance = nil
	}
}

func (c *Cache) GetTemplate(hash string) (*template.Template, bool) {
	return c.templates.Get(hash)
}

func (c *Cache) SetTemplate(hash string, t *template.Template) {
	c.templates.Add(hash, t)
}

func (c *Cache) GetConfiguration(hash string) (*domain.StationConfiguration, bool) {
	return c.configurations.Get(hash)
}

func (c *Cache) SetConfiguration(hash string, cfg *domain.StationConfiguration) {
	c.configurations.Add(hash, cfg)
}

func (c *Cache) DeleteConfiguration(hash string) {
	c.configurations.Remove(hash)
}
