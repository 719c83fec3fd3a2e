package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lorancew-l/proto-testing-sub000/internal/engine"
)

// CompiledCache keeps compiled research graphs in memory, keyed by id@revision
type CompiledCache interface {
	Get(key string) (*engine.Compiled, bool)
	Add(key string, compiled *engine.Compiled)
	Len() int
}

type compiledCache struct {
	lru *lru.Cache[string, *engine.Compiled]
}

// NewCompiledCache creates an LRU cache holding at most size compiled researches
func NewCompiledCache(size int) (CompiledCache, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, *engine.Compiled](size)
	if err != nil {
		return nil, err
	}
	return &compiledCache{lru: c}, nil
}

func (c *compiledCache) Get(key string) (*engine.Compiled, bool) {
	return c.lru.Get(key)
}

func (c *compiledCache) Add(key string, compiled *engine.Compiled) {
	c.lru.Add(key, compiled)
}

func (c *compiledCache) Len() int {
	return c.lru.Len()
}
