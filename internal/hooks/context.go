package hooks

import (
	"slices"
	"sync"
)

// RunContext is the key/value store shared by plugins within a run.
//
// It is safe for concurrent use: ConcurrentAwaited callbacks may touch it
// from several goroutines.
type RunContext struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewRunContext creates an empty RunContext.
func NewRunContext() *RunContext {
	return &RunContext{values: make(map[string]any)}
}

// Get returns the value stored under key.
func (c *RunContext) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// GetString returns the value under key if it is a string.
func (c *RunContext) GetString(key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set stores value under key, replacing any previous value.
func (c *RunContext) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Delete removes key.
func (c *RunContext) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
}

// Keys returns the stored keys in sorted order.
func (c *RunContext) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (c *RunContext) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]any)
}
