package cache

import "time"

// LayeredCache checks layers in order and promotes hits into the faster layers
type LayeredCache struct {
	layers []Cache
}

// NewLayeredCache creates a cache over layers, fastest first
func NewLayeredCache(layers ...Cache) *LayeredCache {
	return &LayeredCache{layers: layers}
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	for i, layer := range c.layers {
		val, found := layer.Get(key)
		if !found {
			continue
		}
		for _, faster := range c.layers[:i] {
			_ = faster.Set(key, val, 0)
		}
		return val, true
	}
	return nil, false
}

func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	for _, layer := range c.layers {
		if err := layer.Set(key, value, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (c *LayeredCache) Delete(key string) error {
	var firstErr error
	for _, layer := range c.layers {
		if err := layer.Delete(key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *LayeredCache) Clear() error {
	var firstErr error
	for _, layer := range c.layers {
		if err := layer.Clear(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
