package cache

import (
	"time"
)

// LayeredCache fronts the disk cache with a memory cache so vectors survive restarts
type LayeredCache struct {
	memory *MemoryCache
	disk   *DiskCache
}

// NewLayeredCache creates a layered cache. memoryTTL bounds how long a vector
// stays in process memory; diskTTL how long it stays on disk.
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

// Get checks memory first, then disk, promoting disk hits
func (c *LayeredCache) Get(embeddingModel, text string) ([]float32, bool) {
	if vec, found := c.memory.Get(embeddingModel, text); found {
		return vec, true
	}
	vec, found := c.disk.Get(embeddingModel, text)
	if !found {
		return nil, false
	}
	_ = c.memory.Set(embeddingModel, text, vec)
	return vec, true
}

// Set stores the vector in both layers
func (c *LayeredCache) Set(embeddingModel, text string, vec []float32) error {
	if err := c.memory.Set(embeddingModel, text, vec); err != nil {
		return err
	}
	return c.disk.Set(embeddingModel, text, vec)
}

// Evict drops the model from both layers. The count is the disk count, which
// covers everything the memory layer holds.
func (c *LayeredCache) Evict(embeddingModel string) (int, error) {
	inMemory, _ := c.memory.Evict(embeddingModel)
	onDisk, err := c.disk.Evict(embeddingModel)
	if err != nil {
		return inMemory, err
	}
	if onDisk < inMemory {
		return inMemory, nil
	}
	return onDisk, nil
}
