package cache

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// expiryHeader is the unix-nano expiry stored ahead of the vector; 0 never expires
const expiryHeader = 8

// DiskCache persists vectors as <dir>/<model>/<text hash>.vec so they survive
// restarts. Evicting a model removes its directory.
type DiskCache struct {
	dir string
	ttl time.Duration
}

// NewDiskCache creates a disk cache rooted at dir ("~" expands to the home directory)
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	if strings.HasPrefix(dir, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[1:])
		}
	}
	return &DiskCache{dir: dir, ttl: ttl}
}

// Get reads a vector. Expired or corrupt files are removed and reported as a miss.
func (c *DiskCache) Get(embeddingModel, text string) ([]float32, bool) {
	path := c.path(embeddingModel, text)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	if len(data) <= expiryHeader {
		_ = os.Remove(path)
		return nil, false
	}

	if exp := int64(binary.LittleEndian.Uint64(data)); exp != 0 && time.Now().UnixNano() > exp {
		_ = os.Remove(path)
		return nil, false
	}
	vec, ok := decodeVector(data[expiryHeader:])
	if !ok {
		_ = os.Remove(path)
		return nil, false
	}
	return vec, true
}

// Set writes a vector through a temp file so readers never see a partial entry
func (c *DiskCache) Set(embeddingModel, text string, vec []float32) error {
	if len(vec) == 0 {
		return ErrEmptyVector
	}

	var exp int64
	if c.ttl > 0 {
		exp = time.Now().Add(c.ttl).UnixNano()
	}
	data := make([]byte, expiryHeader, expiryHeader+len(vec)*4)
	binary.LittleEndian.PutUint64(data, uint64(exp))
	data = append(data, encodeVector(vec)...)

	dir := c.modelDir(embeddingModel)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".vec-*")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(embeddingModel, text)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}

// Evict removes the model's directory
func (c *DiskCache) Evict(embeddingModel string) (int, error) {
	dir := c.modelDir(embeddingModel)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".vec") {
			n++
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return 0, fmt.Errorf("remove cache dir: %w", err)
	}
	return n, nil
}

func (c *DiskCache) modelDir(embeddingModel string) string {
	return filepath.Join(c.dir, safeName(embeddingModel))
}

func (c *DiskCache) path(embeddingModel, text string) string {
	return filepath.Join(c.modelDir(embeddingModel), textHash(text)+".vec")
}

// safeName maps a model name such as "nomic-embed-text:latest" to a directory name
func safeName(name string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, name)
	if s == "" || strings.Trim(s, ".") == "" {
		return "_"
	}
	return s
}
