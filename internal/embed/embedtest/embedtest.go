// Package embedtest provides a deterministic offline Embedder for tests.
package embedtest

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// Dimensions of vectors produced by Embedder
const Dimensions = 256

// ErrUnavailable is returned while the embedder is set to fail
var ErrUnavailable = errors.New("embedding service unavailable")

// Embedder hashes words into a bag-of-words vector. Texts sharing words have
// positive cosine similarity, which is enough to exercise retrieval end to end.
type Embedder struct {
	Name string

	mu      sync.Mutex
	calls   int
	failing bool
	failOn  map[string]bool
}

// New returns an embedder named "embedtest"
func New() *Embedder {
	return &Embedder{Name: "embedtest"}
}

// Model returns the embedder name
func (e *Embedder) Model() string {
	if e.Name == "" {
		return "embedtest"
	}
	return e.Name
}

// SetFailing makes every subsequent call fail (or succeed again)
func (e *Embedder) SetFailing(failing bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failing = failing
}

// FailOn makes calls fail for texts containing substr
func (e *Embedder) FailOn(substr string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failOn == nil {
		e.failOn = make(map[string]bool)
	}
	e.failOn[substr] = true
}

// Calls returns how many times Embed was invoked
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Embed returns the hashed bag-of-words vector for text
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.calls++
	failing := e.failing
	for substr := range e.failOn {
		if strings.Contains(text, substr) {
			failing = true
		}
	}
	e.mu.Unlock()

	if failing {
		return nil, ErrUnavailable
	}

	vec := make([]float32, Dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%Dimensions]++
	}
	return vec, nil
}
