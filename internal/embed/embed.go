// Package embed turns short texts into dense sentence vectors. The production
// Embedder runs a MiniLM-style ONNX model in process; Lazy defers loading it
// until the first request needs it.
package embed

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
)

// Embedder maps text to a fixed-length vector. Implementations must be safe
// for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrDimensionMismatch is returned by Cosine for vectors of different length.
var ErrDimensionMismatch = errors.New("embed: vector dimension mismatch")

// Cosine returns the cosine similarity of a and b. A zero vector has
// similarity 0 with everything.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// ─── LAZY ─────────────────────────────────────────────────────────────────────

// Lazy builds its Embedder on the first Embed call. The constructor runs at
// most once even under concurrent first use; if it fails, that error is
// returned to every later caller without retrying.
type Lazy struct {
	load func() (Embedder, error)

	once sync.Once
	emb  Embedder
	err  error
}

// NewLazy returns a Lazy that will call load once.
func NewLazy(load func() (Embedder, error)) *Lazy {
	return &Lazy{load: load}
}

func (l *Lazy) get() (Embedder, error) {
	l.once.Do(func() {
		l.emb, l.err = l.load()
		if l.err == nil && l.emb == nil {
			l.err = errors.New("embed: loader returned no embedder")
		}
	})
	return l.emb, l.err
}

// Embed loads the underlying model if needed and delegates to it.
func (l *Lazy) Embed(ctx context.Context, text string) ([]float32, error) {
	emb, err := l.get()
	if err != nil {
		return nil, err
	}
	return emb.Embed(ctx, text)
}

// ErrClosed is returned by Embed after Close.
var ErrClosed = errors.New("embed: closed")

// Close releases the loaded embedder if it holds resources. A Lazy that never
// loaded stays unloaded: later Embed calls return ErrClosed.
func (l *Lazy) Close() error {
	l.once.Do(func() { l.err = ErrClosed })
	if c, ok := l.emb.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
