package ecengine

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Allocator hands out scratch buffers for a single top-level operation.
// Buffers are word-aligned in size and tagged for accounting. Free receives
// buffers that have already been zeroed.
type Allocator interface {
	Alloc(tag string, size int) ([]byte, error)
	Free(tag string, b []byte)
}

const wordSize = 8

// HeapAllocator is the default Allocator. It bounds the bytes outstanding
// at any one time when Limit is positive.
type HeapAllocator struct {
	Limit int

	mu    sync.Mutex
	inUse int
	tags  map[string]int
}

// NewHeapAllocator returns an allocator bounded to limit bytes; zero means
// unbounded.
func NewHeapAllocator(limit int) *HeapAllocator {
	return &HeapAllocator{Limit: limit, tags: map[string]int{}}
}

// Alloc returns a zeroed buffer of size bytes.
func (h *HeapAllocator) Alloc(tag string, size int) ([]byte, error) {
	if size < 0 {
		return nil, makeError(ErrInvalidArgument, "negative scratch size")
	}
	rounded := (size + wordSize - 1) &^ (wordSize - 1)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Limit > 0 && h.inUse+rounded > h.Limit {
		str := fmt.Sprintf("scratch %q: %d bytes requested, %d of %d in use",
			tag, rounded, h.inUse, h.Limit)
		return nil, makeError(ErrScratchExhausted, str)
	}
	if h.tags == nil {
		h.tags = map[string]int{}
	}
	h.inUse += rounded
	h.tags[tag] += rounded
	return make([]byte, size, rounded), nil
}

// Free returns b to the allocator.
func (h *HeapAllocator) Free(tag string, b []byte) {
	rounded := cap(b)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inUse -= rounded
	if h.tags[tag] -= rounded; h.tags[tag] <= 0 {
		delete(h.tags, tag)
	}
}

// InUse returns the bytes currently outstanding.
func (h *HeapAllocator) InUse() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inUse
}

// workspace owns the named scratch buffers of one operation and zeroes them
// all on release.
type workspace struct {
	alloc Allocator
	curve *Curve
	bufs  []scratchBuf
}

type scratchBuf struct {
	tag string
	b   []byte
}

func newWorkspace(a Allocator, c *Curve) *workspace {
	return &workspace{alloc: a, curve: c}
}

// bytes returns a named zeroed buffer of n bytes.
func (w *workspace) bytes(tag string, n int) ([]byte, error) {
	b, err := w.alloc.Alloc(tag, n)
	if err != nil {
		var kind ErrorKind
		if errors.As(err, &kind) {
			return nil, err
		}
		return nil, errors.Wrapf(makeError(ErrScratchExhausted, err.Error()),
			"scratch %q", tag)
	}
	if len(b) != n {
		w.alloc.Free(tag, b)
		return nil, makeError(ErrInternal, fmt.Sprintf("scratch %q: "+
			"allocator returned %d bytes, want %d", tag, len(b), n))
	}
	w.bufs = append(w.bufs, scratchBuf{tag: tag, b: b})
	return b, nil
}

// scalar returns a named NBytes buffer.
func (w *workspace) scalar(tag string) ([]byte, error) {
	return w.bytes(tag, w.curve.NBytes)
}

// point returns a named point with NBytes coordinates in the requested
// byte order.
func (w *workspace) point(tag string, littleEndian bool) (*Point, error) {
	x, err := w.bytes(tag+".x", w.curve.NBytes)
	if err != nil {
		return nil, err
	}
	y, err := w.bytes(tag+".y", w.curve.NBytes)
	if err != nil {
		return nil, err
	}
	return &Point{X: x, Y: y, LittleEndian: littleEndian}, nil
}

// generator returns a named copy of the curve generator in native byte
// order.
func (w *workspace) generator(tag string) (*Point, error) {
	g, err := w.point(tag, w.curve.LittleEndian)
	if err != nil {
		return nil, err
	}
	copy(g.X, w.curve.G.X)
	copy(g.Y, w.curve.G.Y)
	return g, nil
}

// release zeroes every buffer and hands it back, newest first.
func (w *workspace) release() {
	for i := len(w.bufs) - 1; i >= 0; i-- {
		clearBytes(w.bufs[i].b)
		w.alloc.Free(w.bufs[i].tag, w.bufs[i].b)
	}
	w.bufs = nil
}
