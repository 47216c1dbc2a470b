package fut

import (
	"fmt"
	"math"
	"unsafe"
)

// Handle is an opaque pointer to a Futhark array.
type Handle = unsafe.Pointer

// ArrayBackend performs the C calls for one array type.
type ArrayBackend[T Element] interface {
	// New copies data into a fresh array of the given shape.
	New(data []T, shape []int64) (Handle, error)
	// Shape returns the dimensions of h.
	Shape(h Handle) []int64
	// Values copies the contents of h into dst and waits for completion.
	Values(h Handle, dst []T) error
	// Free releases h.
	Free(h Handle) error
}

// Array owns one Futhark array handle.
type Array[T Element] struct {
	backend  ArrayBackend[T]
	handle   Handle
	rank     int
	released bool
}

// NewArray copies data into a new array of rank dimensions. The shape must
// have exactly rank non-negative dimensions whose product is len(data).
func NewArray[T Element](backend ArrayBackend[T], rank int, data []T, shape ...int64) (*Array[T], error) {
	if err := CheckShape(rank, len(data), shape); err != nil {
		return nil, err
	}
	h, err := backend.New(data, shape)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, &ContextError{Op: "array allocation"}
	}
	return &Array[T]{backend: backend, handle: h, rank: rank}, nil
}

// Wrap takes ownership of a handle produced by an entry point.
func Wrap[T Element](backend ArrayBackend[T], h Handle, rank int) *Array[T] {
	return &Array[T]{backend: backend, handle: h, rank: rank}
}

// CheckShape validates a shape against a rank and an element count.
func CheckShape(rank, n int, shape []int64) error {
	fail := func(reason string) error {
		return &ShapeError{Rank: rank, Shape: shape, Len: n, Reason: reason}
	}
	if len(shape) != rank {
		return fail(fmt.Sprintf("expected %d dimensions, got %d", rank, len(shape)))
	}
	total := int64(1)
	for i, d := range shape {
		if d < 0 {
			return fail(fmt.Sprintf("dimension %d is negative", i))
		}
		if d != 0 && total > math.MaxInt64/d {
			return fail("element count overflows")
		}
		total *= d
	}
	if total != int64(n) {
		return fail(fmt.Sprintf("shape holds %d elements", total))
	}
	return nil
}

// Rank returns the number of dimensions, or 0 for a nil array.
func (a *Array[T]) Rank() int {
	if a == nil {
		return 0
	}
	return a.rank
}

// Released reports whether Free has been called.
func (a *Array[T]) Released() bool { return a != nil && a.released }

// Handle returns the raw handle for passing to an entry point.
func (a *Array[T]) Handle() (Handle, error) {
	if a == nil {
		return nil, ErrNilArray
	}
	if a.released {
		return nil, ErrReleased
	}
	return a.handle, nil
}

// Shape returns a copy of the array's dimensions.
func (a *Array[T]) Shape() ([]int64, error) {
	if a == nil {
		return nil, ErrNilArray
	}
	if a.released {
		return nil, ErrReleased
	}
	s := a.backend.Shape(a.handle)
	out := make([]int64, len(s))
	copy(out, s)
	return out, nil
}

// Len returns the total number of elements.
func (a *Array[T]) Len() (int, error) {
	shape, err := a.Shape()
	if err != nil {
		return 0, err
	}
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n, nil
}

// Values copies the array into a new row-major slice.
func (a *Array[T]) Values() ([]T, error) {
	n, err := a.Len()
	if err != nil {
		return nil, err
	}
	out := make([]T, n)
	if err := a.backend.Values(a.handle, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CopyTo copies the array into dst, which must hold exactly Len elements.
func (a *Array[T]) CopyTo(dst []T) error {
	shape, err := a.Shape()
	if err != nil {
		return err
	}
	if err := CheckShape(a.rank, len(dst), shape); err != nil {
		return err
	}
	return a.backend.Values(a.handle, dst)
}

// Free releases the handle. Only the first call reaches the backend.
func (a *Array[T]) Free() error {
	if a == nil || a.released {
		return nil
	}
	a.released = true
	h := a.handle
	a.handle = nil
	return a.backend.Free(h)
}
