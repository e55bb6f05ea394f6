package mt19937

import (
	"errors"
	"fmt"
)

var (
	ErrWindowFull       = errors.New("observation window is full")
	ErrWindowIncomplete = errors.New("observation window is incomplete")
)

// Window collects consecutive raw outputs, in observation order, until
// there are exactly StateSize of them.
type Window struct {
	values [StateSize]uint32
	n      int
}

// Add appends one observation. It refuses anything past StateSize.
func (w *Window) Add(v uint32) error {
	if w.n >= StateSize {
		return ErrWindowFull
	}
	w.values[w.n] = v
	w.n++
	return nil
}

func (w *Window) Len() int       { return w.n }
func (w *Window) Remaining() int { return StateSize - w.n }
func (w *Window) Full() bool     { return w.n == StateSize }

// Clone reconstructs the generator that produced the window.
func (w *Window) Clone() (*Generator, error) {
	if !w.Full() {
		return nil, fmt.Errorf("%w: have %d of %d", ErrWindowIncomplete, w.n, StateSize)
	}
	return Reconstruct(w.values), nil
}

// Reconstruct untempers each output back into its state slot. The cursor is
// left at the end of the state, so the next Uint32 twists and yields the
// output that follows the last observed one.
func Reconstruct(outputs [StateSize]uint32) *Generator {
	g := &Generator{index: StateSize}
	for i, v := range outputs {
		g.state[i] = Untemper(v)
	}
	return g
}
