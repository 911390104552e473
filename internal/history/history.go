// Package history keeps bounded undo and redo stacks of canvas snapshots.
package history

import "github.com/ayusman/mudra/internal/canvas"

// DefaultDepth is the number of snapshots kept on each stack.
const DefaultDepth = 10

// Manager holds the undo and redo stacks. It never mutates a canvas it did
// not copy itself; installing a returned snapshot is the caller's job.
type Manager struct {
	depth int
	undo  []*canvas.Canvas
	redo  []*canvas.Canvas
}

// New creates a Manager keeping at most depth snapshots per stack.
func New(depth int) *Manager {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Manager{
		depth: depth,
		undo:  make([]*canvas.Canvas, 0, depth),
		redo:  make([]*canvas.Canvas, 0, depth),
	}
}

// push appends c to stack, evicting the oldest entry past depth.
func (m *Manager) push(stack []*canvas.Canvas, c *canvas.Canvas) []*canvas.Canvas {
	if len(stack) == m.depth {
		stack[0] = nil
		copy(stack, stack[1:])
		stack = stack[:m.depth-1]
	}
	return append(stack, c)
}

func pop(stack []*canvas.Canvas) ([]*canvas.Canvas, *canvas.Canvas) {
	n := len(stack) - 1
	top := stack[n]
	stack[n] = nil
	return stack[:n], top
}

// OnCommit records snapshot, the canvas as it was before a committed action.
// A copy is stored and the redo stack is cleared.
func (m *Manager) OnCommit(snapshot *canvas.Canvas) {
	m.undo = m.push(m.undo, snapshot.Clone())
	clear(m.redo)
	m.redo = m.redo[:0]
}

// Undo returns the previous canvas and saves a copy of current for redo.
// It returns false when there is nothing to undo.
func (m *Manager) Undo(current *canvas.Canvas) (*canvas.Canvas, bool) {
	if len(m.undo) == 0 {
		return nil, false
	}
	var prev *canvas.Canvas
	m.undo, prev = pop(m.undo)
	m.redo = m.push(m.redo, current.Clone())
	return prev, true
}

// Redo returns the canvas most recently undone and saves a copy of current
// for undo. It returns false when there is nothing to redo.
func (m *Manager) Redo(current *canvas.Canvas) (*canvas.Canvas, bool) {
	if len(m.redo) == 0 {
		return nil, false
	}
	var next *canvas.Canvas
	m.redo, next = pop(m.redo)
	m.undo = m.push(m.undo, current.Clone())
	return next, true
}

// Reset drops both stacks.
func (m *Manager) Reset() {
	clear(m.undo)
	clear(m.redo)
	m.undo = m.undo[:0]
	m.redo = m.redo[:0]
}

// Depth returns the per-stack capacity.
func (m *Manager) Depth() int { return m.depth }

// Len returns the number of undo snapshots.
func (m *Manager) Len() int { return len(m.undo) }

// RedoLen returns the number of redo snapshots.
func (m *Manager) RedoLen() int { return len(m.redo) }

// CanUndo reports whether Undo would return a snapshot.
func (m *Manager) CanUndo() bool { return len(m.undo) > 0 }

// CanRedo reports whether Redo would return a snapshot.
func (m *Manager) CanRedo() bool { return len(m.redo) > 0 }

// Bytes returns the pixel memory held by both stacks.
func (m *Manager) Bytes() int {
	n := 0
	for _, c := range m.undo {
		n += c.Bytes()
	}
	for _, c := range m.redo {
		n += c.Bytes()
	}
	return n
}
