package tape

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrTapeBusy is returned when a driver tries to acquire a tape already in use
	ErrTapeBusy = errors.New("tape is already in use")
	// ErrRecording is returned when evaluating backward while still recording
	ErrRecording = errors.New("tape is recording")
)

// Tape is the record-and-replay differentiation primitive
type Tape interface {
	BeginRecording()
	StopRecording()
	Recording() bool

	// Record appends b if the tape is recording and reports whether it did
	Record(b Block) bool
	Blocks() []Block

	// Mark restricts the next backward evaluation to blocks depending on controls
	Mark(controls []*Control)
	EvaluateBackward() error
	Sensitivity(c *Control) *mat.VecDense

	// Clear drops all recorded blocks and markings
	Clear()

	// Acquire reserves the tape for one driver run, Release returns it
	Acquire() error
	Release()
}

// WorkingTape is the in-memory Tape implementation
type WorkingTape struct {
	blocks    []Block
	recording bool
	marked    map[Block]bool
	busy      bool
}

// NewWorkingTape returns an empty, non-recording tape
func NewWorkingTape() *WorkingTape {
	return &WorkingTape{}
}

func (wt *WorkingTape) BeginRecording() { wt.recording = true }
func (wt *WorkingTape) StopRecording()  { wt.recording = false }
func (wt *WorkingTape) Recording() bool { return wt.recording }

func (wt *WorkingTape) Record(b Block) bool {
	if !wt.recording {
		return false
	}
	wt.blocks = append(wt.blocks, b)
	return true
}

func (wt *WorkingTape) Blocks() []Block {
	return wt.blocks
}

// Mark flags every block reachable forward from the controls
func (wt *WorkingTape) Mark(controls []*Control) {
	reached := make(map[*Variable]bool, len(controls))
	for _, c := range controls {
		reached[c.Var] = true
	}
	wt.marked = make(map[Block]bool, len(wt.blocks))
	for _, b := range wt.blocks {
		for _, dep := range b.Dependencies() {
			if reached[dep] {
				wt.marked[b] = true
				break
			}
		}
		if wt.marked[b] {
			for _, out := range b.Outputs() {
				reached[out] = true
			}
		}
	}
}

// EvaluateBackward runs the adjoint of every marked block in reverse order,
// or of every block if Mark has not been called since the last Clear
func (wt *WorkingTape) EvaluateBackward() error {
	if wt.recording {
		return ErrRecording
	}
	for i := len(wt.blocks) - 1; i >= 0; i-- {
		b := wt.blocks[i]
		if wt.marked != nil && !wt.marked[b] {
			continue
		}
		if err := b.EvaluateAdjoint(); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}
	return nil
}

func (wt *WorkingTape) Sensitivity(c *Control) *mat.VecDense {
	return c.Var.AdjointValue()
}

func (wt *WorkingTape) Clear() {
	wt.blocks = nil
	wt.marked = nil
}

func (wt *WorkingTape) Acquire() error {
	if wt.busy {
		return ErrTapeBusy
	}
	wt.busy = true
	return nil
}

func (wt *WorkingTape) Release() {
	wt.busy = false
}

// SolveBlocks returns the solve blocks tagged with field, in recording order
func SolveBlocks(t Tape, field string) []*SolveBlock {
	var sbs []*SolveBlock
	for _, b := range t.Blocks() {
		if sb, ok := b.(*SolveBlock); ok && sb.Tag == field {
			sbs = append(sbs, sb)
		}
	}
	return sbs
}

// WithoutRecording runs fn with recording paused, restoring the previous state
func WithoutRecording(t Tape, fn func() error) error {
	was := t.Recording()
	t.StopRecording()
	defer func() {
		if was {
			t.BeginRecording()
		}
	}()
	return fn()
}
