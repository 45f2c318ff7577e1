// Package tape records discrete solve steps for reverse-mode differentiation.
//
// A Tape is an explicit, passable resource. Solvers append Blocks while the
// tape is recording; the driver marks the Controls it wants sensitivities for,
// evaluates the recorded blocks backward and reads the sensitivities off the
// Controls before clearing the tape for the next segment.
//
//	tp.BeginRecording()
//	... solver appends blocks ...
//	tp.StopRecording()
//	tp.Mark(controls)
//	err := tp.EvaluateBackward()
//	dJdm := tp.Sensitivity(controls[0])
//	tp.Clear()
package tape
