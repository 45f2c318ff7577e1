// Package solution holds the fixed-shape archive of exported snapshots
// produced by forward and adjoint runs.
package solution

import (
	"fmt"

	"github.com/notargets/DGAdjoint/fem"
)

// Label identifies one kind of snapshot
type Label uint8

const (
	Forward Label = iota
	ForwardOld
	Adjoint
	AdjointNext
	AdjointAction
	numLabels
)

func (l Label) String() string {
	switch l {
	case Forward:
		return "forward"
	case ForwardOld:
		return "forward_old"
	case Adjoint:
		return "adjoint"
	case AdjointNext:
		return "adjoint_next"
	case AdjointAction:
		return "adjoint_action"
	}
	return fmt.Sprintf("Label(%d)", uint8(l))
}

// Labels lists every label in order
func Labels() []Label {
	return []Label{Forward, ForwardOld, Adjoint, AdjointNext, AdjointAction}
}

// ParseLabel is the inverse of Label.String
func ParseLabel(s string) (Label, error) {
	for _, l := range Labels() {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown solution label %q", s)
}

// FieldSolutions holds, per label, a [segment][export] table of snapshots of one field
type FieldSolutions struct {
	Field   string
	enabled [numLabels]bool
	values  [numLabels][][]*fem.Function
}

// Has reports whether label l is stored for the field
func (fs *FieldSolutions) Has(l Label) bool {
	return l < numLabels && fs.enabled[l]
}

// Disable drops label l; its table reads as absent from then on
func (fs *FieldSolutions) Disable(l Label) {
	if l < numLabels {
		fs.enabled[l] = false
		fs.values[l] = nil
	}
}

// Labels lists the stored labels
func (fs *FieldSolutions) Labels() []Label {
	var ls []Label
	for _, l := range Labels() {
		if fs.enabled[l] {
			ls = append(ls, l)
		}
	}
	return ls
}

// At returns the snapshot for (label, segment, export), nil if absent or out of range
func (fs *FieldSolutions) At(l Label, seg, exp int) *fem.Function {
	if !fs.Has(l) || seg < 0 || seg >= len(fs.values[l]) || exp < 0 || exp >= len(fs.values[l][seg]) {
		return nil
	}
	return fs.values[l][seg][exp]
}

// Segment returns the snapshots of one segment, nil if absent
func (fs *FieldSolutions) Segment(l Label, seg int) []*fem.Function {
	if !fs.Has(l) || seg < 0 || seg >= len(fs.values[l]) {
		return nil
	}
	return fs.values[l][seg]
}

// Archive stores field -> label -> segment -> export snapshots. Its shape is
// fixed when it is created.
type Archive struct {
	fields  []string
	exports []int
	byField map[string]*FieldSolutions
}

// NewArchive allocates zero snapshots for every field and label, with
// exports[i] snapshots on segment i, on the function spaces spaces[field][i]
func NewArchive(fields []string, spaces map[string][]*fem.FunctionSpace, exports []int, labels ...Label) (*Archive, error) {
	a := &Archive{
		fields:  append([]string(nil), fields...),
		exports: append([]int(nil), exports...),
		byField: make(map[string]*FieldSolutions, len(fields)),
	}
	for _, field := range fields {
		fss, ok := spaces[field]
		if !ok || len(fss) != len(exports) {
			return nil, fmt.Errorf("archive: field %q needs %d function spaces, got %d",
				field, len(exports), len(fss))
		}
		sols := &FieldSolutions{Field: field}
		for _, l := range labels {
			if l >= numLabels {
				return nil, fmt.Errorf("archive: invalid label %d", l)
			}
			sols.enabled[l] = true
			tbl := make([][]*fem.Function, len(exports))
			for i, n := range exports {
				tbl[i] = make([]*fem.Function, n)
				for j := range tbl[i] {
					tbl[i][j] = fem.NewFunction(fss[i], fmt.Sprintf("%s_%s", field, l))
				}
			}
			sols.values[l] = tbl
		}
		a.byField[field] = sols
	}
	return a, nil
}

// Fields lists the archived fields in declaration order
func (a *Archive) Fields() []string { return a.fields }

// NumSegments is the number of segments in the archive
func (a *Archive) NumSegments() int { return len(a.exports) }

// NumExports is the number of snapshots stored per segment i
func (a *Archive) NumExports(i int) int { return a.exports[i] }

// Field returns the snapshots of one field, nil if the field is not archived
func (a *Archive) Field(name string) *FieldSolutions { return a.byField[name] }

// Get returns one snapshot
func (a *Archive) Get(field string, l Label, seg, exp int) (*fem.Function, error) {
	fs := a.byField[field]
	if fs == nil {
		return nil, fmt.Errorf("archive has no field %q", field)
	}
	if !fs.Has(l) {
		return nil, fmt.Errorf("archive has no %s solutions for field %q", l, field)
	}
	f := fs.At(l, seg, exp)
	if f == nil {
		return nil, fmt.Errorf("archive index (%s, %s, %d, %d) out of range", field, l, seg, exp)
	}
	return f, nil
}
