package meshseq

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/notargets/DGAdjoint/fem"
)

var (
	// ErrContractViolation is returned when a collaborator breaks its contract,
	// e.g. a solver returning the wrong set of fields
	ErrContractViolation = errors.New("contract violation")
	// ErrDiscretizationMismatch is returned when a field changes element between segments
	ErrDiscretizationMismatch = errors.New("discretization mismatch")
	// ErrEmptyTrace is returned when a field has no recorded solves after a segment
	ErrEmptyTrace = errors.New("no solves recorded")
)

// Warning kinds, used as the "kind" log attribute and metric label
const (
	WarnStrideOverrun   = "stride_overrun"
	WarnZeroSignal      = "zero_signal"
	WarnMissingAdjoint  = "missing_adjoint"
	WarnMissingLagged   = "missing_lagged_dependency"
	WarnAmbiguousLagged = "ambiguous_lagged_dependency"
)

// FieldSetError reports a field set that differs from the declared fields
type FieldSetError struct {
	Source  string
	Missing []string
	Extra   []string
}

func (e *FieldSetError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing fields "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unexpected fields "+strings.Join(e.Extra, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Source, strings.Join(parts, "; "))
}

func (e *FieldSetError) Unwrap() error { return ErrContractViolation }

// CheckFields verifies got holds exactly the declared fields, each non nil
func CheckFields(source string, declared []string, got fem.Fields) error {
	want := make(map[string]bool, len(declared))
	for _, f := range declared {
		want[f] = true
	}
	e := &FieldSetError{Source: source}
	for _, f := range declared {
		if got[f] == nil {
			e.Missing = append(e.Missing, f)
		}
	}
	for f := range got {
		if !want[f] {
			e.Extra = append(e.Extra, f)
		}
	}
	if len(e.Missing) == 0 && len(e.Extra) == 0 {
		return nil
	}
	sort.Strings(e.Extra)
	return e
}
