package adjoint

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/notargets/DGAdjoint/fem"
	"github.com/notargets/DGAdjoint/meshseq"
	"github.com/notargets/DGAdjoint/partitions"
)

var (
	// ErrInvalidQoIArity is returned for a QoI function that takes neither
	// one nor two arguments
	ErrInvalidQoIArity = fmt.Errorf("%w: QoI must take 1 or 2 arguments", meshseq.ErrContractViolation)
	// ErrConsistencyCheck is returned when the QoI of the checkpointing run
	// differs from the QoI accumulated by the adjoint run
	ErrConsistencyCheck = errors.New("checkpoint and adjoint QoI values differ")
)

// QoIType classifies the quantity of interest
type QoIType string

const (
	EndTime        QoIType = "end_time"
	TimeIntegrated QoIType = "time_integrated"
	Steady         QoIType = "steady"
)

// EndTimeQoI evaluates the QoI on the final state
type EndTimeQoI func(sol fem.Fields) fem.Form

// TimeIntegratedQoI evaluates the contribution of the state at time t
type TimeIntegratedQoI func(sol fem.Fields, t float64) fem.Form

// QoIFunc returns the QoI used on one segment, either an EndTimeQoI or a
// TimeIntegratedQoI (or the equivalent unnamed function types)
type QoIFunc func(seg partitions.Segment) any

type qoi struct {
	kind           QoIType
	endTime        EndTimeQoI
	timeIntegrated TimeIntegratedQoI
}

func discoverQoI(q any) (qoi, error) {
	switch fn := q.(type) {
	case nil:
		return qoi{}, fmt.Errorf("%w: nil QoI", meshseq.ErrContractViolation)
	case EndTimeQoI:
		return qoi{kind: EndTime, endTime: fn}, nil
	case func(fem.Fields) fem.Form:
		return qoi{kind: EndTime, endTime: fn}, nil
	case TimeIntegratedQoI:
		return qoi{kind: TimeIntegrated, timeIntegrated: fn}, nil
	case func(fem.Fields, float64) fem.Form:
		return qoi{kind: TimeIntegrated, timeIntegrated: fn}, nil
	}
	rt := reflect.TypeOf(q)
	if rt.Kind() != reflect.Func {
		return qoi{}, fmt.Errorf("%w: QoI is a %s, not a function", meshseq.ErrContractViolation, rt)
	}
	if n := rt.NumIn(); n != 1 && n != 2 {
		return qoi{}, fmt.Errorf("%w, not %d", ErrInvalidQoIArity, n)
	}
	return qoi{}, fmt.Errorf("%w: unsupported QoI signature %s", meshseq.ErrContractViolation, rt)
}
