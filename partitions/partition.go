package partitions

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is returned for any inconsistent time partition
var ErrValidation = errors.New("invalid time partition")

// Segment is one contiguous slice of the time horizon
type Segment struct {
	Index int

	TStart, TEnd float64
	Timestep     float64

	NumTimesteps       int // Timesteps taken across the segment
	TimestepsPerExport int // Timesteps between exported snapshots
	NumExports         int // Exported snapshots including the initial one
}

// TimePartition divides [StartTime, EndTime] into consecutive segments
type TimePartition struct {
	StartTime   float64
	EndTime     float64
	NumSegments int
	Fields      []string
	Steady      bool // Set for TimeInstant partitions

	// Per segment views, all of length NumSegments
	Subintervals       [][2]float64
	Timesteps          []float64
	NumTimesteps       []int
	TimestepsPerExport []int
	ExportsPerSegment  []int
}

// Len is the number of segments
func (tp *TimePartition) Len() int { return tp.NumSegments }

// Segment returns the descriptor of segment i
func (tp *TimePartition) Segment(i int) Segment {
	return Segment{
		Index:              i,
		TStart:             tp.Subintervals[i][0],
		TEnd:               tp.Subintervals[i][1],
		Timestep:           tp.Timesteps[i],
		NumTimesteps:       tp.NumTimesteps[i],
		TimestepsPerExport: tp.TimestepsPerExport[i],
		NumExports:         tp.ExportsPerSegment[i],
	}
}

// Segments returns every segment descriptor in time order
func (tp *TimePartition) Segments() []Segment {
	segs := make([]Segment, tp.NumSegments)
	for i := range segs {
		segs[i] = tp.Segment(i)
	}
	return segs
}

// HasField reports whether name is one of the partition's fields
func (tp *TimePartition) HasField(name string) bool {
	for _, f := range tp.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// ValidateLayout checks the per segment views are consistent with each other
func (tp *TimePartition) ValidateLayout() error {
	if len(tp.Fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrValidation)
	}
	seen := make(map[string]bool, len(tp.Fields))
	for _, f := range tp.Fields {
		if f == "" || seen[f] {
			return fmt.Errorf("%w: empty or repeated field name %q", ErrValidation, f)
		}
		seen[f] = true
	}
	n := tp.NumSegments
	if n < 1 {
		return fmt.Errorf("%w: %d segments", ErrValidation, n)
	}
	if len(tp.Subintervals) != n || len(tp.Timesteps) != n || len(tp.NumTimesteps) != n ||
		len(tp.TimestepsPerExport) != n || len(tp.ExportsPerSegment) != n {
		return fmt.Errorf("%w: per segment data does not match %d segments", ErrValidation, n)
	}
	tol := timeTolerance * (tp.EndTime - tp.StartTime)
	if d := tp.Subintervals[0][0] - tp.StartTime; d > tol || d < -tol {
		return fmt.Errorf("%w: first segment starts at %g, not %g",
			ErrValidation, tp.Subintervals[0][0], tp.StartTime)
	}
	if d := tp.Subintervals[n-1][1] - tp.EndTime; d > tol || d < -tol {
		return fmt.Errorf("%w: last segment ends at %g, not %g",
			ErrValidation, tp.Subintervals[n-1][1], tp.EndTime)
	}
	for i, si := range tp.Subintervals {
		if !(si[1] > si[0]) {
			return fmt.Errorf("%w: segment %d spans [%g,%g]", ErrValidation, i, si[0], si[1])
		}
		if i > 0 {
			if d := si[0] - tp.Subintervals[i-1][1]; d > tol || d < -tol {
				return fmt.Errorf("%w: segment %d starts at %g but segment %d ends at %g",
					ErrValidation, i, si[0], i-1, tp.Subintervals[i-1][1])
			}
		}
		if tp.NumTimesteps[i] < 1 || tp.TimestepsPerExport[i] < 1 {
			return fmt.Errorf("%w: segment %d has %d timesteps and %d per export",
				ErrValidation, i, tp.NumTimesteps[i], tp.TimestepsPerExport[i])
		}
		if tp.NumTimesteps[i]%tp.TimestepsPerExport[i] != 0 {
			return fmt.Errorf("%w: timesteps per export %d does not divide %d timesteps of segment %d",
				ErrValidation, tp.TimestepsPerExport[i], tp.NumTimesteps[i], i)
		}
		if want := tp.NumTimesteps[i]/tp.TimestepsPerExport[i] + 1; tp.ExportsPerSegment[i] != want {
			return fmt.Errorf("%w: segment %d has %d exports, expected %d",
				ErrValidation, i, tp.ExportsPerSegment[i], want)
		}
	}
	return nil
}

// Debug renders the partition as a table
func (tp *TimePartition) Debug() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "TimePartition: [%g, %g], %d segments, fields %v\n",
		tp.StartTime, tp.EndTime, tp.NumSegments, tp.Fields)
	fmt.Fprintf(&sb, "%4s %12s %12s %12s %8s %8s %8s\n",
		"seg", "start", "end", "dt", "steps", "stride", "exports")
	for _, s := range tp.Segments() {
		fmt.Fprintf(&sb, "%4d %12.6g %12.6g %12.6g %8d %8d %8d\n",
			s.Index, s.TStart, s.TEnd, s.Timestep, s.NumTimesteps, s.TimestepsPerExport, s.NumExports)
	}
	return sb.String()
}

func (tp *TimePartition) String() string {
	parts := make([]string, tp.NumSegments)
	for i, si := range tp.Subintervals {
		parts[i] = fmt.Sprintf("[%g, %g]", si[0], si[1])
	}
	return strings.Join(parts, ", ")
}
