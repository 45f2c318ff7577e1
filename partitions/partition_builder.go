package partitions

import (
	"fmt"
	"math"
)

// timeTolerance bounds the relative error accepted when dividing a segment
// into an integer number of timesteps
const timeTolerance = 1e-5

// Config describes a time partition before validation. Timesteps and
// TimestepsPerExport hold either one value for every segment or one per segment.
type Config struct {
	StartTime          float64
	EndTime            float64
	NumSegments        int
	Timesteps          []float64
	Fields             []string
	TimestepsPerExport []int        // Defaults to 1
	Subintervals       [][2]float64 // Defaults to equal length segments
}

// New validates cfg and builds the partition
func New(cfg Config) (*TimePartition, error) {
	tp := &TimePartition{
		StartTime:   cfg.StartTime,
		EndTime:     cfg.EndTime,
		NumSegments: cfg.NumSegments,
		Fields:      append([]string(nil), cfg.Fields...),
	}
	if !(cfg.EndTime > cfg.StartTime) {
		return nil, fmt.Errorf("%w: end time %g does not follow start time %g",
			ErrValidation, cfg.EndTime, cfg.StartTime)
	}
	if cfg.NumSegments < 1 {
		return nil, fmt.Errorf("%w: %d segments", ErrValidation, cfg.NumSegments)
	}

	var err error
	if tp.Subintervals, err = buildSubintervals(cfg); err != nil {
		return nil, err
	}
	if tp.Timesteps, err = broadcast("timestep", cfg.Timesteps, cfg.NumSegments, 0); err != nil {
		return nil, err
	}
	if tp.TimestepsPerExport, err = broadcast("timesteps per export", cfg.TimestepsPerExport, cfg.NumSegments, 1); err != nil {
		return nil, err
	}
	if tp.NumTimesteps, err = countTimesteps(tp.Subintervals, tp.Timesteps); err != nil {
		return nil, err
	}

	tp.ExportsPerSegment = make([]int, tp.NumSegments)
	for i := range tp.ExportsPerSegment {
		if tp.TimestepsPerExport[i] < 1 {
			return nil, fmt.Errorf("%w: %d timesteps per export on segment %d",
				ErrValidation, tp.TimestepsPerExport[i], i)
		}
		if tp.NumTimesteps[i]%tp.TimestepsPerExport[i] != 0 {
			return nil, fmt.Errorf("%w: timesteps per export %d does not divide %d timesteps of segment %d",
				ErrValidation, tp.TimestepsPerExport[i], tp.NumTimesteps[i], i)
		}
		tp.ExportsPerSegment[i] = tp.NumTimesteps[i]/tp.TimestepsPerExport[i] + 1
	}

	if err = tp.ValidateLayout(); err != nil {
		return nil, err
	}
	return tp, nil
}

// NewTimeInterval is a partition with a single segment
func NewTimeInterval(endTime, timestep float64, fields []string, timestepsPerExport int) (*TimePartition, error) {
	return New(Config{
		EndTime:            endTime,
		NumSegments:        1,
		Timesteps:          []float64{timestep},
		Fields:             fields,
		TimestepsPerExport: []int{timestepsPerExport},
	})
}

// NewTimeInstant is a steady partition: one segment of a single timestep
// ending at time
func NewTimeInstant(fields []string, time float64) (*TimePartition, error) {
	tp, err := NewTimeInterval(time, time, fields, 1)
	if err != nil {
		return nil, err
	}
	tp.Steady = true
	return tp, nil
}

func buildSubintervals(cfg Config) ([][2]float64, error) {
	n := cfg.NumSegments
	if len(cfg.Subintervals) > 0 {
		if len(cfg.Subintervals) != n {
			return nil, fmt.Errorf("%w: %d subintervals for %d segments", ErrValidation, len(cfg.Subintervals), n)
		}
		return append([][2]float64(nil), cfg.Subintervals...), nil
	}
	si := make([][2]float64, n)
	length := (cfg.EndTime - cfg.StartTime) / float64(n)
	for i := range si {
		si[i] = [2]float64{cfg.StartTime + float64(i)*length, cfg.StartTime + float64(i+1)*length}
	}
	si[n-1][1] = cfg.EndTime
	return si, nil
}

func broadcast[T int | float64](name string, vals []T, n int, def T) ([]T, error) {
	out := make([]T, n)
	switch len(vals) {
	case 0:
		if def == 0 {
			return nil, fmt.Errorf("%w: no %s given", ErrValidation, name)
		}
		for i := range out {
			out[i] = def
		}
	case 1:
		for i := range out {
			out[i] = vals[0]
		}
	case n:
		copy(out, vals)
	default:
		return nil, fmt.Errorf("%w: %d values of %s for %d segments", ErrValidation, len(vals), name, n)
	}
	return out, nil
}

func countTimesteps(subintervals [][2]float64, timesteps []float64) ([]int, error) {
	counts := make([]int, len(subintervals))
	for i, si := range subintervals {
		dt := timesteps[i]
		if !(dt > 0) {
			return nil, fmt.Errorf("%w: timestep %g on segment %d", ErrValidation, dt, i)
		}
		steps := (si[1] - si[0]) / dt
		rounded := math.Round(steps)
		if rounded < 1 || math.Abs(steps-rounded) > timeTolerance*math.Max(1, steps) {
			return nil, fmt.Errorf("%w: segment %d of length %g is not an integer multiple of timestep %g",
				ErrValidation, i, si[1]-si[0], dt)
		}
		counts[i] = int(rounded)
	}
	return counts, nil
}
