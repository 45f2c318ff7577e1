package commands

import (
	"github.com/notargets/DGAdjoint/meshseq"
	"github.com/notargets/DGAdjoint/solution"
)

// Summary is the YAML report of a run
type Summary struct {
	Command  string           `yaml:"command"`
	RunID    string           `yaml:"run_id,omitempty"`
	QoIType  string           `yaml:"qoi_type,omitempty"`
	J        *float64         `yaml:"j,omitempty"`
	Segments []SegmentSummary `yaml:"segments"`
	Fields   []FieldSummary   `yaml:"fields,omitempty"`
	// Sensitivity is the L2 norm of dJ/du0 per field
	Sensitivity map[string]float64 `yaml:"sensitivity,omitempty"`
}

type SegmentSummary struct {
	Index     int     `yaml:"index"`
	TStart    float64 `yaml:"t_start"`
	TEnd      float64 `yaml:"t_end"`
	Timesteps int     `yaml:"timesteps"`
	Exports   int     `yaml:"exports"`
	Elements  int     `yaml:"elements"`
	// Checkpoint is the L2 norm of each field entering the segment
	Checkpoint map[string]float64 `yaml:"checkpoint,omitempty"`
}

// FieldSummary lists the L2 norm of every snapshot, by label then segment
type FieldSummary struct {
	Name  string                 `yaml:"name"`
	Norms map[string][][]float64 `yaml:"norms"`
}

func segments(ms *meshseq.MeshSeq) []SegmentSummary {
	out := make([]SegmentSummary, ms.Len())
	for i, seg := range ms.TimePartition.Segments() {
		out[i] = SegmentSummary{
			Index:     seg.Index,
			TStart:    seg.TStart,
			TEnd:      seg.TEnd,
			Timesteps: seg.NumTimesteps,
			Exports:   seg.NumExports,
			Elements:  ms.Mesh(i).NumElements,
		}
	}
	return out
}

func fieldSummaries(archive *solution.Archive) []FieldSummary {
	var out []FieldSummary
	for _, f := range archive.Fields() {
		sols := archive.Field(f)
		fs := FieldSummary{Name: f, Norms: make(map[string][][]float64)}
		for _, l := range sols.Labels() {
			norms := make([][]float64, archive.NumSegments())
			for i := range norms {
				for _, snap := range sols.Segment(l, i) {
					norms[i] = append(norms[i], snap.Norm())
				}
			}
			fs.Norms[l.String()] = norms
		}
		out = append(out, fs)
	}
	return out
}
