package fem

import "fmt"

// Tableau holds the Butcher coefficients of an explicit Runge-Kutta scheme
type Tableau struct {
	Name string
	A    [][]float64 // Strictly lower triangular stage coefficients
	B    []float64   // Final stage weights
	C    []float64   // Stage times
}

var (
	// Heun is the explicit trapezoidal rule
	Heun = &Tableau{
		Name: "heun",
		A:    [][]float64{{0, 0}, {1, 0}},
		B:    []float64{0.5, 0.5},
		C:    []float64{0, 1},
	}
	// SSPRK3 is the three stage strong stability preserving scheme of Shu and Osher
	SSPRK3 = &Tableau{
		Name: "ssprk3",
		A:    [][]float64{{0, 0, 0}, {1, 0, 0}, {0.25, 0.25, 0}},
		B:    []float64{1. / 6, 1. / 6, 2. / 3},
		C:    []float64{0, 1, 0.5},
	}
)

// Stages is the number of solves per timestep
func (tb *Tableau) Stages() int { return len(tb.B) }

// Validate checks the tableau is explicit and consistent
func (tb *Tableau) Validate() error {
	q := len(tb.B)
	if q == 0 {
		return fmt.Errorf("tableau %q has no stages", tb.Name)
	}
	if len(tb.A) != q || len(tb.C) != q {
		return fmt.Errorf("tableau %q: A has %d rows, b has %d, c has %d", tb.Name, len(tb.A), q, len(tb.C))
	}
	for i, row := range tb.A {
		if len(row) != q {
			return fmt.Errorf("tableau %q: row %d of A has %d entries", tb.Name, i, len(row))
		}
		for j := i; j < q; j++ {
			if row[j] != 0 {
				return fmt.Errorf("tableau %q is not explicit: A[%d][%d] = %g", tb.Name, i, j, row[j])
			}
		}
	}
	return nil
}
