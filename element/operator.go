package element

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// GetRefMatrices names the reference matrices of an element by operator and
// short name, e.g. "Dr_Line2"
func GetRefMatrices(el ReferenceElement) map[string]mat.Matrix {
	sn := el.GetProperties().ShortName
	nm, ro := el.GetNodalModal(), el.GetReferenceOperators()
	return map[string]mat.Matrix{
		"V_" + sn:    nm.V,
		"Vinv_" + sn: nm.Vinv,
		"M_" + sn:    nm.M,
		"Minv_" + sn: nm.Minv,
		"Dr_" + sn:   ro.Dr,
		"LIFT_" + sn: ro.LIFT,
	}
}

// FormatMatrix renders a matrix as a brace-delimited literal, one row per line
func FormatMatrix(name string, m mat.Matrix) string {
	r, c := m.Dims()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%d×%d] = {\n", name, r, c)
	row := make([]string, c)
	for i := 0; i < r; i++ {
		for j := range row {
			row[j] = strconv.FormatFloat(m.At(i, j), 'e', 15, 64)
		}
		sep := ","
		if i == r-1 {
			sep = ""
		}
		fmt.Fprintf(&sb, "    {%s}%s\n", strings.Join(row, ", "), sep)
	}
	sb.WriteString("}\n")
	return sb.String()
}
