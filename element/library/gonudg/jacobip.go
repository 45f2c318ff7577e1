package gonudg

import (
	"math"
)

// JacobiP evaluates the orthonormal Jacobi polynomial of type (alpha,beta)
// and order n at each of the points x
func JacobiP(x []float64, alpha, beta float64, n int) []float64 {
	var (
		Np = len(x)
		// Pm1 and P hold P_{i-1} and P_i as the recurrence advances
		Pm1 = make([]float64, Np)
		P   = make([]float64, Np)
	)

	gamma0 := Gamma0(alpha, beta)
	for i := range Pm1 {
		Pm1[i] = 1.0 / math.Sqrt(gamma0)
	}
	if n == 0 {
		return Pm1
	}

	gamma1 := Gamma1(alpha, beta)
	for i := range P {
		P[i] = ((alpha+beta+2)*x[i]/2 + (alpha-beta)/2) / math.Sqrt(gamma1)
	}
	if n == 1 {
		return P
	}

	aold := 2.0 / (2.0 + alpha + beta) * math.Sqrt((alpha+1)*(beta+1)/(alpha+beta+3))
	for i := 1; i < n; i++ {
		fi := float64(i)
		h1 := 2*fi + alpha + beta
		anew := 2.0 / (h1 + 2) * math.Sqrt((fi+1)*(fi+1+alpha+beta)*
			(fi+1+alpha)*(fi+1+beta)/(h1+1)/(h1+3))
		bnew := -(alpha*alpha - beta*beta) / h1 / (h1 + 2)
		for j := range P {
			next := 1 / anew * (-aold*Pm1[j] + (x[j]-bnew)*P[j])
			Pm1[j] = P[j]
			P[j] = next
		}
		aold = anew
	}
	return P
}

// JacobiPSingle evaluates Jacobi polynomial at a single point
func JacobiPSingle(x, alpha, beta float64, n int) float64 {
	return JacobiP([]float64{x}, alpha, beta, n)[0]
}

// GradJacobiP evaluates the derivative of the Jacobi polynomial of type (alpha,beta) at points x for order n
func GradJacobiP(x []float64, alpha, beta float64, n int) []float64 {
	dP := make([]float64, len(x))
	if n == 0 {
		return dP
	}

	// d/dx P_n^(a,b)(x) = sqrt(n(n+a+b+1)) * P_{n-1}^(a+1,b+1)(x)
	Ptemp := JacobiP(x, alpha+1, beta+1, n-1)
	for i := range dP {
		dP[i] = math.Sqrt(float64(n)*(float64(n)+alpha+beta+1)) * Ptemp[i]
	}
	return dP
}
