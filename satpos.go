// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gnssnav

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	keplerMaxIter = 30
	keplerTol     = 1e-13
)

// Satellite position (ECEF) and clock bias [s] at GPS time t from a broadcast ephemeris
// (IS-GPS-200 Table 20-IV). The clock bias includes the relativistic correction.
func SatPos(e *Ephemeris, t GTime) (xyz PosXYZ, dts float64) {
	a := e.SqrtA * e.SqrtA
	if a <= 0 {
		return PosXYZ{}, 0
	}
	tk := t.Sub(e.Toe)
	n := math.Sqrt(MuGps/(a*a*a)) + e.DeltaN
	mk := e.M0 + n*tk

	// Kepler's equation
	ek, ek0 := mk, 0.0
	for i := 0; i < keplerMaxIter && math.Abs(ek-ek0) > keplerTol; i++ {
		ek0 = ek
		ek -= (ek - e.Ecc*math.Sin(ek) - mk) / (1 - e.Ecc*math.Cos(ek))
	}
	sinE, cosE := math.Sincos(ek)

	vk := math.Atan2(math.Sqrt(1-e.Ecc*e.Ecc)*sinE, cosE-e.Ecc)
	pk := vk + e.Omega
	sin2p, cos2p := math.Sincos(2 * pk)
	uk := pk + e.Cus*sin2p + e.Cuc*cos2p
	rk := a*(1-e.Ecc*cosE) + e.Crs*sin2p + e.Crc*cos2p
	ik := e.I0 + e.Cis*sin2p + e.Cic*cos2p + e.Idot*tk
	omk := e.Omega0 + (e.OmegaD-OmgeE)*tk - OmgeE*e.Toe.Sec

	// Orbital plane to ECEF: Rz(-omk) * Rx(-ik)
	orb := mat.NewVecDense(3, []float64{rk * math.Cos(uk), rk * math.Sin(uk), 0})
	var r mat.Dense
	r.Mul(rotZ(-omk), rotX(-ik))
	var p mat.VecDense
	p.MulVec(&r, orb)
	xyz = PosXYZ{X: p.AtVec(0), Y: p.AtVec(1), Z: p.AtVec(2)}

	tc := t.Sub(e.Toc)
	dts = e.Af0 + e.Af1*tc + e.Af2*tc*tc
	dts -= 2 * math.Sqrt(MuGps*a) * e.Ecc * sinE / (C * C)
	return xyz, dts
}

// Rotation of the coordinate frame about the x axis
func rotX(t float64) *mat.Dense {
	s, c := math.Sincos(t)
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, c, s,
		0, -s, c,
	})
}

// Rotation of the coordinate frame about the z axis
func rotZ(t float64) *mat.Dense {
	s, c := math.Sincos(t)
	return mat.NewDense(3, 3, []float64{
		c, s, 0,
		-s, c, 0,
		0, 0, 1,
	})
}
