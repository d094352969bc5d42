// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gnssnav

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

func ToDeg(rad float64) float64 {
	return rad / PI * 180.0
}

func ToRad(deg float64) float64 {
	return deg / 180.0 * PI
}

//-------------------------------------------------------------------
// PosLLH
//-------------------------------------------------------------------

// Geodetic position (WGS84): latitude and longitude [rad], ellipsoidal height [m]
type PosLLH struct {
	Lat float64
	Lon float64
	Hei float64
}

func (llh *PosLLH) ToXYZ() PosXYZ {
	e2 := Fe * (2 - Fe)
	sinLat := math.Sin(llh.Lat)
	n := Re / math.Sqrt(1-e2*sinLat*sinLat) // Radius of curvature in the prime vertical
	return PosXYZ{
		X: (n + llh.Hei) * math.Cos(llh.Lat) * math.Cos(llh.Lon),
		Y: (n + llh.Hei) * math.Cos(llh.Lat) * math.Sin(llh.Lon),
		Z: (n*(1-e2) + llh.Hei) * sinLat,
	}
}

func (usr *PosLLH) Elevation(sat PosXYZ) float64 {
	xyz := usr.ToXYZ()
	return xyz.Elevation(sat)
}

func (usr *PosLLH) Azimuth(sat PosXYZ) float64 {
	xyz := usr.ToXYZ()
	return xyz.Azimuth(sat)
}

// Read from string "lat lon hei" (degrees, degrees, meters)
func (llh *PosLLH) Set(s string) error {
	f := strings.Fields(strings.ReplaceAll(s, ",", " "))
	if len(f) != 3 {
		return fmt.Errorf("position %q: expected lat lon height", s)
	}
	var v [3]float64
	for i := range v {
		var err error
		if v[i], err = strconv.ParseFloat(f[i], 64); err != nil {
			return fmt.Errorf("position %q: %w", s, err)
		}
	}
	llh.Lat, llh.Lon, llh.Hei = ToRad(v[0]), ToRad(v[1]), v[2]
	return nil
}

// Convert to string (degrees)
func (llh *PosLLH) String() string {
	return fmt.Sprintf("%.8f %.8f %.4f", ToDeg(llh.Lat), ToDeg(llh.Lon), llh.Hei)
}

//-------------------------------------------------------------------
// PosXYZ
//-------------------------------------------------------------------

// ECEF position [m]
type PosXYZ struct {
	X float64
	Y float64
	Z float64
}

func (pos *PosXYZ) Norm() float64 {
	return math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
}

func (pos *PosXYZ) ToLLH() PosLLH {
	// In case of origin
	if pos.X == 0 && pos.Y == 0 && pos.Z == 0 {
		return PosLLH{Lat: 0, Lon: 0, Hei: -Re}
	}

	// Ellipsoid parameters
	a := Re                       // Semi-major axis
	b := a * (1 - Fe)             // Semi-minor axis
	e := math.Sqrt(Fe * (2 - Fe)) // Eccentricity

	// Bowring's method
	h := a*a - b*b
	p := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y)
	t := math.Atan2(pos.Z*a, p*b)
	sint, cost := math.Sincos(t)

	lat := math.Atan2(pos.Z+h/b*sint*sint*sint, p-h/a*cost*cost*cost)
	lon := math.Atan2(pos.Y, pos.X)
	n := a / math.Sqrt(1-e*e*math.Sin(lat)*math.Sin(lat))
	hei := p/math.Cos(lat) - n
	return PosLLH{Lat: lat, Lon: lon, Hei: hei}
}

// ECEF to local ENU rotation at a geodetic position
func enuRotation(llh PosLLH) *mat.Dense {
	s1, c1 := math.Sincos(llh.Lon)
	s2, c2 := math.Sincos(llh.Lat)
	return mat.NewDense(3, 3, []float64{
		-s1, c1, 0,
		-c1 * s2, -s1 * s2, c2,
		c1 * c2, s1 * c2, s2,
	})
}

func (pos *PosXYZ) ToENU(base PosXYZ) PosENU {
	d := mat.NewVecDense(3, []float64{pos.X - base.X, pos.Y - base.Y, pos.Z - base.Z})
	var enu mat.VecDense
	enu.MulVec(enuRotation(base.ToLLH()), d)
	return PosENU{E: enu.AtVec(0), N: enu.AtVec(1), U: enu.AtVec(2)}
}

func (usr *PosXYZ) Elevation(sat PosXYZ) float64 {
	enu := sat.ToENU(*usr)
	return enu.Elevation()
}

func (usr *PosXYZ) Azimuth(sat PosXYZ) float64 {
	enu := sat.ToENU(*usr)
	return enu.Azimuth()
}

//-------------------------------------------------------------------
// PosENU
//-------------------------------------------------------------------

// Local east/north/up offset [m]
type PosENU struct {
	E float64
	N float64
	U float64
}

func (enu *PosENU) ToXYZ(base PosXYZ) PosXYZ {
	d := mat.NewVecDense(3, []float64{enu.E, enu.N, enu.U})
	var xyz mat.VecDense
	xyz.MulVec(enuRotation(base.ToLLH()).T(), d)
	return PosXYZ{X: base.X + xyz.AtVec(0), Y: base.Y + xyz.AtVec(1), Z: base.Z + xyz.AtVec(2)}
}

func (enu *PosENU) Elevation() float64 {
	return math.Atan2(enu.U, math.Sqrt(enu.E*enu.E+enu.N*enu.N))
}

// Azimuth [rad] in 0..2pi, clockwise from north
func (enu *PosENU) Azimuth() float64 {
	az := math.Atan2(enu.E, enu.N)
	if az < 0 {
		az += 2 * PI
	}
	return az
}
