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
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Decoded broadcast ephemeris of one GPS satellite (subframes 1, 2 and 3 of one issue)
type Ephemeris struct {
	Sat  SatType
	Toc  GTime // Reference time for satellite clock error correction
	Toe  GTime // Reference time for satellite orbit calculation
	Tot  GTime // Transmission time (HOW of subframe 1)
	Iode int
	Iodc int

	Af0    float64 // [s]
	Af1    float64 // [s/s]
	Af2    float64 // [s/s^2]
	Crs    float64 // [m]
	DeltaN float64 // [rad/s]
	M0     float64 // [rad]
	Cuc    float64 // [rad]
	Ecc    float64
	Cus    float64 // [rad]
	SqrtA  float64 // [m^0.5]
	Cic    float64 // [rad]
	Omega0 float64 // [rad]
	Cis    float64 // [rad]
	I0     float64 // [rad]
	Crc    float64 // [m]
	Omega  float64 // [rad]
	OmegaD float64 // [rad/s]
	Idot   float64 // [rad/s]
	Code   int     // Codes on L2 channel
	Week   int     // GPS week of toe (full, rollover resolved)
	Flag   int     // L2 P data flag
	Sva    int     // URA index
	Svh    int     // SV health
	Tgd    float64 // [s]
	Fit    float64 // Fit interval [h]
	Aodo   float64 // Age of data offset [s]
}

func (e *Ephemeris) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### Nav. for %s (%c, %d)\n", e.Sat, e.Sat.Sys(), e.Sat.Num())
	fmt.Fprintf(&sb, "    Toc: %v (%v)\n", e.Toc.ToTime(), e.Toc)
	fmt.Fprintf(&sb, "    Toe: %v (%v)\n", e.Toe.ToTime(), e.Toe)
	fmt.Fprintf(&sb, "    Tot: %v (%v)\n", e.Tot.ToTime(), e.Tot)
	fmt.Fprintf(&sb, "   Iode: %v\n", e.Iode)
	fmt.Fprintf(&sb, "   Iodc: %v\n", e.Iodc)
	fmt.Fprintf(&sb, "    Af0: %v\n", e.Af0)
	fmt.Fprintf(&sb, "    Af1: %v\n", e.Af1)
	fmt.Fprintf(&sb, "    Af2: %v\n", e.Af2)
	fmt.Fprintf(&sb, "    Crs: %v\n", e.Crs)
	fmt.Fprintf(&sb, " DeltaN: %v\n", e.DeltaN)
	fmt.Fprintf(&sb, "     M0: %v\n", e.M0)
	fmt.Fprintf(&sb, "    Cuc: %v\n", e.Cuc)
	fmt.Fprintf(&sb, "    Ecc: %v\n", e.Ecc)
	fmt.Fprintf(&sb, "    Cus: %v\n", e.Cus)
	fmt.Fprintf(&sb, "  SqrtA: %v\n", e.SqrtA)
	fmt.Fprintf(&sb, "    Cic: %v\n", e.Cic)
	fmt.Fprintf(&sb, " Omega0: %v\n", e.Omega0)
	fmt.Fprintf(&sb, "    Cis: %v\n", e.Cis)
	fmt.Fprintf(&sb, "     I0: %v\n", e.I0)
	fmt.Fprintf(&sb, "    Crc: %v\n", e.Crc)
	fmt.Fprintf(&sb, "  Omega: %v\n", e.Omega)
	fmt.Fprintf(&sb, " OmegaD: %v\n", e.OmegaD)
	fmt.Fprintf(&sb, "   Idot: %v\n", e.Idot)
	fmt.Fprintf(&sb, "   Code: %v\n", e.Code)
	fmt.Fprintf(&sb, "   Week: %v\n", e.Week)
	fmt.Fprintf(&sb, "   Flag: %v\n", e.Flag)
	fmt.Fprintf(&sb, "    Sva: %v\n", e.Sva)
	fmt.Fprintf(&sb, "    Svh: %v\n", e.Svh)
	fmt.Fprintf(&sb, "    Tgd: %v\n", e.Tgd)
	fmt.Fprintf(&sb, "    Fit: %v\n", e.Fit)
	fmt.Fprintf(&sb, "   Aodo: %v\n", e.Aodo)
	return sb.String()
}

// Almanac of one satellite (subframe 4 pages 2-5, 7-10 and subframe 5 pages 1-24)
type Almanac struct {
	Sat    SatType
	Svh    int
	Week   int     // Almanac reference week (-1: not yet known)
	Toas   float64 // Almanac reference time [s]
	Ecc    float64
	I0     float64 // [rad]
	OmegaD float64 // [rad/s]
	SqrtA  float64 // [m^0.5]
	Omega0 float64 // [rad]
	Omega  float64 // [rad]
	M0     float64 // [rad]
	Af0    float64 // [s]
	Af1    float64 // [s/s]
}

// Almanac reference epoch; ok is false while the week is unknown
func (a *Almanac) Toa() (GTime, bool) {
	if a.Week < 0 {
		return GTime{}, false
	}
	return GTime{Week: a.Week, Sec: a.Toas}, true
}

// Ionospheric (Klobuchar) and UTC parameters of subframe 4 page 18
type IonoUtc struct {
	Alpha     [4]float64
	Beta      [4]float64
	A0        float64 // [s]
	A1        float64 // [s/s]
	Tot       int     // Reference time of UTC parameters [s]
	WNt       int     // UTC reference week (full)
	DeltaTLS  int     // Current leap seconds [s]
	WNLSF     int     // Week of the future leap second (full)
	DN        int     // Day number of the future leap second (1..7)
	DeltaTLSF int     // Leap seconds after the event [s]
}

// Ephemerides of each satellite sorted by Toe in ascending order
type Nav map[SatType][]*Ephemeris

// Add an ephemeris, replacing one with the same Toe and IODE
func (nav Nav) Add(e *Ephemeris) {
	es := nav[e.Sat]
	for i, o := range es {
		if o.Iode == e.Iode && o.Toe == e.Toe {
			es[i] = e
			return
		}
	}
	es = append(es, e)
	slices.SortStableFunc(es, func(a, b *Ephemeris) int {
		switch {
		case a.Toe.Less(b.Toe):
			return -1
		case b.Toe.Less(a.Toe):
			return 1
		}
		return 0
	})
	nav[e.Sat] = es
}

// Satellites in the navigation data, sorted
func (nav Nav) Sats() []SatType {
	return Sorted(maps.Keys(nav))
}

// Select the ephemeris whose Toe is closest to the specified time, within 2 hours
func (nav Nav) GetEphe(sat SatType, gt GTime) (*Ephemeris, error) {
	es, ok := nav[sat]
	if !ok {
		return nil, fmt.Errorf("can't find %s", sat)
	}
	diffMax := 7201.0
	var r *Ephemeris
	for _, e := range es {
		if d := math.Abs(e.Toe.Sub(gt)); d < diffMax {
			diffMax = d
			r = e
		}
	}
	if r == nil {
		return nil, fmt.Errorf("can't find a valid ephemeris for %s", sat)
	}
	return r, nil
}

// Display navigation data overview
func (nav Nav) String() string {
	var sb strings.Builder
	sb.WriteString("toe:\n")
	for _, sat := range nav.Sats() {
		es := nav[sat]
		fmt.Fprintf(&sb, "\t%s: ", sat)
		if len(es) > 0 {
			st := es[0].Toe
			et := es[len(es)-1].Toe
			fmt.Fprintf(&sb, "%s - %s (%d)\n",
				st.ToTime().Format("2006/01/02 15:04:05.000"), et.ToTime().Format("2006/01/02 15:04:05.000"), len(es))
		} else {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
