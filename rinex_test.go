// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gnssnav

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertClose(t *testing.T, expected, actual float64, name string) {
	t.Helper()
	assert.InDelta(t, expected, actual, math.Abs(expected)*1e-12+1e-300, name)
}

func TestWriteNavRecord(t *testing.T) {
	e := newRawEphemeris(5, 0, 0x2A5).expected()
	var buf bytes.Buffer
	require.NoError(t, WriteNavRecord(&buf, e))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 8)
	assert.True(t, strings.HasPrefix(lines[0], "G05 2025 06 20 21 00 00"), lines[0])
	assert.Len(t, lines[0], 23+3*19)
	for _, l := range lines[1:7] {
		assert.Len(t, l, 4+4*19)
	}
	assert.Equal(t, "     1.650000000000E+02", lines[1][:23])
	assert.Equal(t, "     5.076000000000E+05", lines[7][:23])
}

func TestWriteReadNav(t *testing.T) {
	nav := Nav{}
	e1 := newRawEphemeris(5, 0, 0x2A5).expected()
	e2 := newRawEphemeris(12, 7, 0x010).expected()
	nav.Add(e1)
	nav.Add(e2)
	iono := &IonoUtc{
		Alpha:     [4]float64{1.1176e-08, -1.4901e-08, -5.9605e-08, 1.1921e-07},
		Beta:      [4]float64{9.0112e+04, -1.3107e+05, 0, 6.5536e+04},
		A0:        -9.3132257462e-10,
		A1:        -8.881784197e-16,
		Tot:       589824,
		WNt:       2371,
		DeltaTLS:  18,
		DeltaTLSF: 18,
		WNLSF:     2185,
		DN:        7,
	}

	var buf bytes.Buffer
	h := &RinexNavHeader{Program: "gnssnav", RunBy: "test", Date: time.Date(2025, 6, 20, 21, 5, 0, 0, time.UTC), IonoUtc: iono}
	require.NoError(t, WriteNav(&buf, nav, h))
	assert.Contains(t, buf.String(), "     3.04           N: GNSS NAV DATA    G: GPS              RINEX VERSION / TYPE\n")
	assert.Contains(t, buf.String(), "gnssnav             test                20250620 210500 UTC PGM / RUN BY / DATE\n")
	assert.Contains(t, buf.String(), "    18    18  2185     7                                    LEAP SECONDS\n")

	got, giono, err := ReadNav(&buf)
	require.NoError(t, err)
	assert.Equal(t, []SatType{"G05", "G12"}, got.Sats())
	require.NotNil(t, giono)
	assert.Equal(t, *iono, *giono)

	for _, want := range []*Ephemeris{e1, e2} {
		require.Len(t, got[want.Sat], 1)
		g := got[want.Sat][0]
		assert.Equal(t, want.Toc, g.Toc)
		assert.Equal(t, want.Toe, g.Toe)
		assert.Equal(t, want.Tot, g.Tot)
		assert.Equal(t, want.Iode, g.Iode)
		assert.Equal(t, want.Iodc, g.Iodc)
		assert.Equal(t, want.Week, g.Week)
		assert.Equal(t, want.Code, g.Code)
		assert.Equal(t, want.Sva, g.Sva)
		assert.Equal(t, want.Svh, g.Svh)
		assert.Equal(t, want.Fit, g.Fit)
		for name, p := range map[string][2]float64{
			"af0": {want.Af0, g.Af0}, "af1": {want.Af1, g.Af1}, "af2": {want.Af2, g.Af2},
			"crs": {want.Crs, g.Crs}, "deltaN": {want.DeltaN, g.DeltaN}, "m0": {want.M0, g.M0},
			"cuc": {want.Cuc, g.Cuc}, "ecc": {want.Ecc, g.Ecc}, "cus": {want.Cus, g.Cus},
			"sqrtA": {want.SqrtA, g.SqrtA}, "cic": {want.Cic, g.Cic}, "omega0": {want.Omega0, g.Omega0},
			"cis": {want.Cis, g.Cis}, "i0": {want.I0, g.I0}, "crc": {want.Crc, g.Crc},
			"omega": {want.Omega, g.Omega}, "omegaD": {want.OmegaD, g.OmegaD}, "idot": {want.Idot, g.Idot},
			"tgd": {want.Tgd, g.Tgd},
		} {
			assertClose(t, p[0], p[1], name)
		}
	}

	e, err := got.GetEphe("G05", GTime{Week: testWeek, Sec: 507600 + 3600})
	require.NoError(t, err)
	assert.Equal(t, 0xA5, e.Iode)
	_, err = got.GetEphe("G05", GTime{Week: testWeek, Sec: 507600 + 7300})
	assert.Error(t, err)
	_, err = got.GetEphe("G07", GTime{Week: testWeek, Sec: 507600})
	assert.Error(t, err)
}

func TestReadNavSkipsOtherSystems(t *testing.T) {
	src := "     3.04           N: GNSS NAV DATA    M: Mixed            RINEX VERSION / TYPE\n" +
		"                                                            END OF HEADER\n" +
		"E11 2025 06 20 21 00 00 1.000000000000E-04 0.000000000000E+00 0.000000000000E+00\n" +
		"     1.000000000000E+00 0.000000000000E+00 0.000000000000E+00 0.000000000000E+00\n"
	nav, iono, err := ReadNav(strings.NewReader(src))
	require.NoError(t, err)
	assert.Empty(t, nav)
	assert.Nil(t, iono)

	_, _, err = ReadNav(strings.NewReader("     2.11           N: GPS NAV DATA                         RINEX VERSION / TYPE\n"))
	assert.Error(t, err)
	_, _, err = ReadNav(strings.NewReader("     3.04           O: OBSERVATION DATA M: Mixed            RINEX VERSION / TYPE\n"))
	assert.Error(t, err)
}

func TestObsEpochLine(t *testing.T) {
	l, err := ObsEpochLine(testEpochNs, 0, 12)
	require.NoError(t, err)
	assert.Equal(t, "> 2025 06 20 21 02 19.6580000  0 12", l)

	l, err = ObsEpochLine(0, 0, 7)
	require.NoError(t, err)
	assert.Equal(t, "> 1980 01 06 00 00  0.0000000  0  7", l)

	_, err = ObsEpochLine(-1, 0, 0)
	assert.ErrorIs(t, err, ErrNegativeTime)
}

func TestURAIndex(t *testing.T) {
	for i := range uraValues {
		assert.Equal(t, i, getURAIndex(uraValue(i)))
	}
	assert.Equal(t, 15, getURAIndex(uraValue(15)))
}
