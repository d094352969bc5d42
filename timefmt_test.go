// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gnssnav

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1434488539.658 s after the GPS epoch
const testEpochNs = int64(1434488539658000000)

func TestFormatCalendar(t *testing.T) {
	tests := []struct {
		name     string
		ns       int64
		pattern  string
		expected string
	}{
		{"gps epoch", 0, RinexCalendarPattern, "1980 01 06 00 00 00"},
		{"2025-06-20", testEpochNs, RinexCalendarPattern, "2025 06 20 21 02 19"},
		{"with fraction", testEpochNs, "yyyy/MM/dd HH:mm:ss.SSS", "2025/06/20 21:02:19.658"},
		{"two digit year", testEpochNs, "yyMMdd", "250620"},
		{"unpadded", 0, "y-M-d H:m:s", "1980-1-6 0:0:0"},
		{"month names", testEpochNs, "dd MMM yyyy / MMMM", "20 Jun 2025 / June"},
		{"day of year", testEpochNs, "yyyy DDD", "2025 171"},
		{"quoted literal", testEpochNs, "'T'HH'h' 'o''clock'", "T21h o'clock"},
		{"escaped quote", 0, "yyyy''MM", "1980'01"},
		{"nine fraction digits", 1234567891, "ss.SSSSSSSSS", "01.234567891"},
		{"end of first week", NsPerWeek - 1, RinexCalendarPattern, "1980 01 12 23 59 59"},
		{"one week", NsPerWeek, RinexCalendarPattern, "1980 01 13 00 00 00"},
		{"leap day 2024", int64(1393200000) * NsPerSec, "yyyy-MM-dd", "2024-02-29"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := FormatCalendar(tt.ns, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s)
		})
	}
}

func TestFormatCalendarNoLeapSeconds(t *testing.T) {
	// GPS time runs 18 s ahead of UTC since 2017, the formatter must not remove them
	ns := int64(time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC).Sub(GpsEpoch))
	s, err := FormatCalendar(ns, RinexCalendarPattern)
	require.NoError(t, err)
	assert.Equal(t, "2017 01 01 00 00 00", s)
}

func TestFormatCalendarErrors(t *testing.T) {
	_, err := FormatCalendar(-1, RinexCalendarPattern)
	assert.ErrorIs(t, err, ErrNegativeTime)

	_, err = FormatCalendar(0, "yyyy QQ")
	assert.ErrorIs(t, err, ErrPattern)

	_, err = FormatCalendar(0, "yyyy 'open")
	assert.ErrorIs(t, err, ErrPattern)

	s, err := FormatCalendar(math.MaxInt64, "yyyy")
	require.NoError(t, err)
	assert.Equal(t, "2272", s)
}

func TestFormatFractionalSeconds(t *testing.T) {
	tests := []struct {
		name     string
		ns       int64
		expected string
	}{
		{"reference epoch", testEpochNs, "19.658000"},
		{"zero", 0, "0.000000"},
		{"microsecond", 1000, "0.000001"},
		{"truncated below microsecond", 59999999999, "59.999999"},
		{"minute boundary", 60 * NsPerSec, "0.000000"},
		{"day boundary", NsPerDay + 5*NsPerSec + 250000000, "5.250000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := FormatFractionalSeconds(tt.ns)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s)
		})
	}

	_, err := FormatFractionalSeconds(-1)
	assert.ErrorIs(t, err, ErrNegativeTime)
}

func TestGTimeNanos(t *testing.T) {
	g := NewGTimeFromNanos(testEpochNs)
	assert.Equal(t, 2371, g.Week)
	assert.InDelta(t, 507739.658, g.Sec, 1e-6)

	ns, err := g.Nanos()
	require.NoError(t, err)
	assert.Equal(t, testEpochNs, ns)

	_, err = GTime{Week: math.MaxInt32, Sec: 0}.Nanos()
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = GTime{Week: -1, Sec: 0}.Nanos()
	assert.ErrorIs(t, err, ErrNegativeTime)

	assert.Equal(t, time.Date(2025, 6, 20, 21, 2, 19, 658000000, time.UTC), g.ToTime())
	back := NewGTime(g.ToTime())
	assert.Equal(t, g.Week, back.Week)
	assert.InDelta(t, g.Sec, back.Sec, 1e-9)
}

func TestAdjWeek(t *testing.T) {
	assert.Equal(t, 2371, AdjWeek(2371%1024, 2371))
	assert.Equal(t, 2048, AdjWeek(0, 2047))
	assert.Equal(t, 2047, AdjWeek(1023, 2048))
	assert.Equal(t, 1560+0, AdjWeek(1560%1024, 0))
	assert.Equal(t, 2371, AdjWeek8(2371%256, 2371))
	assert.Equal(t, 2305, AdjWeek8(2305%256, 2371))
	assert.Equal(t, 2400, AdjWeek8(2400%256, 2371))
}
