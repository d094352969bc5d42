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
	"time"
)

// GPS time starts from 1980/1/6 00:00:00 and has no leap seconds
var GpsEpoch = time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC)

type GTime struct {
	Week int
	Sec  float64
}

func NewGTime(dt time.Time) *GTime {
	d := dt.Sub(GpsEpoch)
	t := int64(d / time.Second) // Elapsed seconds since 1980/1/6 00:00:00
	return &GTime{
		Week: int(t / SecPerWeek),
		Sec:  float64(t%SecPerWeek) + float64(d%time.Second)/1e9,
	}
}

// Week/seconds from nanoseconds since the GPS epoch
func NewGTimeFromNanos(ns int64) GTime {
	return GTime{
		Week: int(ns / NsPerWeek),
		Sec:  float64(ns%NsPerWeek) / 1e9,
	}
}

// Nanoseconds since the GPS epoch
func (p GTime) Nanos() (int64, error) {
	if p.Week < 0 || p.Sec < 0 || math.IsNaN(p.Sec) {
		return 0, fmt.Errorf("%w: week=%d sec=%f", ErrNegativeTime, p.Week, p.Sec)
	}
	if int64(p.Week) > math.MaxInt64/NsPerWeek {
		return 0, fmt.Errorf("%w: week=%d", ErrOverflow, p.Week)
	}
	w := int64(p.Week) * NsPerWeek
	s := math.Round(p.Sec * 1e9)
	if s >= float64(math.MaxInt64-w) {
		return 0, fmt.Errorf("%w: week=%d sec=%f", ErrOverflow, p.Week, p.Sec)
	}
	return w + int64(s), nil
}

func (p GTime) ToTime() time.Time {
	i := math.Trunc(p.Sec)
	return GpsEpoch.Add(time.Duration(p.Week) * SecPerWeek * time.Second).
		Add(time.Duration(i) * time.Second).
		Add(time.Duration(math.Round((p.Sec - i) * 1e9)))
}

// Time difference p-b [s]
func (p GTime) Sub(b GTime) float64 {
	return float64(p.Week-b.Week)*SecPerWeek + p.Sec - b.Sec
}

func (p GTime) Less(b GTime) bool {
	if p.Week == b.Week {
		return p.Sec < b.Sec
	}
	return p.Week < b.Week
}

func (p GTime) String() string {
	return fmt.Sprintf("%d:%.3f", p.Week, p.Sec)
}

// Resolve the modulo-1024 week number against a reference week
func AdjWeek(week, refWeek int) int {
	if refWeek < MinRefWeek {
		refWeek = MinRefWeek
	}
	return week + (refWeek-week+512)/1024*1024
}

// Resolve the modulo-256 week number of the almanac/UTC parameters against a full week
func AdjWeek8(week8, refWeek int) int {
	w := week8 + refWeek/256*256
	if w < refWeek-127 {
		w += 256
	} else if w > refWeek+127 {
		w -= 256
	}
	return w
}
