// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gnssnav

import (
	"time"
)

// ------------------------------------
// For command argument parsing
// ------------------------------------

// Layout of TimeStr ("2025/06/20 21:02:19")
const TimeStrLayout = "2006/01/02 15:04:05"

// Date and time parser (for command arguments), interpreted as GPS time
type TimeStr time.Time

func (p *TimeStr) MarshalText() (text []byte, err error) {
	if time.Time(*p).IsZero() {
		return []byte{}, nil
	}
	return []byte(time.Time(*p).Format(TimeStrLayout)), nil
}

func (p *TimeStr) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*p = TimeStr{}
		return nil
	}
	t, err := time.Parse(TimeStrLayout, string(text))
	if err != nil {
		return err
	}
	*p = TimeStr(t)
	return nil
}

func NewTimeStr(t time.Time) *TimeStr {
	m := new(TimeStr)
	*m = TimeStr(t)
	return m
}

func (p *TimeStr) IsZero() bool {
	return time.Time(*p).IsZero()
}

// Week/seconds of the parsed time. No leap seconds are applied.
func (p *TimeStr) GTime() GTime {
	return *NewGTime(time.Time(*p))
}
