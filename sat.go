// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gnssnav

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// Type representing satellite name like "G10"
type SatType string

// Type representing satellite system like 'G'
type SysType byte

// Satellite name from system and number
func NewSatType(sys SysType, num int) SatType {
	return SatType(fmt.Sprintf("%c%02d", sys, num))
}

// Extract satellite system from satellite name
func (p SatType) Sys() SysType {
	if len(p) == 0 {
		return 0
	}
	return SysType(p[0])
}

// Extract satellite number from satellite name
func (p SatType) Num() int {
	if len(p) < 2 {
		return 0
	}
	i, err := strconv.Atoi(strings.TrimSpace(string(p[1:])))
	if err != nil {
		return 0
	}
	return i
}

// Check validity of satellite system
func (p SysType) IsValid() bool {
	return p == 'G' || p == 'J' || p == 'E' || p == 'R' || p == 'C' || p == 'S'
}

// System letter of the constellation a message type belongs to
func (t MsgType) Sys() SysType {
	switch t >> 8 {
	case 0x01:
		return 'G'
	case 0x02:
		return 'S'
	case 0x03:
		return 'R'
	case 0x04:
		return 'J'
	case 0x05:
		return 'C'
	case 0x06:
		return 'E'
	}
	return 0
}

// Sort the list of satellite names (system order G, J, E, R, C, S, then number)
func Sorted(s []SatType) []SatType {
	m := map[SysType]int{'G': 0, 'J': 1, 'E': 2, 'R': 3, 'C': 4, 'S': 5}
	s2 := slices.Clone(s)
	slices.SortFunc(s2, func(a, b SatType) int {
		if m[a.Sys()] != m[b.Sys()] {
			return m[a.Sys()] - m[b.Sys()]
		}
		return a.Num() - b.Num()
	})
	return s2
}

// Satellite list for command arguments ("G01,G02")
type SatVar []SatType

func (p *SatVar) Set(s string) error {
	*p = []SatType{}
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if len(a) < 2 || !SysType(a[0]).IsValid() {
			return fmt.Errorf("invalid satellite %q", a)
		}
		*p = append(*p, NewSatType(SysType(a[0]), SatType(a).Num()))
	}
	return nil
}

func (p *SatVar) String() string {
	if p == nil {
		return ""
	}
	s := make([]string, len(*p))
	for i, v := range *p {
		s[i] = string(v)
	}
	return strings.Join(s, ",")
}

func (p SatVar) Contains(sat SatType) bool {
	return slices.Contains(p, sat)
}
