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

	"github.com/bamiaux/iobit"
)

// Maximum width of a single extracted field [bits]
const MaxBitWidth = 64

// Extract unsigned bits from a big-endian bitstream
// - pos is counted from the most significant bit of buf[0]
func GetBitU(buf []byte, pos, n int) (uint64, error) {
	if n < 1 || n > MaxBitWidth || pos < 0 || pos+n > len(buf)*8 {
		return 0, fmt.Errorf("%w: pos=%d len=%d buffer=%d bits", ErrBitRange, pos, n, len(buf)*8)
	}
	r := iobit.NewReader(buf)
	r.Skip(uint(pos))
	v := r.Uint64(uint(n))
	if err := r.Error(); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrBitRange, err)
	}
	return v, nil
}

// Extract signed (two's complement) bits from a big-endian bitstream
func GetBitS(buf []byte, pos, n int) (int64, error) {
	u, err := GetBitU(buf, pos, n)
	if err != nil {
		return 0, err
	}
	return signExtend(u, n), nil
}

// Extract bits and multiply by 2^exp
func GetBitScaled(buf []byte, pos, n int, signed bool, exp int) (float64, error) {
	if signed {
		v, err := GetBitS(buf, pos, n)
		if err != nil {
			return 0, err
		}
		return math.Ldexp(float64(v), exp), nil
	}
	v, err := GetBitU(buf, pos, n)
	if err != nil {
		return 0, err
	}
	return math.Ldexp(float64(v), exp), nil
}

func signExtend(u uint64, n int) int64 {
	if n >= 64 {
		return int64(u)
	}
	shift := uint(64 - n)
	return int64(u<<shift) >> shift
}

// Description of one field in a navigation message: position, width, signedness and power-of-two scale
type BitField struct {
	Pos    int
	Len    int
	Signed bool
	Exp    int
}

func (f BitField) Uint(buf []byte) (uint64, error) {
	return GetBitU(buf, f.Pos, f.Len)
}

func (f BitField) Int(buf []byte) (int64, error) {
	if !f.Signed {
		u, err := GetBitU(buf, f.Pos, f.Len)
		return int64(u), err
	}
	return GetBitS(buf, f.Pos, f.Len)
}

func (f BitField) Float(buf []byte) (float64, error) {
	return GetBitScaled(buf, f.Pos, f.Len, f.Signed, f.Exp)
}

// Field reader that keeps the first error, so that a decoder can read a
// whole subframe and check once at the end
type fieldReader struct {
	buf []byte
	err error
}

func (r *fieldReader) uint(f BitField) uint64 {
	if r.err != nil {
		return 0
	}
	v, err := f.Uint(r.buf)
	r.err = err
	return v
}

func (r *fieldReader) int(f BitField) int {
	if r.err != nil {
		return 0
	}
	v, err := f.Int(r.buf)
	r.err = err
	return int(v)
}

func (r *fieldReader) float(f BitField) float64 {
	if r.err != nil {
		return 0
	}
	v, err := f.Float(r.buf)
	r.err = err
	return v
}

// Field split in two parts (MSB part first), sign taken from the joined value
func (r *fieldReader) joined(hi, lo BitField) int64 {
	h := r.uint(BitField{Pos: hi.Pos, Len: hi.Len})
	l := r.uint(BitField{Pos: lo.Pos, Len: lo.Len})
	if r.err != nil {
		return 0
	}
	u := h<<uint(lo.Len) | l
	if hi.Signed {
		return signExtend(u, hi.Len+lo.Len)
	}
	return int64(u)
}
