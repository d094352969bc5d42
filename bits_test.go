// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gnssnav

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBitU(t *testing.T) {
	buf := []byte{0xA5, 0x3C, 0xFF, 0x00, 0x81}
	tests := []struct {
		name     string
		pos, n   int
		expected uint64
	}{
		{"first bit", 0, 1, 1},
		{"second bit", 1, 1, 0},
		{"first byte", 0, 8, 0xA5},
		{"straddle bytes", 4, 8, 0x53},
		{"odd offset", 3, 5, 0x05},
		{"16 bits unaligned", 12, 16, 0xCFF0},
		{"whole buffer", 0, 40, 0xA53CFF0081},
		{"last bit", 39, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := GetBitU(buf, tt.pos, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestGetBitU64(t *testing.T) {
	buf := []byte{0xFF, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0xF0}
	v, err := GetBitU(buf, 8, 64)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), v)

	v, err = GetBitU(buf, 4, 64)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xF010203040506070), v)
}

func TestGetBitS(t *testing.T) {
	tests := []struct {
		name     string
		buf      []byte
		pos, n   int
		expected int64
	}{
		{"positive", []byte{0x7F}, 0, 8, 127},
		{"minus one", []byte{0xFF}, 0, 8, -1},
		{"min 8 bit", []byte{0x80}, 0, 8, -128},
		{"3 bits negative", []byte{0b10100000}, 0, 3, -3},
		{"3 bits positive", []byte{0b01100000}, 0, 3, 3},
		{"14 bits across bytes", []byte{0x0F, 0xFF, 0xC0}, 4, 14, -1},
		{"22 bits", []byte{0x20, 0x00, 0x00}, 2, 22, -2097152},
		{"64 bits", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFE}, 0, 64, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := GetBitS(tt.buf, tt.pos, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestGetBitScaled(t *testing.T) {
	buf := []byte{0xFF, 0xF0}
	v, err := GetBitScaled(buf, 0, 8, true, -5)
	require.NoError(t, err)
	assert.Equal(t, -0.03125, v)

	v, err = GetBitScaled(buf, 0, 8, false, 4)
	require.NoError(t, err)
	assert.Equal(t, 255.0*16, v)

	v, err = GetBitScaled(buf, 4, 12, true, -31)
	require.NoError(t, err)
	assert.Equal(t, -16.0/2147483648.0, v)
}

func TestGetBitRange(t *testing.T) {
	buf := make([]byte, 4)
	tests := []struct {
		name   string
		pos, n int
	}{
		{"past end", 30, 3},
		{"zero width", 0, 0},
		{"too wide", 0, 65},
		{"negative pos", -1, 4},
		{"exactly one past", 32, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GetBitU(buf, tt.pos, tt.n)
			assert.True(t, errors.Is(err, ErrBitRange), "err=%v", err)
			_, err = GetBitS(buf, tt.pos, tt.n)
			assert.True(t, errors.Is(err, ErrBitRange))
			_, err = GetBitScaled(buf, tt.pos, tt.n, true, 0)
			assert.True(t, errors.Is(err, ErrBitRange))
		})
	}
	v, err := GetBitU(buf, 31, 1)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), v)
}

func TestFieldReaderJoined(t *testing.T) {
	// 8 MSB bits = 0xFF, 3 LSB bits = 0b110 -> 11 bit value 0x7FE = -2
	buf := []byte{0xFF, 0b11000000}
	r := fieldReader{buf: buf}
	v := r.joined(BitField{Pos: 0, Len: 8, Signed: true}, BitField{Pos: 8, Len: 3})
	require.NoError(t, r.err)
	assert.Equal(t, int64(-2), v)

	// the first error is kept
	r = fieldReader{buf: buf}
	_ = r.uint(BitField{Pos: 12, Len: 8})
	assert.ErrorIs(t, r.err, ErrBitRange)
	assert.Equal(t, uint64(0), r.uint(BitField{Pos: 0, Len: 8}))
	assert.ErrorIs(t, r.err, ErrBitRange)
}
