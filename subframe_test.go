// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gnssnav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeWord(t *testing.T) {
	data := []uint32{0x000000, 0xFFFFFF, 0x8B0000, 0x123456, 0xA5A5A5}
	for prev := uint32(0); prev < 4; prev++ {
		for _, d := range data {
			w := encodeWord(d, prev)
			got, err := decodeWord(w, prev)
			require.NoError(t, err, "d=%06X prev=%d", d, prev)
			assert.Equal(t, d, got, "d=%06X prev=%d", d, prev)

			// Any single bit error is detected
			for bit := 0; bit < BitsPerWord; bit++ {
				_, err := decodeWord(w^1<<bit, prev)
				assert.ErrorIs(t, err, ErrParity, "d=%06X prev=%d bit=%d", d, prev, bit)
			}
		}
	}
}

func TestDecodeWordInverted(t *testing.T) {
	// D30* set: data bits go out inverted
	w := encodeWord(0x123456, 1)
	assert.Equal(t, uint32(0x123456^0xFFFFFF), w>>6)
	d, err := decodeWord(w, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x123456), d)
}

func TestSplitWords(t *testing.T) {
	b := newFrameBuilder(1, 1)
	w := b.words()

	got, n, err := SplitWords(wordsPayload(w))
	require.NoError(t, err)
	assert.Equal(t, WordsPerSubframe, n)
	assert.Equal(t, w, got)

	// Top two bits of each container are ignored
	p := wordsPayload(w)
	p[0] |= 0xC0
	got, _, err = SplitWords(p)
	require.NoError(t, err)
	assert.Equal(t, w, got)

	_, n, err = SplitWords(wordsPayload(w)[:20])
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	for _, size := range []int{38, 41, 44} {
		_, _, err = SplitWords(make([]byte, size))
		assert.ErrorIs(t, err, ErrMalformedFrame, "size=%d", size)
	}
}

func TestWordStore(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		var s wordStore
		for pos := 1; pos <= WordsPerSubframe; pos++ {
			assert.False(t, s.complete())
			evicted, err := s.put(2, pos, uint32(pos))
			require.NoError(t, err)
			assert.False(t, evicted)
		}
		assert.True(t, s.complete())
		assert.Equal(t, 2, s.id)
		assert.Equal(t, uint32(10), s.words[9])
	})

	t.Run("out of order", func(t *testing.T) {
		var s wordStore
		for _, pos := range []int{10, 3, 1, 9, 2, 8, 4, 7, 5, 6} {
			_, err := s.put(4, pos, 0)
			require.NoError(t, err)
		}
		assert.True(t, s.complete())
	})

	t.Run("stale subframe evicted", func(t *testing.T) {
		var s wordStore
		for pos := 1; pos <= 9; pos++ {
			_, _ = s.put(1, pos, 0)
		}
		evicted, err := s.put(2, 1, 0)
		require.NoError(t, err)
		assert.True(t, evicted)
		assert.Equal(t, 2, s.id)
		assert.Equal(t, 1, s.count())
	})

	t.Run("same id restarts", func(t *testing.T) {
		var s wordStore
		_, _ = s.put(3, 1, 7)
		_, _ = s.put(3, 2, 7)
		evicted, err := s.put(3, 1, 8)
		require.NoError(t, err)
		assert.True(t, evicted)
		assert.Equal(t, 1, s.count())
		assert.Equal(t, uint32(8), s.words[0])
	})

	t.Run("30-bit words", func(t *testing.T) {
		var s wordStore
		_, _ = s.put(1, 1, 0xFFFFFFFF)
		assert.Equal(t, uint32(0x3FFFFFFF), s.words[0])
	})

	t.Run("invalid", func(t *testing.T) {
		var s wordStore
		_, err := s.put(0, 1, 0)
		assert.ErrorIs(t, err, ErrMalformedFrame)
		_, err = s.put(6, 1, 0)
		assert.ErrorIs(t, err, ErrMalformedFrame)
		_, err = s.put(1, 0, 0)
		assert.ErrorIs(t, err, ErrMalformedFrame)
		_, err = s.put(1, 11, 0)
		assert.ErrorIs(t, err, ErrMalformedFrame)
		assert.Equal(t, 0, s.count())
	})
}

func TestStripSubframe(t *testing.T) {
	b := newRawEphemeris(5, 0, 0x2A5).subframe2()

	w := b.words()
	buf, err := stripSubframe(&w, true)
	require.NoError(t, err)
	assert.Equal(t, b.buf[:], buf)

	// Corrupted word
	w[4] ^= 1 << 12
	_, err = stripSubframe(&w, true)
	assert.ErrorIs(t, err, ErrParity)

	// Wrong preamble
	bad := *b
	bad.setBits(0, 8, 0x8A)
	w = bad.words()
	_, err = stripSubframe(&w, true)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestStripSubframeWithoutParity(t *testing.T) {
	b := newRawEphemeris(5, 0, 0x2A5).subframe3()

	// Words as delivered by receivers that already removed the D30* inversion
	var w SubframeWords
	for i := range w {
		w[i] = (uint32(b.buf[i*3])<<16 | uint32(b.buf[i*3+1])<<8 | uint32(b.buf[i*3+2])) << 6
	}
	buf, err := stripSubframe(&w, false)
	require.NoError(t, err)
	assert.Equal(t, b.buf[:], buf)

	// Whole subframe with inverted polarity
	for i := range w {
		w[i] ^= 0x3FFFFFC0
	}
	buf, err = stripSubframe(&w, false)
	require.NoError(t, err)
	assert.Equal(t, b.buf[:], buf)
}

func TestStripSubframeWithoutParityIgnoresD30(t *testing.T) {
	b := newRawEphemeris(5, 0, 0x2A5).subframe3()

	// D30 set on every word does not invert the following data bits
	var w SubframeWords
	for i := range w {
		w[i] = (uint32(b.buf[i*3])<<16|uint32(b.buf[i*3+1])<<8|uint32(b.buf[i*3+2]))<<6 | 0x3F
	}
	buf, err := stripSubframe(&w, false)
	require.NoError(t, err)
	assert.Equal(t, b.buf[:], buf)

	// The same words fail when parity is checked
	_, err = stripSubframe(&w, true)
	assert.ErrorIs(t, err, ErrParity)
}
