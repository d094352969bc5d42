// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gnssnav

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// Ten 30-bit words of one subframe, right-aligned in 32-bit containers (top 2 bits unused)
type SubframeWords [WordsPerSubframe]uint32

const (
	wordMask     = 0x3FFFFFFF
	allWordsMask = 1<<WordsPerSubframe - 1
)

// Split a chipset payload (big-endian 32-bit containers) into words.
// Returns the number of words present. A length that is not a whole number of words is malformed.
func SplitWords(payload []byte) (SubframeWords, int, error) {
	var w SubframeWords
	if len(payload)%4 != 0 || len(payload) > SubframeBytes {
		return w, 0, fmt.Errorf("%w: payload of %d bytes", ErrMalformedFrame, len(payload))
	}
	n := len(payload) / 4
	for i := 0; i < n; i++ {
		w[i] = binary.BigEndian.Uint32(payload[i*4:]) & wordMask
	}
	return w, n, nil
}

// Holding area for the words of the subframe currently being assembled for one satellite
type wordStore struct {
	id     int // Subframe id being assembled (0: none)
	words  SubframeWords
	filled uint16 // Bit i set when the word at position i+1 is present
}

// Store a word at position pos (1..10) of subframe id (1..5).
// Returns true when a different, never completed subframe was evicted to make room.
func (s *wordStore) put(id, pos int, word uint32) (evicted bool, err error) {
	if id < 1 || id > 5 {
		return false, fmt.Errorf("%w: subframe id %d", ErrMalformedFrame, id)
	}
	if pos < 1 || pos > WordsPerSubframe {
		return false, fmt.Errorf("%w: word position %d", ErrMalformedFrame, pos)
	}
	bit := uint16(1) << (pos - 1)
	switch {
	case s.id != id:
		evicted = s.id != 0 && s.filled != 0 && !s.complete()
		s.reset()
		s.id = id
	case s.filled&bit != 0:
		// Position already taken: a new instance of the same subframe has started
		evicted = !s.complete()
		s.reset()
		s.id = id
	}
	s.words[pos-1] = word & wordMask
	s.filled |= bit
	return evicted, nil
}

func (s *wordStore) complete() bool {
	return s.id != 0 && s.filled == allWordsMask
}

// Number of words present
func (s *wordStore) count() int {
	return bits.OnesCount16(s.filled)
}

func (s *wordStore) reset() {
	*s = wordStore{}
}

// Hamming masks of the six parity bits D25..D30 over D29*, D30*, d1..d24 (IS-GPS-200 Table 20-XIV)
var parityMasks = [6]uint32{0xBB1F3480, 0x5D8F9A40, 0xAEC7CD00, 0x5763E680, 0x6BB1F340, 0x8B7A89C0}

// Check the parity of a 30-bit word given the last two bits (D29*, D30*) of the previous word.
// Returns the 24 source data bits, restored when D30* inverted them.
func decodeWord(word, prev uint32) (uint32, error) {
	w := (prev&3)<<30 | word&wordMask
	if w&0x40000000 != 0 {
		w ^= 0x3FFFFFC0
	}
	var parity uint32
	for _, m := range parityMasks {
		parity = parity<<1 | uint32(bits.OnesCount32((w&m)>>6)&1)
	}
	if parity != w&0x3F {
		return 0, ErrParity
	}
	return w >> 6 & 0xFFFFFF, nil
}

// Remove parity from the ten words and pack the 240 data bits into a byte buffer.
// Without parity checking the words must already have the D30* inversion removed
// (u-blox SFRBX). Per-word inversion is not restored and D30 is ignored. Only a
// subframe whose preamble reads inverted (0x74) is restored as a whole.
func stripSubframe(w *SubframeWords, checkParity bool) ([]byte, error) {
	buf := make([]byte, StrippedBytes)
	var prev uint32
	for i, word := range w {
		var d uint32
		if checkParity {
			var err error
			if d, err = decodeWord(word, prev); err != nil {
				return nil, fmt.Errorf("%w: word %d", err, i+1)
			}
		} else {
			d = word >> 6 & 0xFFFFFF
		}
		buf[i*3] = byte(d >> 16)
		buf[i*3+1] = byte(d >> 8)
		buf[i*3+2] = byte(d)
		prev = word & 3
	}
	if !checkParity && buf[0] == ^byte(Preamble) {
		for i := range buf {
			buf[i] = ^buf[i]
		}
	}
	if buf[0] != Preamble {
		return nil, fmt.Errorf("%w: preamble %02X", ErrMalformedFrame, buf[0])
	}
	return buf, nil
}
