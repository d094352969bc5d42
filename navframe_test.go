// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gnssnav

import (
	"encoding/binary"
	"math"
	"math/bits"
)

// Builds parity-stripped subframes from raw field values and encodes them
// into transmitted words, so that tests can compare against exact scaled values.
type frameBuilder struct {
	buf [StrippedBytes]byte
}

func newFrameBuilder(towCount, sfid int) *frameBuilder {
	b := &frameBuilder{}
	b.setBits(0, 8, Preamble)
	b.set(fTowCount, int64(towCount))
	b.set(fSfID, int64(sfid))
	return b
}

func (b *frameBuilder) setBits(pos, n int, v uint64) {
	for i := 0; i < n; i++ {
		p := pos + i
		if v>>(n-1-i)&1 != 0 {
			b.buf[p/8] |= 0x80 >> (p % 8)
		} else {
			b.buf[p/8] &^= 0x80 >> (p % 8)
		}
	}
}

// Write the low f.Len bits of the raw value
func (b *frameBuilder) set(f BitField, raw int64) *frameBuilder {
	b.setBits(f.Pos, f.Len, uint64(raw))
	return b
}

// Transmitted 30-bit word for 24 source data bits and the previous word's D29*/D30*
func encodeWord(d, prev uint32) uint32 {
	src := (prev&3)<<30 | (d&0xFFFFFF)<<6
	var p uint32
	for _, m := range parityMasks {
		p = p<<1 | uint32(bits.OnesCount32((src&m)>>6)&1)
	}
	if prev&1 != 0 {
		d ^= 0xFFFFFF
	}
	return (d&0xFFFFFF)<<6 | p
}

func (b *frameBuilder) words() SubframeWords {
	var w SubframeWords
	var prev uint32
	for i := range w {
		d := uint32(b.buf[i*3])<<16 | uint32(b.buf[i*3+1])<<8 | uint32(b.buf[i*3+2])
		w[i] = encodeWord(d, prev)
		prev = w[i] & 3
	}
	return w
}

func wordsPayload(w SubframeWords) []byte {
	p := make([]byte, SubframeBytes)
	for i, v := range w {
		binary.BigEndian.PutUint32(p[i*4:], v)
	}
	return p
}

func (b *frameBuilder) payload() []byte {
	return wordsPayload(b.words())
}

func (b *frameBuilder) frame(svid, sfid int) RawFrame {
	return RawFrame{Svid: svid, Type: MsgTypeGpsL1CA, SubMessageID: sfid, Payload: b.payload()}
}

const (
	testWeek     = 2371
	testTowCount = 84600 // 507600 s
)

// Raw values of a reference ephemeris; seed varies a few fields per satellite
type rawEphemeris struct {
	svid, seed int
	iodc, iode int
	towCount   int
	toe        int64 // Raw toe (16 s units)
}

func newRawEphemeris(svid, seed, iodc int) rawEphemeris {
	return rawEphemeris{svid: svid, seed: seed, iodc: iodc, iode: iodc & 0xFF, towCount: testTowCount, toe: testTowCount * 6 / 16}
}

func (r rawEphemeris) subframe1() *frameBuilder {
	return newFrameBuilder(r.towCount, 1).
		set(fWeek, testWeek%1024).
		set(fCode, 1).
		set(fSva, 2).
		set(fSvh, 0).
		set(fIodcHi, int64(r.iodc>>8)).
		set(fL2P, 0).
		set(fTgd, -17).
		set(fIodcLo, int64(r.iodc&0xFF)).
		set(fToc, r.toe).
		set(fAf2, 3).
		set(fAf1, -12).
		set(fAf0, int64(-123456+r.seed))
}

func (r rawEphemeris) subframe2() *frameBuilder {
	return newFrameBuilder(r.towCount+1, 2).
		set(fIode2, int64(r.iode)).
		set(fCrs, int64(-1234+r.seed)).
		set(fDeltaN, 12345).
		set(fM0, -987654321).
		set(fCuc, -2345).
		set(fEcc, 41943040).
		set(fCus, 3456).
		set(fSqrtA, 2702071808).
		set(fToe, r.toe).
		set(fFit, 0).
		set(fAodo, 3)
}

func (r rawEphemeris) subframe3() *frameBuilder {
	return newFrameBuilder(r.towCount+2, 3).
		set(fCic, -23).
		set(fOmega0, int64(1234567890+r.seed)).
		set(fCis, 45).
		set(fI0, 660000000).
		set(fCrc, 7000).
		set(fOmega, -1500000000).
		set(fOmegaD, -8000).
		set(fIode3, int64(r.iode)).
		set(fIdot, -300)
}

func (r rawEphemeris) frames() [3]RawFrame {
	return [3]RawFrame{
		r.subframe1().frame(r.svid, 1),
		r.subframe2().frame(r.svid, 2),
		r.subframe3().frame(r.svid, 3),
	}
}

func (r rawEphemeris) expected() *Ephemeris {
	tow := float64(r.towCount * 6)
	toe := math.Ldexp(float64(r.toe), 4)
	return &Ephemeris{
		Sat:    NewSatType('G', r.svid),
		Toc:    GTime{Week: testWeek, Sec: toe},
		Toe:    GTime{Week: testWeek, Sec: toe},
		Tot:    GTime{Week: testWeek, Sec: tow},
		Iode:   r.iode,
		Iodc:   r.iodc,
		Af0:    math.Ldexp(float64(-123456+r.seed), -31),
		Af1:    math.Ldexp(-12, -43),
		Af2:    math.Ldexp(3, -55),
		Crs:    math.Ldexp(float64(-1234+r.seed), -5),
		DeltaN: math.Ldexp(12345, -43) * SC2RAD,
		M0:     math.Ldexp(-987654321, -31) * SC2RAD,
		Cuc:    math.Ldexp(-2345, -29),
		Ecc:    math.Ldexp(41943040, -33),
		Cus:    math.Ldexp(3456, -29),
		SqrtA:  math.Ldexp(2702071808, -19),
		Cic:    math.Ldexp(-23, -29),
		Omega0: math.Ldexp(float64(1234567890+r.seed), -31) * SC2RAD,
		Cis:    math.Ldexp(45, -29),
		I0:     math.Ldexp(660000000, -31) * SC2RAD,
		Crc:    math.Ldexp(7000, -5),
		Omega:  math.Ldexp(-1500000000, -31) * SC2RAD,
		OmegaD: math.Ldexp(-8000, -43) * SC2RAD,
		Idot:   math.Ldexp(-300, -43) * SC2RAD,
		Code:   1,
		Week:   testWeek,
		Flag:   0,
		Sva:    2,
		Svh:    0,
		Tgd:    math.Ldexp(-17, -31),
		Fit:    4,
		Aodo:   2700,
	}
}

// Listener collecting everything it is handed
type recorder struct {
	eph []*Ephemeris
	alm []*Almanac
	ion []*IonoUtc
}

func (r *recorder) OnEphemeris(e *Ephemeris) { r.eph = append(r.eph, e) }
func (r *recorder) OnAlmanac(a *Almanac)     { r.alm = append(r.alm, a) }
func (r *recorder) OnIonoUtc(p *IonoUtc)     { r.ion = append(r.ion, p) }

func newTestDispatcher(l EphemerisListener) *Dispatcher {
	opt := NewDispatcherOpt()
	opt.RefWeek = testWeek
	return NewDispatcher(l, opt)
}
