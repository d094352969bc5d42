// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gnssnav

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
)

// Field layout of the parity-stripped legacy navigation subframe (24 data bits per word,
// word 1 starts at bit 0). IS-GPS-200 Figure 20-1.
var (
	fTowCount = BitField{Pos: 24, Len: 17}
	fSfID     = BitField{Pos: 43, Len: 3}

	// Subframe 1
	fWeek   = BitField{Pos: 48, Len: 10}
	fCode   = BitField{Pos: 58, Len: 2}
	fSva    = BitField{Pos: 60, Len: 4}
	fSvh    = BitField{Pos: 64, Len: 6}
	fIodcHi = BitField{Pos: 70, Len: 2}
	fL2P    = BitField{Pos: 72, Len: 1}
	fTgd    = BitField{Pos: 160, Len: 8, Signed: true, Exp: -31}
	fIodcLo = BitField{Pos: 168, Len: 8}
	fToc    = BitField{Pos: 176, Len: 16, Exp: 4}
	fAf2    = BitField{Pos: 192, Len: 8, Signed: true, Exp: -55}
	fAf1    = BitField{Pos: 200, Len: 16, Signed: true, Exp: -43}
	fAf0    = BitField{Pos: 216, Len: 22, Signed: true, Exp: -31}

	// Subframe 2
	fIode2  = BitField{Pos: 48, Len: 8}
	fCrs    = BitField{Pos: 56, Len: 16, Signed: true, Exp: -5}
	fDeltaN = BitField{Pos: 72, Len: 16, Signed: true, Exp: -43}
	fM0     = BitField{Pos: 88, Len: 32, Signed: true, Exp: -31}
	fCuc    = BitField{Pos: 120, Len: 16, Signed: true, Exp: -29}
	fEcc    = BitField{Pos: 136, Len: 32, Exp: -33}
	fCus    = BitField{Pos: 168, Len: 16, Signed: true, Exp: -29}
	fSqrtA  = BitField{Pos: 184, Len: 32, Exp: -19}
	fToe    = BitField{Pos: 216, Len: 16, Exp: 4}
	fFit    = BitField{Pos: 232, Len: 1}
	fAodo   = BitField{Pos: 233, Len: 5}

	// Subframe 3
	fCic    = BitField{Pos: 48, Len: 16, Signed: true, Exp: -29}
	fOmega0 = BitField{Pos: 64, Len: 32, Signed: true, Exp: -31}
	fCis    = BitField{Pos: 96, Len: 16, Signed: true, Exp: -29}
	fI0     = BitField{Pos: 112, Len: 32, Signed: true, Exp: -31}
	fCrc    = BitField{Pos: 144, Len: 16, Signed: true, Exp: -5}
	fOmega  = BitField{Pos: 160, Len: 32, Signed: true, Exp: -31}
	fOmegaD = BitField{Pos: 192, Len: 24, Signed: true, Exp: -43}
	fIode3  = BitField{Pos: 216, Len: 8}
	fIdot   = BitField{Pos: 224, Len: 14, Signed: true, Exp: -43}
)

// Subframe 1: clock and health
type subframe1 struct {
	tow  float64
	week int // Modulo-1024 week
	code int
	sva  int
	svh  int
	iodc int
	flag int
	tgd  float64
	toc  float64
	af0  float64
	af1  float64
	af2  float64
}

// Subframe 2: orbit part 1
type subframe2 struct {
	tow    float64
	iode   int
	crs    float64
	deltaN float64
	m0     float64
	cuc    float64
	ecc    float64
	cus    float64
	sqrtA  float64
	toe    float64
	fit    int
	aodo   int
}

// Subframe 3: orbit part 2
type subframe3 struct {
	tow    float64
	iode   int
	cic    float64
	omega0 float64
	cis    float64
	i0     float64
	crc    float64
	omega  float64
	omegaD float64
	idot   float64
}

// Transmission time of week [s] and subframe id from the hand-over word
func decodeHow(buf []byte) (tow float64, id int, err error) {
	r := fieldReader{buf: buf}
	tow = float64(r.uint(fTowCount)) * 6
	id = r.int(fSfID)
	return tow, id, r.err
}

func decodeSubframe1(buf []byte) (*subframe1, error) {
	r := fieldReader{buf: buf}
	sf := &subframe1{
		tow:  float64(r.uint(fTowCount)) * 6,
		week: r.int(fWeek),
		code: r.int(fCode),
		sva:  r.int(fSva),
		svh:  r.int(fSvh),
		iodc: int(r.joined(fIodcHi, fIodcLo)),
		flag: r.int(fL2P),
		toc:  r.float(fToc),
		af2:  r.float(fAf2),
		af1:  r.float(fAf1),
		af0:  r.float(fAf0),
	}
	// -128 is "not available"
	if r.int(BitField{Pos: fTgd.Pos, Len: fTgd.Len, Signed: true}) != -128 {
		sf.tgd = r.float(fTgd)
	}
	if r.err != nil {
		return nil, r.err
	}
	return sf, nil
}

func decodeSubframe2(buf []byte) (*subframe2, error) {
	r := fieldReader{buf: buf}
	sf := &subframe2{
		tow:    float64(r.uint(fTowCount)) * 6,
		iode:   r.int(fIode2),
		crs:    r.float(fCrs),
		deltaN: r.float(fDeltaN) * SC2RAD,
		m0:     r.float(fM0) * SC2RAD,
		cuc:    r.float(fCuc),
		ecc:    r.float(fEcc),
		cus:    r.float(fCus),
		sqrtA:  r.float(fSqrtA),
		toe:    r.float(fToe),
		fit:    r.int(fFit),
		aodo:   r.int(fAodo),
	}
	if r.err != nil {
		return nil, r.err
	}
	return sf, nil
}

func decodeSubframe3(buf []byte) (*subframe3, error) {
	r := fieldReader{buf: buf}
	sf := &subframe3{
		tow:    float64(r.uint(fTowCount)) * 6,
		cic:    r.float(fCic),
		omega0: r.float(fOmega0) * SC2RAD,
		cis:    r.float(fCis),
		i0:     r.float(fI0) * SC2RAD,
		crc:    r.float(fCrc),
		omega:  r.float(fOmega) * SC2RAD,
		omegaD: r.float(fOmegaD) * SC2RAD,
		iode:   r.int(fIode3),
		idot:   r.float(fIdot) * SC2RAD,
	}
	if r.err != nil {
		return nil, r.err
	}
	return sf, nil
}

// Curve fit interval [h] from the fit interval flag and IODC (IS-GPS-200 20.3.4.4)
func fitInterval(flag, iodc int) float64 {
	if flag == 0 {
		return 4
	}
	switch {
	case iodc >= 240 && iodc <= 247:
		return 8
	case iodc >= 248 && iodc <= 255, iodc == 496:
		return 14
	case iodc >= 497 && iodc <= 503, iodc >= 1021 && iodc <= 1023:
		return 26
	case iodc >= 504 && iodc <= 510:
		return 50
	case iodc == 511, iodc >= 752 && iodc <= 756:
		return 74
	case iodc == 757:
		return 98
	}
	return 6
}

// Time of week sec in week, moved to the week nearest to the reference time of week
func nearWeek(week int, sec, refTow float64) GTime {
	switch {
	case sec < refTow-SecPerWeek/2:
		week++
	case sec > refTow+SecPerWeek/2:
		week--
	}
	return GTime{Week: week, Sec: sec}
}

// Decoder of the GPS legacy civil navigation message (LNAV) for one satellite
type gpsL1CADecoder struct {
	sat   SatType
	opt   *DispatcherOpt
	log   *slog.Logger
	words wordStore
	sf1   *subframe1
	sf2   *subframe2
	sf3   *subframe3
	week  int // Last resolved full week (0: none yet)
	sent  bool
	iode  int // IODE/IODC of the last emitted ephemeris
	iodc  int
	pages [2][PagesPerSubframe][]byte // Last seen subframe 4/5 pages (words 3..10)
}

func newGpsL1CADecoder(svid int, opt *DispatcherOpt, log *slog.Logger) navDecoder {
	return &gpsL1CADecoder{
		sat: NewSatType('G', svid),
		opt: opt,
		log: log.With("sat", NewSatType('G', svid)),
	}
}

func (d *gpsL1CADecoder) state() NavState {
	switch {
	case d.sf1 != nil && d.sf2 != nil && d.sf3 != nil:
		return StateEphemerisReady
	case d.sf1 != nil || d.sf2 != nil || d.sf3 != nil || d.sent || d.words.count() > 0:
		return StateAccumulatingEphemeris
	}
	return StateEmpty
}

// Clear the words and the decoded ephemeris subframes after a failed subframe.
// The last emitted IODE/IODC is kept for de-duplication.
func (d *gpsL1CADecoder) reset() {
	d.words.reset()
	d.sf1, d.sf2, d.sf3 = nil, nil, nil
}

// Full week used to resolve modulo-1024/256 week numbers
func (d *gpsL1CADecoder) refWeek() int {
	if d.week > 0 {
		return d.week
	}
	return d.opt.refWeek()
}

func (d *gpsL1CADecoder) handle(f *RawFrame, out *emitter) error {
	if f.Svid < 1 || f.Svid > MaxGpsPrn {
		return fmt.Errorf("%w: GPS satellite id %d", ErrMalformedFrame, f.Svid)
	}
	words, n, err := SplitWords(f.Payload)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		evicted, err := d.words.put(f.SubMessageID, i+1, words[i])
		if err != nil {
			return err
		}
		if evicted {
			out.dropped("evicted")
			d.log.Debug("incomplete subframe evicted", "subframe", f.SubMessageID)
		}
	}
	if !d.words.complete() {
		if n < WordsPerSubframe {
			d.reset()
			return fmt.Errorf("%w: %d of %d words", ErrMalformedFrame, n, WordsPerSubframe)
		}
		return nil
	}

	id := d.words.id
	buf, err := stripSubframe(&d.words.words, d.opt.CheckParity)
	d.words.reset()
	if err != nil {
		d.reset()
		return err
	}
	_, hid, err := decodeHow(buf)
	if err != nil {
		return err
	}
	if hid != id {
		return fmt.Errorf("%w: subframe id %d in HOW, %d in frame", ErrMalformedFrame, hid, id)
	}

	switch id {
	case 1, 2, 3:
		return d.ephemerisSubframe(id, buf, out)
	default:
		return d.almanacSubframe(id, buf, out)
	}
}

// Store a decoded ephemeris subframe and emit the ephemeris when 1, 2 and 3 agree
func (d *gpsL1CADecoder) ephemerisSubframe(id int, buf []byte, out *emitter) error {
	var issue int
	switch id {
	case 1:
		sf, err := decodeSubframe1(buf)
		if err != nil {
			return err
		}
		d.sf1 = sf
		d.week = AdjWeek(sf.week, d.opt.refWeek())
		issue = sf.iodc & 0xFF
	case 2:
		sf, err := decodeSubframe2(buf)
		if err != nil {
			return err
		}
		d.sf2 = sf
		issue = sf.iode
	case 3:
		sf, err := decodeSubframe3(buf)
		if err != nil {
			return err
		}
		d.sf3 = sf
		issue = sf.iode
	}

	// A different issue of data starts a new set: held subframes of the old one are cleared
	if d.sf1 != nil && d.sf1.iodc&0xFF != issue {
		d.log.Debug("issue of data changed", "subframe", 1, "iodc", d.sf1.iodc, "issue", issue)
		d.sf1 = nil
	}
	if d.sf2 != nil && d.sf2.iode != issue {
		d.log.Debug("issue of data changed", "subframe", 2, "iode", d.sf2.iode, "issue", issue)
		d.sf2 = nil
	}
	if d.sf3 != nil && d.sf3.iode != issue {
		d.log.Debug("issue of data changed", "subframe", 3, "iode", d.sf3.iode, "issue", issue)
		d.sf3 = nil
	}

	if d.sf1 == nil || d.sf2 == nil || d.sf3 == nil {
		return nil
	}
	if err := d.checkIssue(); err != nil {
		// Not ready yet, keep accumulating
		d.log.Debug("ephemeris not ready", "err", err)
		return nil
	}
	iode, iodc := d.sf2.iode, d.sf1.iodc
	if d.sent && d.iode == iode && d.iodc == iodc {
		d.sf1, d.sf2, d.sf3 = nil, nil, nil
		return nil
	}
	eph := d.ephemeris()
	d.sf1, d.sf2, d.sf3 = nil, nil, nil
	d.sent, d.iode, d.iodc = true, iode, iodc
	out.ephemeris(eph)
	return nil
}

// IODE of subframes 2 and 3 and the 8 LSBs of IODC must agree
func (d *gpsL1CADecoder) checkIssue() error {
	if d.sf2.iode != d.sf3.iode || d.sf1.iodc&0xFF != d.sf2.iode {
		return fmt.Errorf("%w: iodc=%d iode2=%d iode3=%d", ErrInconsistentIssueOfData, d.sf1.iodc, d.sf2.iode, d.sf3.iode)
	}
	return nil
}

func (d *gpsL1CADecoder) ephemeris() *Ephemeris {
	sf1, sf2, sf3 := d.sf1, d.sf2, d.sf3
	week := AdjWeek(sf1.week, d.opt.refWeek())
	toe := nearWeek(week, sf2.toe, sf1.tow)
	return &Ephemeris{
		Sat:    d.sat,
		Toc:    nearWeek(week, sf1.toc, sf1.tow),
		Toe:    toe,
		Tot:    GTime{Week: week, Sec: sf1.tow},
		Iode:   sf2.iode,
		Iodc:   sf1.iodc,
		Af0:    sf1.af0,
		Af1:    sf1.af1,
		Af2:    sf1.af2,
		Crs:    sf2.crs,
		DeltaN: sf2.deltaN,
		M0:     sf2.m0,
		Cuc:    sf2.cuc,
		Ecc:    sf2.ecc,
		Cus:    sf2.cus,
		SqrtA:  sf2.sqrtA,
		Cic:    sf3.cic,
		Omega0: sf3.omega0,
		Cis:    sf3.cis,
		I0:     sf3.i0,
		Crc:    sf3.crc,
		Omega:  sf3.omega,
		OmegaD: sf3.omegaD,
		Idot:   sf3.idot,
		Code:   sf1.code,
		Week:   toe.Week,
		Flag:   sf1.flag,
		Sva:    sf1.sva,
		Svh:    sf1.svh,
		Tgd:    sf1.tgd,
		Fit:    fitInterval(sf2.fit, sf1.iodc),
		Aodo:   float64(sf2.aodo) * 900,
	}
}

// Subframe 4/5 page fields (IS-GPS-200 20.3.3.5)
var (
	fDataID = BitField{Pos: 48, Len: 2}
	fSvID   = BitField{Pos: 50, Len: 6}

	// Almanac
	fAlmEcc    = BitField{Pos: 56, Len: 16, Exp: -21}
	fAlmToa    = BitField{Pos: 72, Len: 8, Exp: 12}
	fAlmDeltaI = BitField{Pos: 80, Len: 16, Signed: true, Exp: -19}
	fAlmOmegaD = BitField{Pos: 96, Len: 16, Signed: true, Exp: -38}
	fAlmSvh    = BitField{Pos: 112, Len: 8}
	fAlmSqrtA  = BitField{Pos: 120, Len: 24, Exp: -11}
	fAlmOmega0 = BitField{Pos: 144, Len: 24, Signed: true, Exp: -23}
	fAlmOmega  = BitField{Pos: 168, Len: 24, Signed: true, Exp: -23}
	fAlmM0     = BitField{Pos: 192, Len: 24, Signed: true, Exp: -23}
	fAlmAf0Hi  = BitField{Pos: 216, Len: 8, Signed: true}
	fAlmAf1    = BitField{Pos: 224, Len: 11, Signed: true, Exp: -38}
	fAlmAf0Lo  = BitField{Pos: 235, Len: 3}

	// Subframe 5 page 25
	fAlmToaRef = BitField{Pos: 56, Len: 8, Exp: 12}
	fAlmWna    = BitField{Pos: 64, Len: 8}

	// Subframe 4 page 18
	fAlpha = [4]BitField{
		{Pos: 56, Len: 8, Signed: true, Exp: -30},
		{Pos: 64, Len: 8, Signed: true, Exp: -27},
		{Pos: 72, Len: 8, Signed: true, Exp: -24},
		{Pos: 80, Len: 8, Signed: true, Exp: -24},
	}
	fBeta = [4]BitField{
		{Pos: 88, Len: 8, Signed: true, Exp: 11},
		{Pos: 96, Len: 8, Signed: true, Exp: 14},
		{Pos: 104, Len: 8, Signed: true, Exp: 16},
		{Pos: 112, Len: 8, Signed: true, Exp: 16},
	}
	fUtcA1    = BitField{Pos: 120, Len: 24, Signed: true, Exp: -50}
	fUtcA0    = BitField{Pos: 144, Len: 32, Signed: true, Exp: -30}
	fUtcTot   = BitField{Pos: 176, Len: 8}
	fUtcWnt   = BitField{Pos: 184, Len: 8}
	fUtcDtls  = BitField{Pos: 192, Len: 8, Signed: true}
	fUtcWnlsf = BitField{Pos: 200, Len: 8}
	fUtcDn    = BitField{Pos: 208, Len: 8}
	fUtcDtlsf = BitField{Pos: 216, Len: 8, Signed: true}
)

const (
	svIDAlmanacRef = 51 // Subframe 5 page 25
	svIDIonoUtc    = 56 // Subframe 4 page 18
)

// Page number (1..25) of a subframe 4/5 from the TOW count of its HOW
func pageNumber(towCount int) int {
	return (towCount-1)/5%PagesPerSubframe + 1
}

func (d *gpsL1CADecoder) almanacSubframe(id int, buf []byte, out *emitter) error {
	r := fieldReader{buf: buf}
	towCount := r.int(fTowCount)
	dataID := r.int(fDataID)
	svid := r.int(fSvID)
	if r.err != nil {
		return r.err
	}
	page := pageNumber(towCount)
	body := buf[6:]
	if prev := d.pages[id-4][page-1]; prev != nil && bytes.Equal(prev, body) {
		return nil
	}
	d.pages[id-4][page-1] = bytes.Clone(body)

	// Data ID 01 is the only one defined for GPS
	if dataID != 1 {
		return nil
	}
	switch {
	case svid >= 1 && svid <= MaxGpsPrn:
		alm, err := decodeAlmanac(svid, buf)
		if err != nil {
			return err
		}
		out.almanac(alm, d.refWeek())
	case id == 5 && svid == svIDAlmanacRef:
		toa := r.float(fAlmToaRef)
		wna := r.int(fAlmWna)
		if r.err != nil {
			return r.err
		}
		out.almanacRef(toa, wna)
	case id == 4 && svid == svIDIonoUtc:
		p, err := d.decodeIonoUtc(buf)
		if err != nil {
			return err
		}
		out.ionoUtc(p)
	}
	return nil
}

func decodeAlmanac(svid int, buf []byte) (*Almanac, error) {
	r := fieldReader{buf: buf}
	alm := &Almanac{
		Sat:    NewSatType('G', svid),
		Week:   -1,
		Ecc:    r.float(fAlmEcc),
		Toas:   r.float(fAlmToa),
		I0:     (0.3 + r.float(fAlmDeltaI)) * SC2RAD,
		OmegaD: r.float(fAlmOmegaD) * SC2RAD,
		Svh:    r.int(fAlmSvh),
		SqrtA:  r.float(fAlmSqrtA),
		Omega0: r.float(fAlmOmega0) * SC2RAD,
		Omega:  r.float(fAlmOmega) * SC2RAD,
		M0:     r.float(fAlmM0) * SC2RAD,
		Af0:    math.Ldexp(float64(r.joined(fAlmAf0Hi, fAlmAf0Lo)), -20),
		Af1:    r.float(fAlmAf1),
	}
	if r.err != nil {
		return nil, r.err
	}
	return alm, nil
}

func (d *gpsL1CADecoder) decodeIonoUtc(buf []byte) (*IonoUtc, error) {
	r := fieldReader{buf: buf}
	p := &IonoUtc{}
	for i := range p.Alpha {
		p.Alpha[i] = r.float(fAlpha[i])
		p.Beta[i] = r.float(fBeta[i])
	}
	p.A1 = r.float(fUtcA1)
	p.A0 = r.float(fUtcA0)
	p.Tot = r.int(fUtcTot) << 12
	p.WNt = AdjWeek8(r.int(fUtcWnt), d.refWeek())
	p.DeltaTLS = r.int(fUtcDtls)
	p.WNLSF = AdjWeek8(r.int(fUtcWnlsf), d.refWeek())
	p.DN = r.int(fUtcDn)
	p.DeltaTLSF = r.int(fUtcDtlsf)
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}
