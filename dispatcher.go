// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gnssnav

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mkhts/gnssnav/internal/metrics"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Raw navigation message frame as delivered by the chipset
type RawFrame struct {
	Svid         int     // Satellite id (PRN for GPS)
	Type         MsgType // Constellation/signal
	MessageID    int     // Frame/page id reported by the source (informational)
	SubMessageID int     // Subframe id (1..5)
	Payload      []byte  // 10 words, each 30-bit word right-aligned in 4 bytes, MSB first
}

// Decoding state of one satellite
type NavState int

const (
	StateEmpty NavState = iota
	StateAccumulatingEphemeris
	StateEphemerisReady
)

func (s NavState) String() string {
	switch s {
	case StateEmpty:
		return "Empty"
	case StateAccumulatingEphemeris:
		return "AccumulatingEphemeris"
	case StateEphemerisReady:
		return "EphemerisReady"
	}
	return "Unknown"
}

// Receiver of decoded ephemerides. Called synchronously from Handle.
type EphemerisListener interface {
	OnEphemeris(eph *Ephemeris)
}

type EphemerisListenerFunc func(eph *Ephemeris)

func (f EphemerisListenerFunc) OnEphemeris(eph *Ephemeris) { f(eph) }

// Optionally implemented by an EphemerisListener to receive almanacs
type AlmanacListener interface {
	OnAlmanac(alm *Almanac)
}

// Optionally implemented by an EphemerisListener to receive ionospheric and UTC parameters
type IonoUtcListener interface {
	OnIonoUtc(p *IonoUtc)
}

// Options of the dispatcher
type DispatcherOpt struct {
	CheckParity   bool             // Verify word parity. Disable only for words with the D30* inversion already removed
	MaxIdleFrames int              // Drop a satellite's state after this many frames without it (0: never)
	RefWeek       int              // Reference full GPS week for the 10-bit week number (0: from Now)
	Now           func() time.Time // Clock for the reference week
	Logger        *slog.Logger     // nil: discard
}

func NewDispatcherOpt() *DispatcherOpt {
	return &DispatcherOpt{
		CheckParity:   true,
		MaxIdleFrames: 3000,
		Now:           time.Now,
	}
}

func (o *DispatcherOpt) refWeek() int {
	if o.RefWeek > 0 {
		return o.RefWeek
	}
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	return NewGTime(now().Add(LS * time.Second)).Week
}

// Per-satellite, per-message-type decoder
type navDecoder interface {
	handle(f *RawFrame, out *emitter) error
	state() NavState
}

type decoderFactory func(svid int, opt *DispatcherOpt, log *slog.Logger) navDecoder

type decoderEntry struct {
	factory decoderFactory
	maxSvid int // Satellite ids 1..maxSvid
}

// Decoders selected by message type. Other constellations plug in here.
var decoderFactories = map[MsgType]decoderEntry{
	MsgTypeGpsL1CA: {factory: newGpsL1CADecoder, maxSvid: MaxGpsPrn},
}

type satState struct {
	lastSeen uint64
	decoders map[MsgType]navDecoder
}

// Routes raw frames to per-satellite decoders and delivers decoded records to the listener.
// Not safe for concurrent use: frames must be handed in from one goroutine at a time.
type Dispatcher struct {
	opt    DispatcherOpt
	log    *slog.Logger
	out    emitter
	sats   map[int]*satState
	frames uint64
}

func NewDispatcher(listener EphemerisListener, opt *DispatcherOpt) *Dispatcher {
	if opt == nil {
		opt = NewDispatcherOpt()
	}
	d := &Dispatcher{
		opt:  *opt,
		log:  opt.Logger,
		sats: map[int]*satState{},
	}
	if d.log == nil {
		d.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d.out = emitter{
		log:     d.log,
		eph:     listener,
		lastAlm: map[SatType]Almanac{},
		almWna:  -1,
	}
	if l, ok := listener.(AlmanacListener); ok {
		d.out.alm = l
	}
	if l, ok := listener.(IonoUtcListener); ok {
		d.out.ion = l
	}
	return d
}

// Handle one raw frame. Failures are logged and counted, never returned.
func (d *Dispatcher) Handle(f RawFrame) {
	_ = d.HandleErr(f)
}

// Handle one raw frame and return the classified failure, if any.
// ErrUnsupportedMessageType means the frame was ignored.
func (d *Dispatcher) HandleErr(f RawFrame) error {
	err := d.handle(&f)
	result := classify(err)
	metrics.FrameHandled(f.Type.String(), result)
	switch result {
	case "ok":
	case "ignored":
		d.log.Debug("frame ignored", "svid", f.Svid, "type", f.Type)
	default:
		metrics.SubframeDropped(result)
		d.log.Debug("subframe dropped", "svid", f.Svid, "type", f.Type, "subframe", f.SubMessageID, "err", err)
	}
	return err
}

func (d *Dispatcher) handle(f *RawFrame) error {
	entry, ok := decoderFactories[f.Type]
	if !ok {
		return fmt.Errorf("%w: %s (0x%04X)", ErrUnsupportedMessageType, f.Type, int(f.Type))
	}
	// No state for ids the decoder cannot own
	if f.Svid < 1 || f.Svid > entry.maxSvid {
		return fmt.Errorf("%w: %s satellite id %d", ErrMalformedFrame, f.Type, f.Svid)
	}
	d.frames++
	d.evict()

	st, ok := d.sats[f.Svid]
	if !ok {
		st = &satState{decoders: map[MsgType]navDecoder{}}
		d.sats[f.Svid] = st
		metrics.SetSatellitesTracked(len(d.sats))
		d.log.Debug("new satellite", "svid", f.Svid)
	}
	st.lastSeen = d.frames
	dec, ok := st.decoders[f.Type]
	if !ok {
		dec = entry.factory(f.Svid, &d.opt, d.log)
		st.decoders[f.Type] = dec
	}
	return dec.handle(f, &d.out)
}

// Drop satellites not seen for MaxIdleFrames frames
func (d *Dispatcher) evict() {
	if d.opt.MaxIdleFrames <= 0 {
		return
	}
	n := len(d.sats)
	for svid, st := range d.sats {
		if d.frames-st.lastSeen > uint64(d.opt.MaxIdleFrames) {
			delete(d.sats, svid)
			metrics.SubframeDropped("idle")
			d.log.Debug("satellite evicted", "svid", svid, "idle", d.frames-st.lastSeen)
		}
	}
	if len(d.sats) != n {
		metrics.SetSatellitesTracked(len(d.sats))
	}
}

// Satellite ids with decoder state, sorted
func (d *Dispatcher) Satellites() []int {
	s := maps.Keys(d.sats)
	slices.Sort(s)
	return s
}

// Decoding state of a satellite for the given message type
func (d *Dispatcher) State(svid int, t MsgType) NavState {
	st, ok := d.sats[svid]
	if !ok {
		return StateEmpty
	}
	dec, ok := st.decoders[t]
	if !ok {
		return StateEmpty
	}
	return dec.state()
}

// Metric label of a handling result
func classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnsupportedMessageType):
		return "ignored"
	case errors.Is(err, ErrParity):
		return "parity"
	}
	return "malformed"
}

// Delivers decoded records to the listeners; almanacs and ionospheric/UTC
// parameters are passed on only when their content changes, since every
// satellite broadcasts the same ones.
type emitter struct {
	log     *slog.Logger
	eph     EphemerisListener
	alm     AlmanacListener
	ion     IonoUtcListener
	lastAlm map[SatType]Almanac
	lastIon *IonoUtc
	almToa  float64 // Almanac reference time of subframe 5 page 25
	almWna  int     // Modulo-256 almanac week (-1: not yet received)
}

func (e *emitter) ephemeris(eph *Ephemeris) {
	metrics.RecordEmitted("ephemeris")
	e.log.Debug("ephemeris", "sat", eph.Sat, "iode", eph.Iode, "iodc", eph.Iodc, "toe", eph.Toe)
	if e.eph != nil {
		e.eph.OnEphemeris(eph)
	}
}

// Reference time/week of the almanac, used to resolve the week of almanacs with the same toa
func (e *emitter) almanacRef(toa float64, wna int) {
	e.almToa, e.almWna = toa, wna
}

func (e *emitter) almanac(alm *Almanac, refWeek int) {
	if alm.Week < 0 && e.almWna >= 0 && e.almToa == alm.Toas {
		alm.Week = AdjWeek8(e.almWna, refWeek)
	}
	if prev, ok := e.lastAlm[alm.Sat]; ok && prev == *alm {
		return
	}
	e.lastAlm[alm.Sat] = *alm
	metrics.RecordEmitted("almanac")
	e.log.Debug("almanac", "sat", alm.Sat, "toa", alm.Toas, "week", alm.Week)
	if e.alm != nil {
		e.alm.OnAlmanac(alm)
	}
}

func (e *emitter) ionoUtc(p *IonoUtc) {
	if e.lastIon != nil && *e.lastIon == *p {
		return
	}
	c := *p
	e.lastIon = &c
	metrics.RecordEmitted("iono_utc")
	e.log.Debug("iono/utc", "dtls", p.DeltaTLS, "wnt", p.WNt)
	if e.ion != nil {
		e.ion.OnIonoUtc(p)
	}
}

// Count a subframe discarded inside a decoder
func (e *emitter) dropped(reason string) {
	metrics.SubframeDropped(reason)
}
