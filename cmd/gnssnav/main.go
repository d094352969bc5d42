// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	m "github.com/mkhts/gnssnav"
	"github.com/mkhts/gnssnav/internal/config"
	"github.com/mkhts/gnssnav/internal/metrics"
	"github.com/mkhts/gnssnav/internal/ubx"
)

func main() {

	// Parse command line arguments
	args, err := parseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "err=%s\n", err.Error())
		flag.Usage()
		os.Exit(1)
	}

	// Run the main application
	if err := runApplication(args); err != nil {
		fmt.Fprintf(os.Stderr, "err=%s\n", err.Error())
		os.Exit(1)
	}
}

// Main application processing
func runApplication(args cmdOpt) error {
	if args.ns >= 0 {
		return printTimestamp(os.Stdout, args.ns, args.pattern)
	}
	log := newLogger(args.cfg.Log, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := args.cfg.Metrics.Addr; addr != "" {
		srv := startMetrics(addr, log)
		defer srv.Close()
	}

	// Open the frame source
	src, err := openSource(args.cfg.Input)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer src.Close()

	col := newCollector(args.exSats, log)
	d := m.NewDispatcher(col, dispatcherOpt(args.cfg, log))

	// Decode frames until the end of the input (or a signal for a device)
	if err := processFrames(ctx, src, d, log); err != nil {
		return err
	}
	log.Info("input done", "satellites", len(col.nav), "almanacs", len(col.alm), "iono_utc", col.ion != nil)

	if args.summary {
		if err := printSummary(os.Stdout, col, args); err != nil {
			return err
		}
	}

	// Write the RINEX navigation file
	if fn := args.cfg.Output.RinexNav; fn != "" {
		if err := writeRinex(fn, col, args.cfg.Output.RunBy); err != nil {
			return fmt.Errorf("failed to write %s: %w", fn, err)
		}
		log.Info("rinex written", "file", fn)
	}
	return nil
}

func dispatcherOpt(cfg *config.Config, log *slog.Logger) *m.DispatcherOpt {
	opt := m.NewDispatcherOpt()
	opt.CheckParity = cfg.ParityCheck()
	opt.MaxIdleFrames = cfg.Decoder.MaxIdleFrames
	opt.RefWeek = cfg.Decoder.RefWeek
	opt.Logger = log
	return opt
}

func newLogger(c config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	hopt := &slog.HandlerOptions{Level: level, AddSource: c.Source}
	if c.JSON {
		return slog.New(slog.NewJSONHandler(w, hopt))
	}
	return slog.New(slog.NewTextHandler(w, hopt))
}

// Map the -x debug level onto the log config
func applyDebug(c *config.LogConfig, dbg int) {
	if dbg >= 1 {
		c.Level = "debug"
	}
	if dbg >= 2 {
		c.Source = true
	}
}

func startMetrics(addr string, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", "addr", addr, "err", err)
		}
	}()
	log.Info("metrics listening", "addr", addr)
	return srv
}

// ------------------------------------
// Frame sources
// ------------------------------------

type frameSource struct {
	next  func() (m.RawFrame, error)
	close func() error
	live  bool // serial device: EOF is a read timeout, not the end
}

func (s *frameSource) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func openSource(c config.InputConfig) (*frameSource, error) {

	// Receiver connected to a serial port
	if c.Device != "" {
		if c.Format != config.FormatUBX {
			return nil, fmt.Errorf("serial input requires format %q", config.FormatUBX)
		}
		p, err := ubx.Open(c.Device, c.Baud, time.Second)
		if err != nil {
			return nil, err
		}
		if err := p.WritePacket(ubx.BuildCFGMSG(ubx.ClassRXM, ubx.IDRXMSFRBX, 1)); err != nil {
			p.Close()
			return nil, fmt.Errorf("enable RXM-SFRBX: %w", err)
		}
		return &frameSource{next: p.NextFrame, close: p.Close, live: true}, nil
	}

	// Log file, "-" or nothing for stdin
	var r io.Reader = os.Stdin
	var closer func() error
	if c.File != "" && c.File != "-" {
		f, err := os.Open(c.File)
		if err != nil {
			return nil, err
		}
		r, closer = f, f.Close
	}
	switch c.Format {
	case config.FormatUBX:
		return &frameSource{next: ubx.NewReader(r).NextFrame, close: closer}, nil
	default:
		return &frameSource{next: m.NewNavLogReader(r).Next, close: closer}, nil
	}
}

// Feed every frame of the source to the dispatcher
func processFrames(ctx context.Context, src *frameSource, d *m.Dispatcher, log *slog.Logger) error {
	for ctx.Err() == nil {
		f, err := src.next()
		switch {
		case err == nil:
			d.Handle(f)
		case src.live && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, m.ErrMalformedFrame), errors.Is(err, ubx.ErrSFRBX):
			log.Warn("frame skipped", "err", err)
		default:
			return fmt.Errorf("failed to read input: %w", err)
		}
	}
	return nil
}

// ------------------------------------
// Decoded records
// ------------------------------------

type collector struct {
	log *slog.Logger
	ex  m.SatVar
	nav m.Nav
	alm map[m.SatType]*m.Almanac
	ion *m.IonoUtc
}

func newCollector(ex m.SatVar, log *slog.Logger) *collector {
	return &collector{
		log: log,
		ex:  ex,
		nav: m.Nav{},
		alm: map[m.SatType]*m.Almanac{},
	}
}

func (c *collector) OnEphemeris(e *m.Ephemeris) {
	if c.ex.Contains(e.Sat) {
		c.log.Debug("ephemeris excluded", "sat", e.Sat)
		return
	}
	c.nav.Add(e)
	c.log.Info("ephemeris", "sat", e.Sat, "iode", e.Iode, "iodc", e.Iodc, "toe", e.Toe, "svh", e.Svh)
}

func (c *collector) OnAlmanac(a *m.Almanac) {
	if c.ex.Contains(a.Sat) {
		return
	}
	c.alm[a.Sat] = a
	c.log.Debug("almanac", "sat", a.Sat, "week", a.Week, "toa", a.Toas, "svh", a.Svh)
}

func (c *collector) OnIonoUtc(p *m.IonoUtc) {
	c.ion = p
	c.log.Info("iono/utc", "dtls", p.DeltaTLS, "wnlsf", p.WNLSF, "dn", p.DN, "dtlsf", p.DeltaTLSF)
}

// Latest ephemeris of each satellite with its satellite position at the selected epoch
func printSummary(w io.Writer, c *collector, args cmdOpt) error {
	fmt.Fprintf(w, "%% program   : %s\n", filepath.Base(os.Args[0]))
	if args.rcvPos != nil {
		llh := args.rcvPos.ToLLH()
		fmt.Fprintf(w, "%% ref pos   : %.8f %.8f %.3f\n", m.ToDeg(llh.Lat), m.ToDeg(llh.Lon), llh.Hei)
	}
	fmt.Fprintf(w, "%%  sat  epoch                  iode iodc svh              x(m)              y(m)              z(m)        dts(s)")
	if args.rcvPos != nil {
		fmt.Fprintf(w, "  el(deg)  az(deg)  iono(m)  trop(m)")
	}
	fmt.Fprintln(w)

	for _, sat := range c.nav.Sats() {
		es := c.nav[sat]
		e := es[len(es)-1]
		t := e.Toe
		if !args.at.IsZero() {
			t = args.at.GTime()
			var err error
			if e, err = c.nav.GetEphe(sat, t); err != nil {
				continue
			}
		}
		ns, err := t.Nanos()
		if err != nil {
			return err
		}
		ts, err := m.FormatCalendar(ns, args.pattern)
		if err != nil {
			return err
		}
		pos, dts := m.SatPos(e, t)
		fmt.Fprintf(w, "   %s  %-22s %4d %4d %3d %17.3f %17.3f %17.3f %13.6E", sat, ts, e.Iode, e.Iodc, e.Svh, pos.X, pos.Y, pos.Z, dts)
		if args.rcvPos != nil {
			el := args.rcvPos.Elevation(pos)
			az := args.rcvPos.Azimuth(pos)
			ion := m.IonoDelay(t, c.ion, args.rcvPos.ToLLH(), az, el)
			trp := m.TropDelay(t, *args.rcvPos, el)
			fmt.Fprintf(w, " %8.2f %8.2f %8.3f %8.3f", m.ToDeg(el), m.ToDeg(az), ion, trp)
		}
		fmt.Fprintln(w)
	}
	if p := c.ion; p != nil {
		fmt.Fprintf(w, "%% leap sec  : %d (%d from week %d day %d)\n", p.DeltaTLS, p.DeltaTLSF, p.WNLSF, p.DN)
		if !args.at.IsZero() {
			u := p.GpsToUtc(args.at.GTime())
			fmt.Fprintf(w, "%% utc       : %s\n", u.ToTime().Format("2006/01/02 15:04:05.000"))
		}
	}
	return nil
}

// Calendar and seconds fields of a GPS nanosecond timestamp
func printTimestamp(w io.Writer, ns int64, pattern string) error {
	cal, err := m.FormatCalendar(ns, pattern)
	if err != nil {
		return err
	}
	sec, err := m.FormatFractionalSeconds(ns)
	if err != nil {
		return err
	}
	epoch, err := m.ObsEpochLine(ns, 0, 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n%s\n%s\n", cal, sec, epoch)
	return nil
}

func writeRinex(fn string, c *collector, runBy string) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	h := &m.RinexNavHeader{
		Program: "gnssnav",
		RunBy:   runBy,
		Date:    time.Now().UTC(),
		IonoUtc: c.ion,
	}
	if err := m.WriteNav(f, c.nav, h); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ------------------------------------
// Command line
// ------------------------------------

// Structure to hold command line argument information
type cmdOpt struct {
	cfg     *config.Config
	exSats  m.SatVar
	rcvPos  *m.PosXYZ
	at      m.TimeStr
	pattern string
	summary bool
	ns      int64
}

// Parse command line arguments. Options override the configuration file.
func parseArgs() (a cmdOpt, err error) {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `
[Usage]
	%s [Options] [nav.log|-]          (navigation frame log)
	%s [Options] -f ubx receiver.ubx  (u-blox RXM-SFRBX)
	%s [Options] -dev /dev/ttyACM0    (u-blox receiver)

[Options]
`, filepath.Base(os.Args[0]), filepath.Base(os.Args[0]), filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	var (
		cfgFn, format, dev, out, level, metricsAddr string
		baud, refWeek, dbg                          int
		noParity, jsonLog                           bool
		rcvLLH                                      m.PosLLH
	)
	flag.StringVar(&cfgFn, "c", "", "YAML configuration file.")
	flag.StringVar(&format, "f", "", "Input format. navlog or ubx.")
	flag.StringVar(&dev, "dev", "", "Serial device of a u-blox receiver. Read instead of a file.")
	flag.IntVar(&baud, "baud", 0, "Baud rate of the serial device.")
	flag.StringVar(&out, "o", "", "Output RINEX navigation file path.")
	flag.Var(&a.exSats, "ex", "List of satellites to exclude. Comma-separated satellite names without spaces like G02,G14.")
	flag.Var(&rcvLLH, "l", "Receiver latitude/longitude/ellipsoidal height for elevation and azimuth. Enclose in quotes like -l \"35.73101206 139.7396917 80.33\"")
	flag.TextVar(&a.at, "t", m.NewTimeStr(time.Time{}), "Epoch (GPST) of the satellite positions in the summary. Enclose in quotes like -t \"2025/06/20 21:00:00\". Default: Toe of the latest ephemeris.")
	flag.StringVar(&a.pattern, "tf", "yyyy/MM/dd HH:mm:ss", "Time pattern of the summary epochs.")
	flag.Int64Var(&a.ns, "ns", -1, "Format a GPS time in nanoseconds since 1980/1/6 with -tf and as RINEX fields, then exit.")
	flag.BoolVar(&a.summary, "s", true, "Print the ephemeris summary to stdout.")
	flag.IntVar(&refWeek, "rw", 0, "Reference GPS week for the 10-bit week number. 0: from the system clock.")
	flag.BoolVar(&noParity, "np", false, "Do not check word parity (words must be delivered non-inverted, e.g. u-blox SFRBX).")
	flag.StringVar(&level, "log", "", "Log level. debug, info, warn or error.")
	flag.BoolVar(&jsonLog, "json", false, "Log in JSON.")
	flag.IntVar(&dbg, "x", 0, "Debug information display. 0(OFF), 1(debug log), 2(debug log with source location)")
	flag.StringVar(&metricsAddr, "metrics", "", "Address of the Prometheus metrics endpoint, like :9100.")
	flag.Parse()

	a.cfg = config.Default()
	if cfgFn != "" {
		if a.cfg, err = config.Load(cfgFn); err != nil {
			return a, err
		}
	}
	c := a.cfg
	switch flag.NArg() {
	case 0:
	case 1:
		c.Input.File = flag.Arg(0)
	default:
		return a, fmt.Errorf("too many arguments")
	}
	if format != "" {
		c.Input.Format = strings.ToLower(format)
	}
	if dev != "" {
		c.Input.Device = dev
		c.Input.Format = config.FormatUBX
	}
	if baud > 0 {
		c.Input.Baud = baud
	}
	if out != "" {
		c.Output.RinexNav = out
	}
	if refWeek > 0 {
		c.Decoder.RefWeek = refWeek
	}
	if noParity {
		f := false
		c.Decoder.ParityCheck = &f
	}
	if level != "" {
		c.Log.Level = level
	}
	applyDebug(&c.Log, dbg)
	if jsonLog {
		c.Log.JSON = true
	}
	if metricsAddr != "" {
		c.Metrics.Addr = metricsAddr
	}
	if err := c.Validate(); err != nil {
		return a, err
	}
	if len(c.Output.Exclude) > 0 {
		ex := append([]string{a.exSats.String()}, c.Output.Exclude...)
		if err := a.exSats.Set(strings.Join(ex, ",")); err != nil {
			return a, err
		}
	}
	if rcvLLH.Lat != 0 || rcvLLH.Lon != 0 {
		xyz := rcvLLH.ToXYZ()
		a.rcvPos = &xyz
	}
	return
}
