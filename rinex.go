// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gnssnav

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RINEX 3.04 specification
// https://files.igs.org/pub/data/format/rinex304.pdf
//

const RinexVersion = "3.04"

// Header of a RINEX navigation file
type RinexNavHeader struct {
	Program string
	RunBy   string
	Date    time.Time // File creation time (UTC)
	IonoUtc *IonoUtc  // nil: no IONOSPHERIC CORR / TIME SYSTEM CORR / LEAP SECONDS lines
}

func headerLine(content, label string) string {
	return fmt.Sprintf("%-60.60s%s\n", content, label)
}

// D19.12 field
func rnxFloat(v float64) string {
	return fmt.Sprintf("%19.12E", v)
}

func WriteNavHeader(w io.Writer, h *RinexNavHeader) error {
	var sb strings.Builder
	sb.WriteString(headerLine(fmt.Sprintf("%9s%11s%-20s%-20s", RinexVersion, "", "N: GNSS NAV DATA", "G: GPS"), "RINEX VERSION / TYPE"))
	sb.WriteString(headerLine(fmt.Sprintf("%-20.20s%-20.20s%-20s", h.Program, h.RunBy, h.Date.UTC().Format("20060102 150405")+" UTC"), "PGM / RUN BY / DATE"))
	if p := h.IonoUtc; p != nil {
		sb.WriteString(headerLine(fmt.Sprintf("GPSA %12.4E%12.4E%12.4E%12.4E", p.Alpha[0], p.Alpha[1], p.Alpha[2], p.Alpha[3]), "IONOSPHERIC CORR"))
		sb.WriteString(headerLine(fmt.Sprintf("GPSB %12.4E%12.4E%12.4E%12.4E", p.Beta[0], p.Beta[1], p.Beta[2], p.Beta[3]), "IONOSPHERIC CORR"))
		sb.WriteString(headerLine(fmt.Sprintf("GPUT %17.10E%16.9E %6d %4d", p.A0, p.A1, p.Tot, p.WNt), "TIME SYSTEM CORR"))
		sb.WriteString(headerLine(fmt.Sprintf("%6d%6d%6d%6d", p.DeltaTLS, p.DeltaTLSF, p.WNLSF, p.DN), "LEAP SECONDS"))
	}
	sb.WriteString(headerLine("", "END OF HEADER"))
	_, err := io.WriteString(w, sb.String())
	return err
}

// URA [m] for a URA index (IS-GPS-200 20.3.3.3.1.3)
var uraValues = [...]float64{2.4, 3.4, 4.85, 6.85, 9.65, 13.65, 24.0, 48.0, 96.0, 192.0, 384.0, 768.0, 1536.0, 3072.0, 6144.0}

func uraValue(sva int) float64 {
	if sva >= 0 && sva < len(uraValues) {
		return uraValues[sva]
	}
	return 32767.0
}

// Write one GPS navigation record. The epoch is the clock reference time (Toc).
func WriteNavRecord(w io.Writer, e *Ephemeris) error {
	ns, err := e.Toc.Nanos()
	if err != nil {
		return fmt.Errorf("%s toc: %w", e.Sat, err)
	}
	epoch, err := FormatCalendar(ns, RinexCalendarPattern)
	if err != nil {
		return fmt.Errorf("%s toc: %w", e.Sat, err)
	}
	tot := e.Tot.Sec + float64(e.Tot.Week-e.Week)*SecPerWeek

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-3s %s%s%s%s\n", e.Sat, epoch, rnxFloat(e.Af0), rnxFloat(e.Af1), rnxFloat(e.Af2)))
	orbit := [][]float64{
		{float64(e.Iode), e.Crs, e.DeltaN, e.M0},
		{e.Cuc, e.Ecc, e.Cus, e.SqrtA},
		{e.Toe.Sec, e.Cic, e.Omega0, e.Cis},
		{e.I0, e.Crc, e.Omega, e.OmegaD},
		{e.Idot, float64(e.Code), float64(e.Week), float64(e.Flag)},
		{uraValue(e.Sva), float64(e.Svh), e.Tgd, float64(e.Iodc)},
		{tot, e.Fit},
	}
	for _, l := range orbit {
		sb.WriteString("    ")
		for _, v := range l {
			sb.WriteString(rnxFloat(v))
		}
		sb.WriteString("\n")
	}
	_, err = io.WriteString(w, sb.String())
	return err
}

// Write a navigation file: header followed by the records of every satellite in Toe order
func WriteNav(w io.Writer, nav Nav, h *RinexNavHeader) error {
	bw := bufio.NewWriter(w)
	if err := WriteNavHeader(bw, h); err != nil {
		return err
	}
	for _, sat := range nav.Sats() {
		if sat.Sys() != 'G' {
			continue
		}
		for _, e := range nav[sat] {
			if err := WriteNavRecord(bw, e); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// RINEX 3 observation epoch record line: "> yyyy MM dd HH mm ss.sssssss  f nnn"
// (seconds below the microsecond are truncated)
func ObsEpochLine(ns int64, flag, numSats int) (string, error) {
	cal, err := FormatCalendar(ns, "yyyy MM dd HH mm")
	if err != nil {
		return "", err
	}
	sec, err := FormatFractionalSeconds(ns)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("> %s%11s  %1d%3d", cal, sec+"0", flag, numSats), nil
}

// Extract HEADER LABEL string from header line
func getHeaderLabel(l string) string {
	if len(l) < 60 {
		return ""
	}
	return strings.TrimSpace(l[60:])
}

var navEpochRe = regexp.MustCompile(`^([GJERCS])([0-9 ][0-9]) (\d{4}) ([ \d]{2}) ([ \d]{2}) ([ \d]{2}) ([ \d]{2}) ([ \d]{2})`)

var navValueRe = regexp.MustCompile(`[- +\d]{2}\.\d{12}[DE][-+]\d{2}`)

// Read satellite name and ToC from navigation data epoch line
func getNavTime(l string) (gt GTime, sat SatType, err error) {
	ms := navEpochRe.FindStringSubmatch(l)
	if ms == nil {
		return gt, sat, fmt.Errorf("regexp match failed. l=%s", l)
	}
	var v [7]int
	for i := range v {
		if v[i], err = strconv.Atoi(strings.TrimSpace(ms[i+2])); err != nil {
			return gt, sat, err
		}
	}
	sat = NewSatType(SysType(ms[1][0]), v[0])
	gt = *NewGTime(time.Date(v[1], time.Month(v[2]), v[3], v[4], v[5], v[6], 0, time.UTC))
	return gt, sat, nil
}

// Read real values by absorbing variations in exponential notation within RINEX files
func parseFloat(str string) float64 {
	s := strings.TrimSpace(str)
	if strings.ContainsAny(s, "Dd") {
		s = strings.Replace(s, "D", "E", 1)
		s = strings.Replace(s, "d", "e", 1)
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// Return URA index for specified value
func getURAIndex(x float64) int {
	for i, v := range uraValues {
		if x > 0 && x <= v {
			return i
		}
	}
	return 15
}

// Read a RINEX 3 navigation file. GPS records are returned, other systems are skipped.
// Ionospheric/UTC parameters are returned when the header has them.
func ReadNav(r io.Reader) (Nav, *IonoUtc, error) {

	headerDone := false
	nav := Nav{}
	var iono *IonoUtc
	var eph *Ephemeris

	// Current line number being read, counted from satellite name and ToC line
	lineCount := 0

	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Text()

		if !headerDone {
			switch getHeaderLabel(line) {
			case "RINEX VERSION / TYPE":
				ver := strings.TrimSpace(line[:9])
				if !strings.HasPrefix(ver, "3.") {
					return nil, nil, fmt.Errorf("unsupported RINEX version (ver=%s)", ver)
				}
				if typ := line[20:21]; typ != "N" {
					return nil, nil, fmt.Errorf("not a navigation message file (typ=%s)", typ)
				}
			case "IONOSPHERIC CORR":
				if iono == nil {
					iono = &IonoUtc{}
				}
				var p *[4]float64
				switch line[:4] {
				case "GPSA":
					p = &iono.Alpha
				case "GPSB":
					p = &iono.Beta
				default:
					continue
				}
				for i := range p {
					p[i] = parseFloat(line[5+i*12 : 17+i*12])
				}
			case "TIME SYSTEM CORR":
				if line[:4] != "GPUT" {
					continue
				}
				if iono == nil {
					iono = &IonoUtc{}
				}
				iono.A0 = parseFloat(line[5:22])
				iono.A1 = parseFloat(line[22:38])
				iono.Tot = int(parseFloat(line[38:45]))
				iono.WNt = int(parseFloat(line[45:50]))
			case "LEAP SECONDS":
				if iono == nil {
					iono = &IonoUtc{}
				}
				f := strings.Fields(line[:24])
				v := make([]int, 4)
				for i := 0; i < len(f) && i < 4; i++ {
					v[i], _ = strconv.Atoi(f[i])
				}
				iono.DeltaTLS, iono.DeltaTLSF, iono.WNLSF, iono.DN = v[0], v[1], v[2], v[3]
			case "END OF HEADER":
				headerDone = true
			}
			continue
		}

		if !navValueRe.MatchString(line) {
			continue
		}
		if line[0] != ' ' {
			eph = nil
			if line[0] != 'G' || len(line) < 80 {
				continue
			}
			var err error
			eph = &Ephemeris{}
			eph.Toc, eph.Sat, err = getNavTime(line)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to read time of clock in navigation message: %w", err)
			}
			eph.Af0 = parseFloat(line[23:42])
			eph.Af1 = parseFloat(line[42:61])
			eph.Af2 = parseFloat(line[61:80])
			lineCount = 0
			continue
		}
		if eph == nil {
			continue
		}
		if len(line) < 80 {
			line = line + strings.Repeat(" ", 80-len(line))
		}
		v0 := parseFloat(line[4:23])
		v1 := parseFloat(line[23:42])
		v2 := parseFloat(line[42:61])
		v3 := parseFloat(line[61:80])
		lineCount++
		switch lineCount {
		case 1:
			eph.Iode = int(v0)
			eph.Crs = v1
			eph.DeltaN = v2
			eph.M0 = v3
		case 2:
			eph.Cuc = v0
			eph.Ecc = v1
			eph.Cus = v2
			eph.SqrtA = v3
		case 3:
			eph.Toe = GTime{Week: eph.Toc.Week, Sec: v0} // Week is read on the 5th line
			eph.Cic = v1
			eph.Omega0 = v2
			eph.Cis = v3
		case 4:
			eph.I0 = v0
			eph.Crc = v1
			eph.Omega = v2
			eph.OmegaD = v3
		case 5:
			eph.Idot = v0
			eph.Code = int(v1)
			eph.Week = int(v2)
			eph.Toe.Week = eph.Week
			eph.Flag = int(v3)
		case 6:
			eph.Sva = getURAIndex(v0)
			eph.Svh = int(v1)
			eph.Tgd = v2
			eph.Iodc = int(v3)
		case 7:
			eph.Tot = GTime{Week: eph.Week, Sec: v0}
			for eph.Tot.Sec < 0 {
				eph.Tot.Week--
				eph.Tot.Sec += SecPerWeek
			}
			for eph.Tot.Sec >= SecPerWeek {
				eph.Tot.Week++
				eph.Tot.Sec -= SecPerWeek
			}
			eph.Fit = v1
			nav.Add(eph)
			eph = nil
		}
	}

	if err := s.Err(); err != nil {
		return nil, nil, err
	}
	return nav, iono, nil
}
