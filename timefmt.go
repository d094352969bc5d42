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
	"strconv"
	"strings"
	"time"
)

// Layout of the RINEX epoch fields "yyyy MM dd HH mm ss"
const RinexCalendarPattern = "yyyy MM dd HH mm ss"

// Convert nanoseconds since the GPS epoch to a calendar instant.
// No leap seconds are applied: the result is GPS time expressed with UTC calendar fields.
func GpsNanosToTime(ns int64) (time.Time, error) {
	if ns < 0 {
		return time.Time{}, fmt.Errorf("%w: %d ns", ErrNegativeTime, ns)
	}
	epoch := GpsEpoch.Unix()
	sec := ns / NsPerSec
	if sec > math.MaxInt64-epoch {
		return time.Time{}, fmt.Errorf("%w: %d ns", ErrOverflow, ns)
	}
	return time.Unix(epoch+sec, ns%NsPerSec).UTC(), nil
}

// Render nanoseconds since the GPS epoch with a calendar pattern
//
// Pattern letters (repeat count sets the zero-padded width):
//
//	y  year (yy: two digits)     M  month (MMM: Jan, MMMM: January)
//	d  day of month              D  day of year
//	H  hour (0-23)               m  minute
//	s  second                    S  fraction of second, one digit per letter
//
// Text between single quotes is copied as is ('' is a quote). Other letters are rejected.
func FormatCalendar(ns int64, pattern string) (string, error) {
	t, err := GpsNanosToTime(ns)
	if err != nil {
		return "", err
	}
	return formatPattern(t, pattern)
}

// Render the seconds field of an epoch: seconds within the minute with exactly
// six decimals ("19.658000"). Sub-microsecond digits are truncated so that the
// integer part always agrees with FormatCalendar's "ss".
func FormatFractionalSeconds(ns int64) (string, error) {
	if ns < 0 {
		return "", fmt.Errorf("%w: %d ns", ErrNegativeTime, ns)
	}
	r := ns % NsPerDay % (60 * NsPerSec)
	sec := r / NsPerSec
	usec := r % NsPerSec / 1000
	return fmt.Sprintf("%d.%06d", sec, usec), nil
}

func formatPattern(t time.Time, pattern string) (string, error) {
	var sb strings.Builder
	rs := []rune(pattern)
	for i := 0; i < len(rs); {
		c := rs[i]

		// Quoted literal
		if c == '\'' {
			if i+1 < len(rs) && rs[i+1] == '\'' {
				sb.WriteRune('\'')
				i += 2
				continue
			}
			j := i + 1
			for ; j < len(rs); j++ {
				if rs[j] == '\'' {
					if j+1 < len(rs) && rs[j+1] == '\'' {
						sb.WriteRune('\'')
						j++
						continue
					}
					break
				}
				sb.WriteRune(rs[j])
			}
			if j >= len(rs) {
				return "", fmt.Errorf("%w: unterminated quote in %q", ErrPattern, pattern)
			}
			i = j + 1
			continue
		}

		if !isASCIILetter(c) {
			sb.WriteRune(c)
			i++
			continue
		}

		// Run of the same letter
		n := 1
		for i+n < len(rs) && rs[i+n] == c {
			n++
		}
		switch c {
		case 'y':
			if n == 2 {
				sb.WriteString(pad(t.Year()%100, 2))
			} else {
				sb.WriteString(pad(t.Year(), n))
			}
		case 'M':
			switch {
			case n == 3:
				sb.WriteString(t.Month().String()[:3])
			case n >= 4:
				sb.WriteString(t.Month().String())
			default:
				sb.WriteString(pad(int(t.Month()), n))
			}
		case 'd':
			sb.WriteString(pad(t.Day(), n))
		case 'D':
			sb.WriteString(pad(t.YearDay(), n))
		case 'H':
			sb.WriteString(pad(t.Hour(), n))
		case 'm':
			sb.WriteString(pad(t.Minute(), n))
		case 's':
			sb.WriteString(pad(t.Second(), n))
		case 'S':
			frac := pad(t.Nanosecond(), 9)
			if n <= 9 {
				sb.WriteString(frac[:n])
			} else {
				sb.WriteString(frac + strings.Repeat("0", n-9))
			}
		default:
			return "", fmt.Errorf("%w: letter %q in %q", ErrPattern, c, pattern)
		}
		i += n
	}
	return sb.String(), nil
}

func isASCIILetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func pad(v, width int) string {
	s := strconv.Itoa(v)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
