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
	"strconv"
	"strings"
)

// Android GnssLogger text log:
//
//	# Nav,Svid,Type,Status,MessageId,Sub-messageId,Data(Bytes)
//	Nav,5,257,1,2,3,-117,...
//
// Data bytes are written as signed decimal values. Lines other than "Nav" are skipped.
const navLogPrefix = "Nav,"

type NavLogReader struct {
	s    *bufio.Scanner
	line int
}

func NewNavLogReader(r io.Reader) *NavLogReader {
	return &NavLogReader{s: bufio.NewScanner(r)}
}

// Next navigation message frame. Returns io.EOF at the end of the log.
// A malformed Nav line returns ErrMalformedFrame; reading can continue with the next call.
func (p *NavLogReader) Next() (RawFrame, error) {
	for p.s.Scan() {
		p.line++
		l := strings.TrimSpace(p.s.Text())
		if !strings.HasPrefix(l, navLogPrefix) {
			continue
		}
		f, err := ParseNavLogLine(l)
		if err != nil {
			return RawFrame{}, fmt.Errorf("line %d: %w", p.line, err)
		}
		return f, nil
	}
	if err := p.s.Err(); err != nil {
		return RawFrame{}, err
	}
	return RawFrame{}, io.EOF
}

// Parse one "Nav,..." line
func ParseNavLogLine(l string) (RawFrame, error) {
	fs := strings.Split(strings.TrimSpace(l), ",")
	if len(fs) < 6 || fs[0] != "Nav" {
		return RawFrame{}, fmt.Errorf("%w: %d fields in nav log line", ErrMalformedFrame, len(fs))
	}
	var h [5]int
	for i := range h {
		v, err := strconv.Atoi(strings.TrimSpace(fs[i+1]))
		if err != nil {
			return RawFrame{}, fmt.Errorf("%w: field %d: %s", ErrMalformedFrame, i+1, err)
		}
		h[i] = v
	}
	data := fs[6:]
	if len(data) == 1 && strings.TrimSpace(data[0]) == "" {
		data = nil
	}
	payload := make([]byte, len(data))
	for i, d := range data {
		v, err := strconv.ParseInt(strings.TrimSpace(d), 10, 16)
		if err != nil || v < -128 || v > 255 {
			return RawFrame{}, fmt.Errorf("%w: data byte %d: %q", ErrMalformedFrame, i, d)
		}
		payload[i] = byte(v)
	}
	return RawFrame{
		Svid:         h[0],
		Type:         MsgType(h[1]),
		MessageID:    h[3],
		SubMessageID: h[4],
		Payload:      payload,
	}, nil
}

// Format a frame as a GnssLogger "Nav" line (status is written as 0: unknown)
func NavLogLine(f RawFrame) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Nav,%d,%d,%d,%d,%d", f.Svid, int(f.Type), 0, f.MessageID, f.SubMessageID)
	for _, b := range f.Payload {
		sb.WriteString(",")
		sb.WriteString(strconv.Itoa(int(int8(b))))
	}
	return sb.String()
}
