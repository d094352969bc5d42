// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package ubx

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/mkhts/gnssnav"
)

// Packet reader over a byte stream (receiver log file or serial port)
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read one packet. Bytes before the sync characters are skipped.
// A checksum error consumes the packet and returns ErrChecksum, the next call resumes with the following packet.
func (r *Reader) ReadPacket() (Packet, error) {
	if err := r.sync(); err != nil {
		return Packet{}, err
	}
	hdr := make([]byte, headerLen)
	hdr[0], hdr[1] = Sync1, Sync2
	if _, err := io.ReadFull(r.r, hdr[2:]); err != nil {
		return Packet{}, unexpected(err)
	}
	h, _ := ParseHeader(hdr)
	if h.Length > MaxPayload {
		return Packet{}, fmt.Errorf("%w: class=0x%02X id=0x%02X length=%d", ErrLength, h.Class, h.ID, h.Length)
	}
	buf := make([]byte, headerLen+int(h.Length)+2)
	copy(buf, hdr)
	if _, err := io.ReadFull(r.r, buf[headerLen:]); err != nil {
		return Packet{}, unexpected(err)
	}
	if !VerifyChecksum(buf) {
		return Packet{}, fmt.Errorf("%w: class=0x%02X id=0x%02X", ErrChecksum, h.Class, h.ID)
	}
	return Packet{Class: h.Class, ID: h.ID, Payload: buf[headerLen : len(buf)-2]}, nil
}

// Read packets until the next RXM-SFRBX and convert it to a navigation frame.
// Other packets and packets with a bad checksum are skipped, io.EOF ends the stream.
func (r *Reader) NextFrame() (gnssnav.RawFrame, error) {
	for {
		p, err := r.ReadPacket()
		if errors.Is(err, ErrChecksum) || errors.Is(err, ErrLength) {
			continue
		}
		if err != nil {
			return gnssnav.RawFrame{}, err
		}
		if !p.Is(ClassRXM, IDRXMSFRBX) {
			continue
		}
		return ParseSFRBX(p.Payload)
	}
}

func (r *Reader) sync() error {
	var prev byte
	for {
		b, err := r.r.ReadByte()
		if err != nil {
			return err
		}
		if prev == Sync1 && b == Sync2 {
			return nil
		}
		prev = b
	}
}

// EOF inside a packet is a truncated packet
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
