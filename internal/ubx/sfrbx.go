// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package ubx

import (
	"encoding/binary"
	"fmt"

	"github.com/mkhts/gnssnav"
)

// gnssId of UBX-RXM-SFRBX
const (
	GnssGPS     = 0
	GnssSBAS    = 1
	GnssGalileo = 2
	GnssBeiDou  = 3
	GnssQZSS    = 5
	GnssGLONASS = 6
)

// Fixed part before the data words
const sfrbxHeaderLen = 8

// Decoded RXM-SFRBX header
type SFRBX struct {
	GnssID   uint8
	SvID     uint8
	SigID    uint8
	FreqID   uint8
	NumWords uint8
	Chn      uint8
	Version  uint8
	Words    []uint32
}

func DecodeSFRBX(payload []byte) (SFRBX, error) {
	if len(payload) < sfrbxHeaderLen {
		return SFRBX{}, fmt.Errorf("%w: %d bytes", ErrSFRBX, len(payload))
	}
	s := SFRBX{
		GnssID:   payload[0],
		SvID:     payload[1],
		SigID:    payload[2],
		FreqID:   payload[3],
		NumWords: payload[4],
		Chn:      payload[5],
		Version:  payload[6],
	}
	if len(payload) != sfrbxHeaderLen+4*int(s.NumWords) {
		return SFRBX{}, fmt.Errorf("%w: %d words in %d bytes", ErrSFRBX, s.NumWords, len(payload))
	}
	s.Words = make([]uint32, s.NumWords)
	for i := range s.Words {
		s.Words[i] = binary.LittleEndian.Uint32(payload[sfrbxHeaderLen+4*i:])
	}
	return s, nil
}

// Navigation message type from gnssId/sigId
func (s SFRBX) MsgType() gnssnav.MsgType {
	switch s.GnssID {
	case GnssGPS:
		switch s.SigID {
		case 3, 4:
			return gnssnav.MsgTypeGpsL2CNAV
		case 6, 7:
			return gnssnav.MsgTypeGpsL5CNAV
		default:
			return gnssnav.MsgTypeGpsL1CA
		}
	case GnssSBAS:
		return gnssnav.MsgTypeSbs
	case GnssGalileo:
		if s.SigID == 3 || s.SigID == 4 {
			return gnssnav.MsgTypeGalF
		}
		return gnssnav.MsgTypeGalI
	case GnssBeiDou:
		// GEO satellites (C01-C05) broadcast D2
		if s.SvID >= 1 && s.SvID <= 5 {
			return gnssnav.MsgTypeBdsD2
		}
		return gnssnav.MsgTypeBdsD1
	case GnssQZSS:
		return gnssnav.MsgTypeQzsL1CA
	case GnssGLONASS:
		return gnssnav.MsgTypeGloL1CA
	default:
		return gnssnav.MsgTypeUnknown
	}
}

// Convert an RXM-SFRBX payload to a raw navigation frame.
// LNAV words are stored right-aligned with the inversion already removed by the
// receiver, so the frame must be decoded without the parity check.
func ParseSFRBX(payload []byte) (gnssnav.RawFrame, error) {
	s, err := DecodeSFRBX(payload)
	if err != nil {
		return gnssnav.RawFrame{}, err
	}
	f := gnssnav.RawFrame{
		Svid: int(s.SvID),
		Type: s.MsgType(),
	}
	lnav := f.Type == gnssnav.MsgTypeGpsL1CA || f.Type == gnssnav.MsgTypeQzsL1CA
	f.Payload = make([]byte, 4*len(s.Words))
	for i, w := range s.Words {
		if lnav {
			w &= 0x3FFFFFFF
		}
		binary.BigEndian.PutUint32(f.Payload[4*i:], w)
	}
	if lnav {
		if len(s.Words) != 10 {
			return gnssnav.RawFrame{}, fmt.Errorf("%w: %d words in LNAV subframe", ErrSFRBX, len(s.Words))
		}
		// Subframe id is bits 20-22 of the HOW
		f.SubMessageID = int(s.Words[1] >> 8 & 7)
		f.MessageID = f.SubMessageID
	}
	return f, nil
}

// Build an RXM-SFRBX payload, the reverse of DecodeSFRBX
func EncodeSFRBX(s SFRBX) []byte {
	buf := make([]byte, sfrbxHeaderLen+4*len(s.Words))
	buf[0] = s.GnssID
	buf[1] = s.SvID
	buf[2] = s.SigID
	buf[3] = s.FreqID
	buf[4] = uint8(len(s.Words))
	buf[5] = s.Chn
	buf[6] = s.Version
	for i, w := range s.Words {
		binary.LittleEndian.PutUint32(buf[sfrbxHeaderLen+4*i:], w)
	}
	return buf
}
