// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

// Package ubx reads u-blox UBX packets and converts RXM-SFRBX messages to raw navigation frames.
package ubx

import (
	"encoding/binary"
	"errors"
)

// UBX sync characters
const (
	Sync1 = 0xB5
	Sync2 = 0x62
)

// Class/ID
const (
	ClassRXM   = 0x02
	IDRXMSFRBX = 0x13
	ClassCFG   = 0x06
	IDCFGMSG   = 0x01
)

// Sync(2) + class + id + length(2)
const headerLen = 6

// Largest payload accepted by the reader, longer lengths are treated as a lost sync
const MaxPayload = 4096

var (
	ErrChecksum = errors.New("ubx checksum mismatch")
	ErrLength   = errors.New("ubx payload too long")
	ErrSFRBX    = errors.New("malformed RXM-SFRBX")
)

type Header struct {
	Sync1  uint8
	Sync2  uint8
	Class  uint8
	ID     uint8
	Length uint16
}

// Packet without sync and checksum
type Packet struct {
	Class   uint8
	ID      uint8
	Payload []byte
}

func (p Packet) Is(class, id uint8) bool {
	return p.Class == class && p.ID == id
}

// 8-bit Fletcher checksum over class, id, length and payload
func Checksum(data []byte) (ckA, ckB uint8) {
	for _, b := range data {
		ckA += b
		ckB += ckA
	}
	return ckA, ckB
}

// Build a complete UBX packet
func EncodePacket(class, id uint8, payload []byte) []byte {
	buf := make([]byte, headerLen+len(payload)+2)
	buf[0] = Sync1
	buf[1] = Sync2
	buf[2] = class
	buf[3] = id
	binary.LittleEndian.PutUint16(buf[4:6], uint16(len(payload)))
	copy(buf[headerLen:], payload)
	ckA, ckB := Checksum(buf[2 : headerLen+len(payload)])
	buf[len(buf)-2] = ckA
	buf[len(buf)-1] = ckB
	return buf
}

func ParseHeader(buf []byte) (Header, bool) {
	if len(buf) < headerLen || buf[0] != Sync1 || buf[1] != Sync2 {
		return Header{}, false
	}
	return Header{
		Sync1:  buf[0],
		Sync2:  buf[1],
		Class:  buf[2],
		ID:     buf[3],
		Length: binary.LittleEndian.Uint16(buf[4:6]),
	}, true
}

// Check the trailing checksum of a complete packet
func VerifyChecksum(packet []byte) bool {
	h, ok := ParseHeader(packet)
	if !ok || len(packet) != headerLen+int(h.Length)+2 {
		return false
	}
	ckA, ckB := Checksum(packet[2 : len(packet)-2])
	return packet[len(packet)-2] == ckA && packet[len(packet)-1] == ckB
}

// CFG-MSG setting the output rate of a message on the current port
func BuildCFGMSG(class, id, rate uint8) []byte {
	return EncodePacket(ClassCFG, IDCFGMSG, []byte{class, id, rate})
}
