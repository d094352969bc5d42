// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package ubx

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// Serial port delivering UBX packets
type Port struct {
	*Reader
	port *serial.Port
}

// Open the receiver port. A zero timeout blocks until data arrive.
func Open(device string, baud int, timeout time.Duration) (*Port, error) {
	c := &serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: timeout,
	}
	p, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", device, err)
	}
	return &Port{Reader: NewReader(p), port: p}, nil
}

// Send a packet built with EncodePacket (e.g. a CFG-MSG enabling RXM-SFRBX)
func (p *Port) WritePacket(packet []byte) error {
	_, err := p.port.Write(packet)
	return err
}

func (p *Port) Close() error {
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}
