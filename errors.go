// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gnssnav

import "errors"

var (
	// Bit field outside the buffer or wider than 64 bits
	ErrBitRange = errors.New("bit range out of bounds")

	// Payload length or word structure inconsistent with a legacy navigation subframe
	ErrMalformedFrame = errors.New("malformed navigation frame")

	// Word parity does not match (IS-GPS-200 20.3.5.2)
	ErrParity = errors.New("navigation word parity error")

	// Frame of a constellation/signal that has no decoder. Not a failure, the frame is ignored.
	ErrUnsupportedMessageType = errors.New("unsupported navigation message type")

	// IODE/IODC differ across subframes 1, 2 and 3. The ephemeris is not ready yet.
	ErrInconsistentIssueOfData = errors.New("inconsistent issue of data")

	// Time before the GPS epoch
	ErrNegativeTime = errors.New("time before GPS epoch")

	// Intermediate time arithmetic out of the int64 range
	ErrOverflow = errors.New("arithmetic overflow")

	// Unsupported letter in a calendar pattern
	ErrPattern = errors.New("invalid time pattern")
)
