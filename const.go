// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gnssnav

const (
	PI     = 3.1415926535897932  // Pi
	SC2RAD = 3.1415926535898     // Semi-circle to radian (IS-GPS-200)
	C      = 2.99792458e8        // Speed of light [m/s]
	Re     = 6378137.0           // Earth's radius [m]
	Fe     = 1.0 / 298.257223563 // Earth's flattening
	MuGps  = 3.986005e14         // Earth gravitational constant for GPS [m^3/s^2]
	OmgeE  = 7.2921151467e-5     // Earth rotation angular velocity [rad/s]
	L1     = 1575420000.0        // L1 frequency of GPS [Hz]
)

// Time constants
const (
	SecPerDay  = 86400
	SecPerWeek = 604800
	NsPerSec   = int64(1000000000)
	NsPerDay   = SecPerDay * NsPerSec
	NsPerWeek  = SecPerWeek * NsPerSec
	MinRefWeek = 1560 // 2009/12/1, lower bound when resolving the 10-bit week number
	LS         = 18   // GPS-UTC leap seconds since 2017/1/1
)

// Navigation message types as delivered by the chipset (constellation in the high byte, signal in the low byte)
type MsgType int

const (
	MsgTypeUnknown   MsgType = 0x0000
	MsgTypeGpsL1CA   MsgType = 0x0101
	MsgTypeGpsL2CNAV MsgType = 0x0102
	MsgTypeGpsL5CNAV MsgType = 0x0103
	MsgTypeGpsCNAV2  MsgType = 0x0104
	MsgTypeSbs       MsgType = 0x0201
	MsgTypeGloL1CA   MsgType = 0x0301
	MsgTypeQzsL1CA   MsgType = 0x0401
	MsgTypeBdsD1     MsgType = 0x0501
	MsgTypeBdsD2     MsgType = 0x0502
	MsgTypeGalI      MsgType = 0x0601
	MsgTypeGalF      MsgType = 0x0602
)

func (t MsgType) String() string {
	switch t {
	case MsgTypeGpsL1CA:
		return "GPS_L1CA"
	case MsgTypeGpsL2CNAV:
		return "GPS_L2CNAV"
	case MsgTypeGpsL5CNAV:
		return "GPS_L5CNAV"
	case MsgTypeGpsCNAV2:
		return "GPS_CNAV2"
	case MsgTypeSbs:
		return "SBS"
	case MsgTypeGloL1CA:
		return "GLO_L1CA"
	case MsgTypeQzsL1CA:
		return "QZS_L1CA"
	case MsgTypeBdsD1:
		return "BDS_D1"
	case MsgTypeBdsD2:
		return "BDS_D2"
	case MsgTypeGalI:
		return "GAL_I"
	case MsgTypeGalF:
		return "GAL_F"
	default:
		return "UNKNOWN"
	}
}

// Legacy civil navigation message geometry
const (
	WordsPerSubframe = 10
	BitsPerWord      = 30
	DataBitsPerWord  = 24
	SubframeBytes    = WordsPerSubframe * 4                   // Payload size: each 30-bit word right-aligned in 4 bytes
	StrippedBytes    = WordsPerSubframe * DataBitsPerWord / 8 // 240 data bits without parity
	PagesPerSubframe = 25
	Preamble         = 0x8B
	MaxGpsPrn        = 32
)
