package gpt

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ardnew/softmmc/pkg"
)

// GUID is a 16-byte GUID in on-disk byte order. The first three fields are
// little-endian, the last two are big-endian.
type GUID [16]byte

// Well-known partition type GUIDs.
var (
	TypeUnused      = GUID{}
	TypeEFISystem   = MustParseGUID("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")
	TypeBasicData   = MustParseGUID("EBD0A0A2-B9E5-4433-87C0-68B6B72699C7")
	TypeLinuxFS     = MustParseGUID("0FC63DAF-8483-4772-8E79-3D69D8477DE4")
	TypeAndroidMeta = MustParseGUID("19A710A2-B3CA-11E4-B026-10604B889DCF")
)

// String returns the canonical textual form, e.g.
// C12A7328-F81F-11D2-BA4B-00A0C93EC93B.
func (g GUID) String() string {
	return fmt.Sprintf("%08X-%04X-%04X-%X-%X",
		binary.LittleEndian.Uint32(g[0:4]),
		binary.LittleEndian.Uint16(g[4:6]),
		binary.LittleEndian.Uint16(g[6:8]),
		g[8:10],
		g[10:16])
}

// IsZero reports whether the GUID is all zeros.
func (g GUID) IsZero() bool {
	return g == GUID{}
}

// ParseGUID parses the canonical textual form into on-disk byte order.
func ParseGUID(s string) (GUID, error) {
	var g GUID

	parts := strings.Split(s, "-")
	if len(parts) != 5 || len(parts[0]) != 8 || len(parts[1]) != 4 ||
		len(parts[2]) != 4 || len(parts[3]) != 4 || len(parts[4]) != 12 {
		return g, fmt.Errorf("%w: GUID %q", pkg.ErrInvalidParameter, s)
	}

	raw, err := hex.DecodeString(strings.Join(parts, ""))
	if err != nil {
		return g, fmt.Errorf("%w: GUID %q: %w", pkg.ErrInvalidParameter, s, err)
	}

	binary.LittleEndian.PutUint32(g[0:4], binary.BigEndian.Uint32(raw[0:4]))
	binary.LittleEndian.PutUint16(g[4:6], binary.BigEndian.Uint16(raw[4:6]))
	binary.LittleEndian.PutUint16(g[6:8], binary.BigEndian.Uint16(raw[6:8]))
	copy(g[8:], raw[8:])

	return g, nil
}

// MustParseGUID is like [ParseGUID] but panics on malformed input.
func MustParseGUID(s string) GUID {
	g, err := ParseGUID(s)
	if err != nil {
		panic(err)
	}
	return g
}
