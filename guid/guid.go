// Package guid implements the 128-bit identifiers used throughout the
// partition-table formats: GPT disk GUIDs, partition-type GUIDs, and unique
// partition GUIDs.
//
// A GUID has two on-the-wire renderings. The canonical, big-endian rendering
// is the familiar XXXXXXXX-XXXX-XXXX-XXXX-XXXXXXXXXXXX text form. The
// mixed-endian ("ME") rendering is what GPT actually stores on disk: the
// first three groups (4, 2, 2 bytes) are little-endian, the last two groups
// (2, 6 bytes) are big-endian. go-winio's guid.GUID already lays its fields
// out that way — encoding it field-by-field with binary.LittleEndian yields
// the ME bytes directly — which is why it is used here as the underlying
// type rather than reinvented.
package guid

import (
	"encoding/binary"
	"fmt"

	wguid "github.com/Microsoft/go-winio/pkg/guid"
)

// GUID is a 128-bit identifier. It is an alias of go-winio's guid.GUID so
// that values can be embedded directly into the raw on-disk structures
// (raw.GPTHeader.DiskGUID, raw.GPTPartitionEntry.PartitionTypeGUID/
// UniquePartitionGUID) and read or written with encoding/binary exactly as
// the mixed-endian layout requires.
type GUID = wguid.GUID

// Nil is the all-zero GUID. On a GPT, a partition entry whose PartitionTypeGUID
// is Nil is unused.
func Nil() GUID {
	return GUID{}
}

// IsNil reports whether g is the all-zero GUID.
func IsNil(g GUID) bool {
	return g == GUID{}
}

// NewV4 generates a random version-4 GUID using a cryptographically seeded
// generator.
func NewV4() (GUID, error) {
	g, err := wguid.NewV4()
	if err != nil {
		return GUID{}, fmt.Errorf("guid: generate v4: %w", err)
	}
	return g, nil
}

// Parse decodes the canonical text form
// (XXXXXXXX-XXXX-XXXX-XXXX-XXXXXXXXXXXX) into a GUID.
func Parse(s string) (GUID, error) {
	g, err := wguid.FromString(s)
	if err != nil {
		return GUID{}, fmt.Errorf("guid: parse %q: %w", s, err)
	}
	return g, nil
}

// String renders g in canonical form.
func String(g GUID) string {
	return g.String()
}

// ToBytesCanonical renders g as 16 big-endian bytes: Data1, Data2, and Data3
// each in network byte order, followed by Data4 unchanged.
func ToBytesCanonical(g GUID) [16]byte {
	var out [16]byte
	binary.BigEndian.PutUint32(out[0:4], g.Data1)
	binary.BigEndian.PutUint16(out[4:6], g.Data2)
	binary.BigEndian.PutUint16(out[6:8], g.Data3)
	copy(out[8:16], g.Data4[:])
	return out
}

// FromBytesCanonical is the inverse of ToBytesCanonical.
func FromBytesCanonical(b [16]byte) GUID {
	var g GUID
	g.Data1 = binary.BigEndian.Uint32(b[0:4])
	g.Data2 = binary.BigEndian.Uint16(b[4:6])
	g.Data3 = binary.BigEndian.Uint16(b[6:8])
	copy(g.Data4[:], b[8:16])
	return g
}

// ToBytesME renders g as 16 bytes in GPT's on-disk mixed-endian form: Data1,
// Data2, and Data3 little-endian, Data4 unchanged.
func ToBytesME(g GUID) [16]byte {
	var out [16]byte
	binary.LittleEndian.PutUint32(out[0:4], g.Data1)
	binary.LittleEndian.PutUint16(out[4:6], g.Data2)
	binary.LittleEndian.PutUint16(out[6:8], g.Data3)
	copy(out[8:16], g.Data4[:])
	return out
}

// FromBytesME is the inverse of ToBytesME.
func FromBytesME(b [16]byte) GUID {
	var g GUID
	g.Data1 = binary.LittleEndian.Uint32(b[0:4])
	g.Data2 = binary.LittleEndian.Uint16(b[4:6])
	g.Data3 = binary.LittleEndian.Uint16(b[6:8])
	copy(g.Data4[:], b[8:16])
	return g
}

// Equal reports whether a and b are the same identifier.
func Equal(a, b GUID) bool {
	return a == b
}
