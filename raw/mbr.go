package raw

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// MBR sector layout, per the classic PC partition table: 446 bytes of
// bootstrap code, four 16-byte partition entries, and the 0x55AA signature.
const (
	MBRSize               = 512
	MBRBootstrapSize      = 446
	MBRPartitionEntrySize = 16
	MBRPartitionCount     = 4
)

// MBRSignature is the two bytes that mark block 0 as carrying a valid MBR.
var MBRSignature = [2]byte{0x55, 0xAA}

// MBR partition type byte codes this core understands.
const (
	MBRTypeEmpty         uint8 = 0x00
	MBRTypeProtectiveGPT uint8 = 0xEE
)

// MBR status byte values.
const (
	MBRStatusNotBootable uint8 = 0x00
	MBRStatusBootable    uint8 = 0x80
)

// CHS is an unpacked cylinder/head/sector triple; EncodeCHS and DecodeCHS
// convert it to and from its 3 on-disk bytes.
type CHS struct {
	Head     uint8
	Sector   uint8 // 1..0x3F, top two bits shared with Cylinder
	Cylinder uint16
}

// CHSMax is the saturated triple (0xFF, 0x3F, 0x3FF), used unconditionally
// for a protective MBR's ending CHS.
var CHSMax = CHS{Head: 0xFF, Sector: 0x3F, Cylinder: 0x3FF}

// EncodeCHS packs a CHS triple into its 3 on-disk bytes.
func EncodeCHS(c CHS) [3]byte {
	return [3]byte{
		c.Head,
		(c.Sector & 0x3F) | uint8((c.Cylinder>>2)&0xC0),
		uint8(c.Cylinder & 0xFF),
	}
}

// DecodeCHS unpacks a CHS triple from its 3 on-disk bytes. This follows the
// encoding rule in reverse: head is byte 0 verbatim, sector is the low six
// bits of byte 1, and cylinder is byte 2 with the high two bits taken from
// the top of byte 1.
func DecodeCHS(b [3]byte) CHS {
	return CHS{
		Head:     b[0],
		Sector:   b[1] & 0x3F,
		Cylinder: uint16(b[2]) | (uint16(b[1]&0xC0) << 2),
	}
}

// MBRPartitionEntry is the 16-byte on-disk MBR partition record.
type MBRPartitionEntry struct {
	Status     uint8
	FirstCHS   [3]byte
	PType      uint8
	LastCHS    [3]byte
	FirstLBA   uint32
	NrSectors  uint32
}

// MBR is the 512-byte on-disk master boot record.
type MBR struct {
	Bootstrap         [MBRBootstrapSize]byte
	PartitionEntries  [MBRPartitionCount]MBRPartitionEntry
	Signature         [2]byte
}

// NewMBR returns an MBR with zeroed bootstrap code, four empty entries, and
// the 0x55AA signature already set.
func NewMBR() MBR {
	return MBR{Signature: MBRSignature}
}

// AsBytes serializes m to exactly MBRSize bytes.
func (m MBR) AsBytes() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, m); err != nil {
		return nil, fmt.Errorf("raw: encode MBR: %w", err)
	}
	if buf.Len() != MBRSize {
		return nil, fmt.Errorf("raw: encoded MBR is %d bytes, want %d", buf.Len(), MBRSize)
	}
	return buf.Bytes(), nil
}

// MBRFromBytes parses an MBR from exactly MBRSize bytes. It does not check
// the signature; callers that care whether the bytes present a valid MBR
// should compare Signature to MBRSignature themselves.
func MBRFromBytes(b []byte) (MBR, error) {
	if len(b) != MBRSize {
		return MBR{}, fmt.Errorf("raw: MBR bytes are %d long, want %d", len(b), MBRSize)
	}
	var m MBR
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &m); err != nil {
		return MBR{}, fmt.Errorf("raw: decode MBR: %w", err)
	}
	return m, nil
}
