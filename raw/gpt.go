package raw

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"diskpart/guid"
)

// GPT header layout constants, per the UEFI specification.
const (
	GPTHeaderSize         uint32 = 92
	GPTHeaderRevision     uint32 = 0x00010000
	GPTPartitionEntrySize uint32 = 128
	GPTBlockSize                 = 512
)

// GPTHeaderSignature is the ASCII string "EFI PART" read as a little-endian
// uint64.
const GPTHeaderSignature uint64 = 0x5452415020494645

// GPTHeader is the 92-byte on-disk GPT header record, padded with reserved
// bytes out to one logical block (512 bytes) when written.
type GPTHeader struct {
	Signature                uint64
	Revision                 uint32
	HeaderSize               uint32
	HeaderChecksum           uint32
	Reserved                 uint32
	ThisHeaderLBA            uint64
	OtherHeaderLBA           uint64
	FirstUsableLBA           uint64
	LastUsableLBA            uint64
	DiskGUID                 guid.GUID
	PartitionEntriesLBA      uint64
	NrPartitionEntries       uint32
	PartitionEntrySize       uint32
	PartitionEntriesChecksum uint32
}

// NewGPTHeader returns a GPTHeader with the format constants pre-populated
// and every other field zero.
func NewGPTHeader() GPTHeader {
	return GPTHeader{
		Signature:          GPTHeaderSignature,
		Revision:           GPTHeaderRevision,
		HeaderSize:         GPTHeaderSize,
		PartitionEntrySize: GPTPartitionEntrySize,
	}
}

// AsBytes serializes h to exactly GPTHeaderSize bytes (the struct carries no
// padding to the block size; callers that write a full block zero-pad it
// themselves).
func (h GPTHeader) AsBytes() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("raw: encode GPT header: %w", err)
	}
	if uint32(buf.Len()) != GPTHeaderSize {
		return nil, fmt.Errorf("raw: encoded GPT header is %d bytes, want %d", buf.Len(), GPTHeaderSize)
	}
	return buf.Bytes(), nil
}

// GPTHeaderFromBytes parses a GPTHeader from its first GPTHeaderSize bytes.
// Trailing reserved bytes in the block are ignored.
func GPTHeaderFromBytes(b []byte) (GPTHeader, error) {
	if uint32(len(b)) < GPTHeaderSize {
		return GPTHeader{}, fmt.Errorf("raw: GPT header bytes are %d long, want at least %d", len(b), GPTHeaderSize)
	}
	var h GPTHeader
	if err := binary.Read(bytes.NewReader(b[:GPTHeaderSize]), binary.LittleEndian, &h); err != nil {
		return GPTHeader{}, fmt.Errorf("raw: decode GPT header: %w", err)
	}
	return h, nil
}

// GPTPartitionNameSize is the fixed size, in bytes, of a GPT partition
// entry's UTF-16LE name field.
const GPTPartitionNameSize = 72

// GPTPartitionEntry is the 128-byte on-disk GPT partition-entry record.
type GPTPartitionEntry struct {
	PartitionTypeGUID   guid.GUID
	UniquePartitionGUID guid.GUID
	StartingLBA         uint64
	EndingLBA           uint64
	Attributes          uint64
	Name                [GPTPartitionNameSize]byte
}

// AsBytes serializes e to exactly GPTPartitionEntrySize bytes.
func (e GPTPartitionEntry) AsBytes() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, e); err != nil {
		return nil, fmt.Errorf("raw: encode GPT partition entry: %w", err)
	}
	if uint32(buf.Len()) != GPTPartitionEntrySize {
		return nil, fmt.Errorf("raw: encoded GPT partition entry is %d bytes, want %d", buf.Len(), GPTPartitionEntrySize)
	}
	return buf.Bytes(), nil
}

// GPTPartitionEntryFromBytes parses a GPTPartitionEntry from exactly
// GPTPartitionEntrySize bytes.
func GPTPartitionEntryFromBytes(b []byte) (GPTPartitionEntry, error) {
	if uint32(len(b)) != GPTPartitionEntrySize {
		return GPTPartitionEntry{}, fmt.Errorf("raw: GPT partition entry bytes are %d long, want %d", len(b), GPTPartitionEntrySize)
	}
	var e GPTPartitionEntry
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &e); err != nil {
		return GPTPartitionEntry{}, fmt.Errorf("raw: decode GPT partition entry: %w", err)
	}
	return e, nil
}

// EncodeUTF16LEName renders s as a GPTPartitionNameSize-byte, NUL-padded
// UTF-16LE field, truncating at the field's code-unit capacity if s does not
// fit. Runes outside the BMP are surrogate-paired rather than dropped.
func EncodeUTF16LEName(s string) [GPTPartitionNameSize]byte {
	var out [GPTPartitionNameSize]byte
	units := utf16.Encode([]rune(s))
	if max := GPTPartitionNameSize / 2; len(units) > max {
		units = units[:max]
	}
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], u)
	}
	return out
}

// DecodeUTF16LEName is the inverse of EncodeUTF16LEName, stopping at the
// first NUL code unit.
func DecodeUTF16LEName(b [GPTPartitionNameSize]byte) string {
	units := make([]uint16, 0, GPTPartitionNameSize/2)
	for i := 0; i+1 < GPTPartitionNameSize; i += 2 {
		u := binary.LittleEndian.Uint16(b[i : i+2])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}
