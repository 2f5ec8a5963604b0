// Package mbr implements the in-memory model, construction, and byte
// serialization of the legacy Master Boot Record partition table.
package mbr

import (
	"github.com/pkg/errors"

	"diskpart/image"
	"diskpart/raw"
)

// ErrUnknownPartitionType is returned by Write when an entry's Type byte is
// neither MBRTypeEmpty nor MBRTypeProtectiveGPT. Unrecognized type bytes are
// preserved verbatim on Read but may not be written back out.
var ErrUnknownPartitionType = errors.New("mbr: unknown partition type byte cannot be written")

// Heuristic CHS geometry used to encode LBAs: 16 heads, 63 sectors/track.
const (
	headsPerCylinder = 16
	sectorsPerTrack  = 63
)

// CHSFromLBA converts an LBA to a CHS triple under the heuristic geometry.
// Cylinder saturates at 0x3FF; head and sector are taken modulo the geometry
// (0..15 and 1..63), so for LBAs past the cylinder limit they do not
// saturate and the result is not CHSMax.
func CHSFromLBA(lba uint32) raw.CHS {
	cylinder := lba / (headsPerCylinder * sectorsPerTrack)
	head := (lba / sectorsPerTrack) % headsPerCylinder
	sector := (lba % sectorsPerTrack) + 1

	return raw.CHS{
		Head:     uint8(min(head, 0xFF)),
		Sector:   uint8(min(sector, 0x3F)),
		Cylinder: uint16(min(cylinder, 0x3FF)),
	}
}

// PartitionEntry is the in-memory form of one of an MBR's four partition
// records.
type PartitionEntry struct {
	Bootable bool
	// Type holds raw.MBRTypeEmpty, raw.MBRTypeProtectiveGPT, or — on an entry
	// populated by Read — an unrecognized byte preserved as read. Write
	// refuses to emit an entry whose Type isn't one of the two known codes.
	Type      uint8
	FirstCHS  raw.CHS
	LastCHS   raw.CHS
	FirstLBA  uint32
	NrSectors uint32
}

// IsEmpty reports whether e is an unused entry.
func (e PartitionEntry) IsEmpty() bool {
	return e.Type == raw.MBRTypeEmpty
}

// IsProtectiveGPT reports whether e marks a GPT protective partition.
func (e PartitionEntry) IsProtectiveGPT() bool {
	return e.Type == raw.MBRTypeProtectiveGPT
}

// MBR is the in-memory model of a master boot record: exactly four
// partition entries.
type MBR struct {
	Entries [4]PartitionEntry
}

// New returns an MBR with all four entries empty.
func New() *MBR {
	return &MBR{}
}

// NewProtective returns an MBR whose first entry spans the entire disk
// (LBA 1 through blockCount-1) with type ProtectiveGPT, as required ahead of
// writing a GPT. The sector count saturates at the maximum representable
// in a 32-bit field; the ending CHS is unconditionally the maximum triple,
// per the protective-MBR convention.
func NewProtective(blockCount uint64) *MBR {
	nrSectors := blockCount - 1
	if nrSectors > 0xFFFFFFFF {
		nrSectors = 0xFFFFFFFF
	}

	m := &MBR{}
	m.Entries[0] = PartitionEntry{
		Bootable:  false,
		Type:      raw.MBRTypeProtectiveGPT,
		FirstCHS:  CHSFromLBA(1),
		LastCHS:   raw.CHSMax,
		FirstLBA:  1,
		NrSectors: uint32(nrSectors),
	}
	return m
}

func (m *MBR) toRaw() (raw.MBR, error) {
	r := raw.MBR{Signature: raw.MBRSignature}
	for i, e := range m.Entries {
		if !e.IsEmpty() && !e.IsProtectiveGPT() {
			return raw.MBR{}, errors.Wrapf(ErrUnknownPartitionType, "entry %d: type %#x", i, e.Type)
		}
		status := raw.MBRStatusNotBootable
		if e.Bootable {
			status = raw.MBRStatusBootable
		}
		r.PartitionEntries[i] = raw.MBRPartitionEntry{
			Status:    status,
			FirstCHS:  raw.EncodeCHS(e.FirstCHS),
			PType:     e.Type,
			LastCHS:   raw.EncodeCHS(e.LastCHS),
			FirstLBA:  e.FirstLBA,
			NrSectors: e.NrSectors,
		}
	}
	return r, nil
}

// Write serializes m and copies it into block 0 of img, overwriting all 512
// bytes including any prior bootstrap code. It returns ErrUnknownPartitionType
// if any entry carries a type byte other than MBRTypeEmpty or
// MBRTypeProtectiveGPT.
func (m *MBR) Write(img *image.Image) error {
	r, err := m.toRaw()
	if err != nil {
		return err
	}
	b, err := r.AsBytes()
	if err != nil {
		return err
	}
	copy(img.GetBlocksMut(0, 1), b)
	return nil
}

// Read parses block 0 of img as an MBR. It returns (nil, nil), not an
// error, if the 0x55AA signature is absent — that is a format mismatch, not
// a failure of the read itself.
func Read(img *image.Image) (*MBR, error) {
	r, err := raw.MBRFromBytes(img.GetBlocks(0, 1))
	if err != nil {
		return nil, err
	}
	if r.Signature != raw.MBRSignature {
		return nil, nil
	}

	m := &MBR{}
	for i, re := range r.PartitionEntries {
		m.Entries[i] = PartitionEntry{
			Bootable:  re.Status == raw.MBRStatusBootable,
			Type:      re.PType,
			FirstCHS:  raw.DecodeCHS(re.FirstCHS),
			LastCHS:   raw.DecodeCHS(re.LastCHS),
			FirstLBA:  re.FirstLBA,
			NrSectors: re.NrSectors,
		}
	}
	return m, nil
}

// Check reports only whether block 0 of img carries the 0x55AA signature.
func Check(img *image.Image) bool {
	b := img.GetBlocks(0, 1)
	return b[510] == raw.MBRSignature[0] && b[511] == raw.MBRSignature[1]
}
