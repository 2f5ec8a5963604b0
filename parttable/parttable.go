// Package parttable dispatches between the MBR and GPT codecs: given an
// image, it determines which table (if either) the image carries and
// returns the fully parsed model.
package parttable

import (
	"diskpart/gpt"
	"diskpart/image"
	"diskpart/mbr"
)

// Kind identifies which partition table a PartitionTable carries.
type Kind int

const (
	KindMBR Kind = iota
	KindGPT
)

func (k Kind) String() string {
	switch k {
	case KindMBR:
		return "MBR"
	case KindGPT:
		return "GPT"
	default:
		return "unknown"
	}
}

// PartitionTable is the tagged union Read returns: exactly one of MBR or
// GPT is populated, selected by Kind.
type PartitionTable struct {
	Kind Kind
	MBR  *mbr.MBR
	GPT  *gpt.GPT
}

// Read determines whether img carries an MBR, a GPT, or neither, and
// returns the fully parsed model. A valid GPT always presents with a
// protective MBR, so Read always attempts the GPT parse after a successful
// MBR parse and prefers it; this correctly classifies both pure-MBR disks
// and GPT disks. Read returns (nil, nil) if img carries neither.
func Read(img *image.Image) (*PartitionTable, error) {
	m, err := mbr.Read(img)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}

	g, err := gpt.Read(img)
	switch {
	case g != nil:
		// g is populated even when err wraps gpt.ErrChecksumMismatch; that
		// is a non-fatal warning, not a failed parse, so it is still GPT.
		return &PartitionTable{Kind: KindGPT, GPT: g}, err
	case err != nil:
		return nil, err
	default:
		return &PartitionTable{Kind: KindMBR, MBR: m}, nil
	}
}
