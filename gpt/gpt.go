// Package gpt implements the in-memory model, construction, dual-header
// serialization, and checksummed parsing of the GUID Partition Table.
package gpt

import (
	"hash/crc32"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"diskpart/guid"
	"diskpart/image"
	"diskpart/mbr"
	"diskpart/raw"
)

// DefaultPartitionCount is the conventional number of entries New populates
// a fresh table with.
const DefaultPartitionCount = 128

// ErrChecksumMismatch is wrapped into the error Read returns when a stored
// checksum (header or partition-entry-array) disagrees with the freshly
// computed one. The returned *GPT is still fully populated from whichever
// header's signature matched; fatality is the caller's choice.
var ErrChecksumMismatch = errors.New("gpt: checksum verification failed")

// Partition is the in-memory form of one GPT partition entry.
type Partition struct {
	TypeGUID   guid.GUID
	ID         guid.GUID
	FirstLBA   uint64
	LastLBA    uint64
	Attributes uint64
	Name       string
}

// IsUnused reports whether p is an empty slot (nil type GUID).
func (p Partition) IsUnused() bool {
	return guid.IsNil(p.TypeGUID)
}

// GPT is the in-memory model of a GUID Partition Table: a disk GUID and its
// partition entries, in on-disk order.
type GPT struct {
	DiskGUID   guid.GUID
	Partitions []Partition
}

// New returns a GPT with a fresh random disk GUID and DefaultPartitionCount
// unused entries.
func New() (*GPT, error) {
	diskGUID, err := guid.NewV4()
	if err != nil {
		return nil, errors.Wrap(err, "gpt: new")
	}
	return &GPT{
		DiskGUID:   diskGUID,
		Partitions: make([]Partition, DefaultPartitionCount),
	}, nil
}

// AddPartition appends a new entry of the given type with a fresh random
// unique partition GUID, and returns a pointer to it so the caller can set
// FirstLBA, LastLBA, Attributes, and Name.
func (g *GPT) AddPartition(typeGUID guid.GUID) (*Partition, error) {
	id, err := guid.NewV4()
	if err != nil {
		return nil, errors.Wrap(err, "gpt: add partition")
	}
	g.Partitions = append(g.Partitions, Partition{TypeGUID: typeGUID, ID: id})
	return &g.Partitions[len(g.Partitions)-1], nil
}

// EntryArrayBlocks returns the number of whole blocks needed to hold
// nrEntries partition entries: ceil(nrEntries*128/512).
func EntryArrayBlocks(nrEntries int) uint64 {
	totalBytes := uint64(nrEntries) * uint64(raw.GPTPartitionEntrySize)
	return (totalBytes + image.BlockSize - 1) / image.BlockSize
}

func (g *GPT) serializeEntries() ([]byte, error) {
	buf := make([]byte, 0, len(g.Partitions)*int(raw.GPTPartitionEntrySize))
	for i, p := range g.Partitions {
		e := raw.GPTPartitionEntry{
			PartitionTypeGUID:   p.TypeGUID,
			UniquePartitionGUID: p.ID,
			StartingLBA:         p.FirstLBA,
			EndingLBA:           p.LastLBA,
			Attributes:          p.Attributes,
			Name:                raw.EncodeUTF16LEName(p.Name),
		}
		b, err := e.AsBytes()
		if err != nil {
			return nil, errors.Wrapf(err, "gpt: serialize entry %d", i)
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

func headerChecksum(h raw.GPTHeader) (uint32, error) {
	h.HeaderChecksum = 0
	b, err := h.AsBytes()
	if err != nil {
		return 0, err
	}
	return crc32.ChecksumIEEE(b), nil
}

func writeZeroedBlocks(img *image.Image, startBlock, nrBlocks uint64, payload []byte) {
	region := img.GetBlocksMut(int(startBlock), int(nrBlocks))
	for i := range region {
		region[i] = 0
	}
	copy(region, payload)
}

func (g *GPT) buildHeader(thisLBA, otherLBA, entriesLBA, firstUsable, lastUsable uint64, entriesChecksum uint32) (raw.GPTHeader, error) {
	h := raw.NewGPTHeader()
	h.ThisHeaderLBA = thisLBA
	h.OtherHeaderLBA = otherLBA
	h.FirstUsableLBA = firstUsable
	h.LastUsableLBA = lastUsable
	h.DiskGUID = g.DiskGUID
	h.PartitionEntriesLBA = entriesLBA
	h.NrPartitionEntries = uint32(len(g.Partitions))
	h.PartitionEntriesChecksum = entriesChecksum

	checksum, err := headerChecksum(h)
	if err != nil {
		return raw.GPTHeader{}, err
	}
	h.HeaderChecksum = checksum
	return h, nil
}

// Write lays out a protective MBR, dual GPT headers, and dual partition
// entry arrays across img. The entry array is serialized from the actual
// partition entries first, and the checksum is computed over those exact
// bytes, never over a zeroed placeholder.
func (g *GPT) Write(img *image.Image) error {
	blockCount := uint64(img.BlockCount())

	pmbr := mbr.NewProtective(blockCount)
	if err := pmbr.Write(img); err != nil {
		return errors.Wrap(err, "gpt: write protective MBR")
	}

	entryBytes, err := g.serializeEntries()
	if err != nil {
		return err
	}
	entriesChecksum := crc32.ChecksumIEEE(entryBytes)
	nrEntryBlocks := EntryArrayBlocks(len(g.Partitions))

	const primaryHeaderLBA = uint64(1)
	backupHeaderLBA := blockCount - 1
	primaryEntriesLBA := primaryHeaderLBA + 1
	backupEntriesLBA := backupHeaderLBA - nrEntryBlocks

	firstUsable := primaryHeaderLBA + nrEntryBlocks + 1
	lastUsable := backupHeaderLBA - nrEntryBlocks - 1

	writeZeroedBlocks(img, primaryEntriesLBA, nrEntryBlocks, entryBytes)
	writeZeroedBlocks(img, backupEntriesLBA, nrEntryBlocks, entryBytes)

	primaryHeader, err := g.buildHeader(primaryHeaderLBA, backupHeaderLBA, primaryEntriesLBA, firstUsable, lastUsable, entriesChecksum)
	if err != nil {
		return errors.Wrap(err, "gpt: build primary header")
	}
	primaryBytes, err := primaryHeader.AsBytes()
	if err != nil {
		return err
	}
	writeZeroedBlocks(img, primaryHeaderLBA, 1, primaryBytes)

	backupHeader, err := g.buildHeader(backupHeaderLBA, primaryHeaderLBA, backupEntriesLBA, firstUsable, lastUsable, entriesChecksum)
	if err != nil {
		return errors.Wrap(err, "gpt: build backup header")
	}
	backupBytes, err := backupHeader.AsBytes()
	if err != nil {
		return err
	}
	writeZeroedBlocks(img, backupHeaderLBA, 1, backupBytes)

	return nil
}

// readHeaderAt reads and signature-checks the header at lba. It returns a
// nil header, not an error, if the signature doesn't match.
func readHeaderAt(img *image.Image, lba uint64) (*raw.GPTHeader, error) {
	h, err := raw.GPTHeaderFromBytes(img.GetBlocks(int(lba), 1))
	if err != nil {
		return nil, err
	}
	if h.Signature != raw.GPTHeaderSignature {
		return nil, nil
	}
	return &h, nil
}

func readEntries(img *image.Image, entriesLBA uint64, nrEntries uint32) ([]raw.GPTPartitionEntry, error) {
	nrBlocks := EntryArrayBlocks(int(nrEntries))
	region := img.GetBlocks(int(entriesLBA), int(nrBlocks))

	entries := make([]raw.GPTPartitionEntry, nrEntries)
	for i := uint32(0); i < nrEntries; i++ {
		start := uint64(i) * uint64(raw.GPTPartitionEntrySize)
		e, err := raw.GPTPartitionEntryFromBytes(region[start : start+uint64(raw.GPTPartitionEntrySize)])
		if err != nil {
			return nil, errors.Wrapf(err, "gpt: decode entry %d", i)
		}
		entries[i] = e
	}
	return entries, nil
}

// Read parses a GPT from img: the primary header at block 1, falling back
// to the backup header at the last block if the primary's signature doesn't
// match. It returns (nil, nil), not an error, if block 0 isn't a protective
// MBR or neither header's signature matches. Checksum mismatches are logged
// and reported via a wrapped ErrChecksumMismatch, but do not prevent a
// successful parse from being returned.
func Read(img *image.Image) (*GPT, error) {
	m, err := mbr.Read(img)
	if err != nil {
		return nil, err
	}
	if m == nil || !m.Entries[0].IsProtectiveGPT() {
		return nil, nil
	}

	blockCount := uint64(img.BlockCount())
	primaryHeaderLBA := uint64(1)
	backupHeaderLBA := blockCount - 1

	header, err := readHeaderAt(img, primaryHeaderLBA)
	if err != nil {
		return nil, err
	}
	usedBackup := false
	if header == nil {
		header, err = readHeaderAt(img, backupHeaderLBA)
		if err != nil {
			return nil, err
		}
		usedBackup = true
	}
	if header == nil {
		return nil, nil
	}

	var checksumErr error
	computedHeaderChecksum, err := headerChecksum(*header)
	if err != nil {
		return nil, err
	}
	if computedHeaderChecksum != header.HeaderChecksum {
		logrus.WithFields(logrus.Fields{
			"used_backup": usedBackup,
			"stored":      header.HeaderChecksum,
			"computed":    computedHeaderChecksum,
		}).Warn("gpt: header checksum mismatch")
		checksumErr = errors.Wrap(ErrChecksumMismatch, "header checksum")
	}

	entries, err := readEntries(img, header.PartitionEntriesLBA, header.NrPartitionEntries)
	if err != nil {
		return nil, err
	}

	entryBytes := make([]byte, 0, len(entries)*int(raw.GPTPartitionEntrySize))
	for _, e := range entries {
		b, err := e.AsBytes()
		if err != nil {
			return nil, err
		}
		entryBytes = append(entryBytes, b...)
	}
	if computed := crc32.ChecksumIEEE(entryBytes); computed != header.PartitionEntriesChecksum {
		logrus.WithFields(logrus.Fields{
			"stored":   header.PartitionEntriesChecksum,
			"computed": computed,
		}).Warn("gpt: partition entry array checksum mismatch")
		checksumErr = errors.Wrap(ErrChecksumMismatch, "partition entry array checksum")
	}

	g := &GPT{DiskGUID: header.DiskGUID}
	for _, e := range entries {
		if guid.IsNil(e.PartitionTypeGUID) {
			continue
		}
		g.Partitions = append(g.Partitions, Partition{
			TypeGUID:   e.PartitionTypeGUID,
			ID:         e.UniquePartitionGUID,
			FirstLBA:   e.StartingLBA,
			LastLBA:    e.EndingLBA,
			Attributes: e.Attributes,
			Name:       raw.DecodeUTF16LEName(e.Name),
		})
	}

	return g, checksumErr
}
