package gpt

import (
	"hash/crc32"
	"testing"

	"github.com/google/go-cmp/cmp"

	"diskpart/guid"
	"diskpart/image"
	"diskpart/mbr"
	"diskpart/raw"
)

func newTestImage(blocks int) *image.Image {
	return image.FromBytes(make([]byte, blocks*image.BlockSize))
}

func Test_FreshGPTLayout(t *testing.T) {
	img := newTestImage(131072)
	g, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := g.Write(img); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if !mbr.Check(img) {
		t.Fatalf("expected a valid MBR signature at block 0")
	}
	m, err := mbr.Read(img)
	if err != nil || m == nil {
		t.Fatalf("mbr.Read after gpt.Write: m=%v err=%v", m, err)
	}
	if !m.Entries[0].IsProtectiveGPT() {
		t.Fatalf("entry 0 is not marked ProtectiveGPT")
	}

	primary := img.GetBlocks(1, 1)
	if string(primary[0:8]) != "EFI PART" {
		t.Fatalf("primary header signature = %q, want %q", primary[0:8], "EFI PART")
	}

	guidBytes := guid.ToBytesME(g.DiskGUID)
	if !bytesEqual(primary[56:72], guidBytes[:]) {
		t.Fatalf("disk GUID bytes at 56..72 = % x, want % x", primary[56:72], guidBytes)
	}

	h, err := raw.GPTHeaderFromBytes(primary)
	if err != nil {
		t.Fatalf("GPTHeaderFromBytes: %v", err)
	}
	if h.NrPartitionEntries != DefaultPartitionCount {
		t.Fatalf("NrPartitionEntries = %d, want %d", h.NrPartitionEntries, DefaultPartitionCount)
	}
	if h.PartitionEntrySize != raw.GPTPartitionEntrySize {
		t.Fatalf("PartitionEntrySize = %d, want %d", h.PartitionEntrySize, raw.GPTPartitionEntrySize)
	}
	if h.PartitionEntriesLBA != 2 {
		t.Fatalf("PartitionEntriesLBA = %d, want 2", h.PartitionEntriesLBA)
	}
	if h.OtherHeaderLBA != 131071 {
		t.Fatalf("OtherHeaderLBA = %d, want 131071", h.OtherHeaderLBA)
	}
	if h.FirstUsableLBA != 34 {
		t.Fatalf("FirstUsableLBA = %d, want 34", h.FirstUsableLBA)
	}
	// last usable LBA = backup header block (131071) - entry array blocks (32) - 1.
	wantLastUsable := uint64(131071 - 32 - 1)
	if h.LastUsableLBA != wantLastUsable {
		t.Fatalf("LastUsableLBA = %d, want %d", h.LastUsableLBA, wantLastUsable)
	}

	backup := img.GetBlocks(131071, 1)
	hb, err := raw.GPTHeaderFromBytes(backup)
	if err != nil {
		t.Fatalf("GPTHeaderFromBytes(backup): %v", err)
	}
	if hb.ThisHeaderLBA != h.OtherHeaderLBA || hb.OtherHeaderLBA != h.ThisHeaderLBA {
		t.Fatalf("primary/backup LBA duality broken: primary=%+v backup=%+v", h, hb)
	}
	if hb.DiskGUID != h.DiskGUID {
		t.Fatalf("primary/backup disk GUID mismatch")
	}
	if hb.NrPartitionEntries != h.NrPartitionEntries {
		t.Fatalf("primary/backup entry count mismatch")
	}

	primaryEntries := img.GetBlocks(int(h.PartitionEntriesLBA), int(EntryArrayBlocks(int(h.NrPartitionEntries))))
	backupEntries := img.GetBlocks(int(hb.PartitionEntriesLBA), int(EntryArrayBlocks(int(hb.NrPartitionEntries))))
	if !bytesEqual(primaryEntries, backupEntries) {
		t.Fatalf("primary and backup entry arrays are not bytewise identical")
	}
}

func Test_AddPartitionRoundTrip(t *testing.T) {
	img := newTestImage(131072)
	g, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := g.AddPartition(TypeEFISystem); err != nil {
		t.Fatalf("AddPartition: %v", err)
	}
	if err := g.Write(img); err != nil {
		t.Fatalf("Write: %v", err)
	}

	back, err := Read(img)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if back == nil {
		t.Fatalf("Read returned nil for a valid GPT")
	}
	if len(back.Partitions) != 1 {
		t.Fatalf("expected 1 non-empty partition, got %d", len(back.Partitions))
	}
	if !guid.Equal(back.Partitions[0].TypeGUID, TypeEFISystem) {
		t.Fatalf("partition type = %v, want %v", back.Partitions[0].TypeGUID, TypeEFISystem)
	}
	if !guid.Equal(back.DiskGUID, g.DiskGUID) {
		t.Fatalf("disk GUID mismatch after round-trip")
	}
}

func Test_MultiplePartitionsPreserveOrder(t *testing.T) {
	img := newTestImage(65536)
	g, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	types := []guid.GUID{TypeEFISystem, TypeBIOSBoot, TypeLinuxFilesystem}
	for _, ty := range types {
		if _, err := g.AddPartition(ty); err != nil {
			t.Fatalf("AddPartition: %v", err)
		}
	}
	if err := g.Write(img); err != nil {
		t.Fatalf("Write: %v", err)
	}

	back, err := Read(img)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(back.Partitions) != len(types) {
		t.Fatalf("got %d partitions, want %d", len(back.Partitions), len(types))
	}
	for i, ty := range types {
		if !guid.Equal(back.Partitions[i].TypeGUID, ty) {
			t.Fatalf("partition %d type = %v, want %v", i, back.Partitions[i].TypeGUID, ty)
		}
	}
}

func Test_HeaderChecksumProperty(t *testing.T) {
	img := newTestImage(2048)
	g, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := g.Write(img); err != nil {
		t.Fatalf("Write: %v", err)
	}

	h, err := raw.GPTHeaderFromBytes(img.GetBlocks(1, 1))
	if err != nil {
		t.Fatalf("GPTHeaderFromBytes: %v", err)
	}

	stored := h.HeaderChecksum
	recomputed, err := headerChecksum(h)
	if err != nil {
		t.Fatalf("headerChecksum: %v", err)
	}
	if recomputed != stored {
		t.Fatalf("recomputed header checksum %d != stored %d", recomputed, stored)
	}
}

func Test_EntryArrayChecksumExcludesPadding(t *testing.T) {
	img := newTestImage(2048)
	g, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := g.AddPartition(TypeLinuxFilesystem); err != nil {
		t.Fatalf("AddPartition: %v", err)
	}
	if err := g.Write(img); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entryBytes, err := g.serializeEntries()
	if err != nil {
		t.Fatalf("serializeEntries: %v", err)
	}
	h, err := raw.GPTHeaderFromBytes(img.GetBlocks(1, 1))
	if err != nil {
		t.Fatalf("GPTHeaderFromBytes: %v", err)
	}
	got := crc32.ChecksumIEEE(entryBytes)
	if got != h.PartitionEntriesChecksum {
		t.Fatalf("entry array checksum = %d, want %d", h.PartitionEntriesChecksum, got)
	}
}

func Test_ChecksumMismatchIsNonFatal(t *testing.T) {
	img := newTestImage(2048)
	g, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := g.Write(img); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Corrupt a byte inside the primary entry array without touching the
	// checksum fields, so the read should still succeed but flag the
	// mismatch.
	region := img.GetBlocksMut(2, 1)
	region[0] ^= 0xFF

	back, err := Read(img)
	if back == nil {
		t.Fatalf("Read returned nil despite a parseable header")
	}
	if err == nil {
		t.Fatalf("expected a wrapped checksum-mismatch error")
	}
}

func Test_GPTStructuralRoundTrip(t *testing.T) {
	img := newTestImage(4096)
	g, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p, err := g.AddPartition(TypeEFISystem)
	if err != nil {
		t.Fatalf("AddPartition: %v", err)
	}
	p.FirstLBA = 40
	p.LastLBA = 1000
	p.Name = "EFI System"

	if err := g.Write(img); err != nil {
		t.Fatalf("Write: %v", err)
	}
	back, err := Read(img)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	got := back.Partitions[0]
	want := Partition{TypeGUID: p.TypeGUID, ID: p.ID, FirstLBA: 40, LastLBA: 1000, Name: "EFI System"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("partition round-trip mismatch (-want +got):\n%s", diff)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
