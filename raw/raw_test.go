package raw

import "testing"

func Test_CHSEncodeDecodeRoundTrip(t *testing.T) {
	cases := []CHS{
		{Head: 0, Sector: 1, Cylinder: 0},
		{Head: 16, Sector: 33, Cylinder: 512},
		CHSMax,
	}
	for _, c := range cases {
		b := EncodeCHS(c)
		got := DecodeCHS(b)
		if got != c {
			t.Fatalf("DecodeCHS(EncodeCHS(%+v)) = %+v", c, got)
		}
	}
}

func Test_CHSMaxBytes(t *testing.T) {
	b := EncodeCHS(CHSMax)
	want := [3]byte{0xFF, 0xFF, 0xFF}
	if b != want {
		t.Fatalf("EncodeCHS(CHSMax) = % x, want % x", b, want)
	}
}

func Test_MBRRoundTrip(t *testing.T) {
	m := NewMBR()
	m.PartitionEntries[0] = MBRPartitionEntry{
		Status:    MBRStatusNotBootable,
		PType:     MBRTypeProtectiveGPT,
		FirstLBA:  1,
		NrSectors: 0x1FFFF,
	}

	b, err := m.AsBytes()
	if err != nil {
		t.Fatalf("AsBytes: %v", err)
	}
	if len(b) != MBRSize {
		t.Fatalf("AsBytes length = %d, want %d", len(b), MBRSize)
	}
	if b[510] != MBRSignature[0] || b[511] != MBRSignature[1] {
		t.Fatalf("signature bytes = % x, want % x", b[510:512], MBRSignature)
	}

	back, err := MBRFromBytes(b)
	if err != nil {
		t.Fatalf("MBRFromBytes: %v", err)
	}
	if back != m {
		t.Fatalf("round-trip mismatch:\n got  %+v\n want %+v", back, m)
	}
}

func Test_GPTHeaderRoundTrip(t *testing.T) {
	h := NewGPTHeader()
	h.ThisHeaderLBA = 1
	h.OtherHeaderLBA = 131071
	h.NrPartitionEntries = 128

	b, err := h.AsBytes()
	if err != nil {
		t.Fatalf("AsBytes: %v", err)
	}
	if uint32(len(b)) != GPTHeaderSize {
		t.Fatalf("AsBytes length = %d, want %d", len(b), GPTHeaderSize)
	}

	// Pad to a full block, as a real write would, and confirm the parser
	// only looks at the first HeaderSize bytes.
	padded := make([]byte, GPTBlockSize)
	copy(padded, b)

	back, err := GPTHeaderFromBytes(padded)
	if err != nil {
		t.Fatalf("GPTHeaderFromBytes: %v", err)
	}
	if back != h {
		t.Fatalf("round-trip mismatch:\n got  %+v\n want %+v", back, h)
	}
}

func Test_UTF16LENameRoundTrip(t *testing.T) {
	name := "EFI System"
	enc := EncodeUTF16LEName(name)
	got := DecodeUTF16LEName(enc)
	if got != name {
		t.Fatalf("DecodeUTF16LEName(EncodeUTF16LEName(%q)) = %q", name, got)
	}
}

func Test_UTF16LENameSurrogatePair(t *testing.T) {
	name := "boot\U0001F4BE" // a non-BMP rune requires a surrogate pair
	enc := EncodeUTF16LEName(name)
	got := DecodeUTF16LEName(enc)
	if got != name {
		t.Fatalf("DecodeUTF16LEName(EncodeUTF16LEName(%q)) = %q", name, got)
	}
}
