package parttable

import (
	"testing"

	"diskpart/gpt"
	"diskpart/guid"
	"diskpart/image"
	"diskpart/mbr"
)

func newTestImage(blocks int) *image.Image {
	return image.FromBytes(make([]byte, blocks*image.BlockSize))
}

func Test_DispatcherOnZeroedImage(t *testing.T) {
	img := newTestImage(2048)
	pt, err := Read(img)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if pt != nil {
		t.Fatalf("expected nil on a zeroed image, got %+v", pt)
	}
}

func Test_DispatcherOnMBR(t *testing.T) {
	img := newTestImage(2048)
	if err := mbr.New().Write(img); err != nil {
		t.Fatalf("mbr Write: %v", err)
	}

	pt, err := Read(img)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if pt == nil || pt.Kind != KindMBR {
		t.Fatalf("expected MBR, got %+v", pt)
	}
}

func Test_DispatcherOnGPT(t *testing.T) {
	img := newTestImage(131072)
	g, err := gpt.New()
	if err != nil {
		t.Fatalf("gpt.New: %v", err)
	}
	if err := g.Write(img); err != nil {
		t.Fatalf("gpt Write: %v", err)
	}

	pt, err := Read(img)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if pt == nil || pt.Kind != KindGPT {
		t.Fatalf("expected GPT, got %+v", pt)
	}
	if !guid.Equal(pt.GPT.DiskGUID, g.DiskGUID) {
		t.Fatalf("dispatched GPT disk GUID mismatch")
	}
}
