package gpt

import "diskpart/guid"

// Well-known GPT partition-type GUIDs. Values taken from the UEFI
// specification's partition type GUID catalogue.
var (
	TypeUnused             = guid.Nil()
	TypeMBRPartitionScheme = mustParseType("024DEE41-33E7-11D3-9D69-0008C781F39F")
	TypeEFISystem          = mustParseType("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")
	TypeBIOSBoot           = mustParseType("21686148-6449-6E6F-744E-656564454649")
	TypeLinuxFilesystem    = mustParseType("0FC63DAF-8483-4772-8E79-3D69D8477DE4")
)

func mustParseType(s string) guid.GUID {
	g, err := guid.Parse(s)
	if err != nil {
		panic("gpt: invalid built-in type GUID " + s + ": " + err.Error())
	}
	return g
}
