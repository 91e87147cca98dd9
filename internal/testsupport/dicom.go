package testsupport

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

const (
	ctImageStorageUID         = "1.2.840.10008.5.1.4.1.1.2"
	explicitVRLittleEndianUID = "1.2.840.10008.1.2.1"
)

// Slice describes the attributes written into a fixture slice file.
type Slice struct {
	SeriesDescription string
	// OmitDescription leaves SeriesDescription out of the dataset.
	OmitDescription bool
	// SliceThickness is the raw DS text; empty omits the element.
	SliceThickness string
	InstanceNumber int
}

// WriteDICOM writes a minimal Part 10 file (explicit VR little endian, no
// pixel data) carrying the attributes in s.
func WriteDICOM(t testing.TB, path string, s Slice) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, encodeDICOM(s), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// encodeDICOM returns the bytes WriteDICOM would write.
func encodeDICOM(s Slice) []byte {
	instance := s.InstanceNumber
	if instance <= 0 {
		instance = 1
	}

	var meta bytes.Buffer
	writeElement(&meta, 0x0002, 0x0001, "OB", []byte{0x00, 0x01})
	writeElement(&meta, 0x0002, 0x0002, "UI", uidValue(ctImageStorageUID))
	writeElement(&meta, 0x0002, 0x0003, "UI", uidValue("1.2.826.0.1.3680043.2.1125."+strconv.Itoa(instance)))
	writeElement(&meta, 0x0002, 0x0010, "UI", uidValue(explicitVRLittleEndianUID))

	var out bytes.Buffer
	out.Write(make([]byte, 128))
	out.WriteString("DICM")
	groupLength := make([]byte, 4)
	binary.LittleEndian.PutUint32(groupLength, uint32(meta.Len()))
	writeElement(&out, 0x0002, 0x0000, "UL", groupLength)
	out.Write(meta.Bytes())

	writeElement(&out, 0x0008, 0x0060, "CS", textValue("CT"))
	if !s.OmitDescription {
		writeElement(&out, 0x0008, 0x103E, "LO", textValue(s.SeriesDescription))
	}
	if s.SliceThickness != "" {
		writeElement(&out, 0x0018, 0x0050, "DS", textValue(s.SliceThickness))
	}
	writeElement(&out, 0x0020, 0x0013, "IS", textValue(strconv.Itoa(instance)))
	return out.Bytes()
}

func writeElement(buf *bytes.Buffer, group, element uint16, vr string, value []byte) {
	var header [4]byte
	binary.LittleEndian.PutUint16(header[0:2], group)
	binary.LittleEndian.PutUint16(header[2:4], element)
	buf.Write(header[:])
	buf.WriteString(vr)
	switch vr {
	case "OB", "OW", "OF", "SQ", "UT", "UN":
		buf.Write([]byte{0, 0})
		length := make([]byte, 4)
		binary.LittleEndian.PutUint32(length, uint32(len(value)))
		buf.Write(length)
	default:
		length := make([]byte, 2)
		binary.LittleEndian.PutUint16(length, uint16(len(value)))
		buf.Write(length)
	}
	buf.Write(value)
}

// textValue pads text VRs to even length with a space.
func textValue(s string) []byte {
	if len(s)%2 == 1 {
		s += " "
	}
	return []byte(s)
}

// uidValue pads UIDs to even length with a NUL byte.
func uidValue(s string) []byte {
	if len(s)%2 == 1 {
		return append([]byte(s), 0)
	}
	return []byte(s)
}
