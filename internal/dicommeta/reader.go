package dicommeta

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dcmorg/internal/services"
)

// DefaultUnknownLabel is used when a slice carries no SeriesDescription.
const DefaultUnknownLabel = "Unknown"

const (
	preambleLength = 128
	magicWord      = "DICM"
)

// SliceInfo holds the attributes extracted from one slice file.
type SliceInfo struct {
	Path  string
	Label string
	// Thickness is only meaningful when HasThickness is true.
	Thickness    float64
	HasThickness bool
}

// Reader extracts SliceInfo from a slice file.
type Reader interface {
	Read(path string) (SliceInfo, error)
}

// DICOMReader parses Part 10 files with github.com/suyashkumar/dicom.
type DICOMReader struct {
	unknownLabel string
}

// NewReader returns a DICOMReader that reports unknownLabel for slices without
// a SeriesDescription. An empty unknownLabel selects DefaultUnknownLabel.
func NewReader(unknownLabel string) *DICOMReader {
	if unknownLabel == "" {
		unknownLabel = DefaultUnknownLabel
	}
	return &DICOMReader{unknownLabel: unknownLabel}
}

// Read parses the header of path. Files without the 128-byte preamble and DICM
// marker, unparsable datasets, and malformed SliceThickness values return an
// error marked with services.ErrMetadata.
func (r *DICOMReader) Read(path string) (info SliceInfo, err error) {
	name := filepath.Base(path)
	if err := checkMagic(path); err != nil {
		return SliceInfo{}, services.Wrap(services.ErrMetadata, "organize", "read metadata", name, err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			info = SliceInfo{}
			err = services.Wrap(services.ErrMetadata, "organize", "read metadata", name, fmt.Errorf("parser panic: %v", rec))
		}
	}()

	dataset, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return SliceInfo{}, services.Wrap(services.ErrMetadata, "organize", "read metadata", name, err)
	}
	info, err = r.extract(path, dataset)
	if err != nil {
		return SliceInfo{}, services.Wrap(services.ErrMetadata, "organize", "read metadata", name, err)
	}
	return info, nil
}

func (r *DICOMReader) extract(path string, dataset dicom.Dataset) (SliceInfo, error) {
	info := SliceInfo{Path: path, Label: r.unknownLabel}

	if values, ok := elementStrings(dataset, tag.SeriesDescription); ok {
		info.Label = strings.Join(values, `\`)
	}

	thickness, ok, err := thicknessValue(dataset)
	if err != nil {
		return SliceInfo{}, err
	}
	info.Thickness = thickness
	info.HasThickness = ok
	return info, nil
}

// thicknessValue returns the first SliceThickness value. An absent element or
// an element without any value reports ok=false.
func thicknessValue(dataset dicom.Dataset) (float64, bool, error) {
	elem, err := dataset.FindElementByTag(tag.SliceThickness)
	if err != nil || elem == nil || elem.Value == nil {
		return 0, false, nil
	}
	switch values := elem.Value.GetValue().(type) {
	case []string:
		for _, raw := range values {
			text := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
			if text == "" {
				continue
			}
			parsed, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return 0, false, fmt.Errorf("slice thickness %q: %w", text, err)
			}
			return parsed, true, nil
		}
		return 0, false, nil
	case []float64:
		if len(values) == 0 {
			return 0, false, nil
		}
		return values[0], true, nil
	case []int:
		if len(values) == 0 {
			return 0, false, nil
		}
		return float64(values[0]), true, nil
	default:
		return 0, false, fmt.Errorf("slice thickness: unexpected value type %T", values)
	}
}

func elementStrings(dataset dicom.Dataset, t tag.Tag) ([]string, bool) {
	elem, err := dataset.FindElementByTag(t)
	if err != nil || elem == nil || elem.Value == nil {
		return nil, false
	}
	values, ok := elem.Value.GetValue().([]string)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimRight(v, " \x00"))
	}
	return out, true
}

var errNoMagic = errors.New("not a DICOM file: missing DICM preamble")

func checkMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, preambleLength+len(magicWord))
	if _, err := io.ReadFull(f, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errNoMagic
		}
		return err
	}
	if !bytes.Equal(header[preambleLength:], []byte(magicWord)) {
		return errNoMagic
	}
	return nil
}
