package codec

import (
	"fmt"
	"os"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"

	"resizer/pkg/imgutil"
)

// readExif returns the source's EXIF block as a ready-to-insert APP1 payload
// ("Exif\0\0" followed by the TIFF structure). It returns nil when the image
// carries no EXIF or the format has no preservable block.
func readExif(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	kind, err := imgutil.SniffReader(file)
	if err != nil {
		return nil, err
	}
	if _, err := file.Seek(0, 0); err != nil {
		return nil, err
	}

	var payload []byte
	switch kind {
	case imgutil.KindJPEG:
		payload, err = jpegExifSegment(file)
	case imgutil.KindPNG:
		var raw []byte
		raw, err = pngExifChunk(file)
		if len(raw) > 0 {
			payload = append(append([]byte{}, jpegExifHeader...), raw...)
		}
	default:
		return nil, nil
	}
	if err != nil || len(payload) == 0 {
		return nil, err
	}

	if len(payload) > maxSegmentPayload {
		return nil, fmt.Errorf("exif block too large for one segment: %d bytes", len(payload))
	}
	if _, err := exif.ParseExifHeader(payload[len(jpegExifHeader):]); err != nil {
		return nil, fmt.Errorf("invalid exif header: %w", err)
	}

	return payload, nil
}

// ExifSummary describes the identifying metadata an image carries and a
// resize with preserved metadata would copy into its output.
type ExifSummary struct {
	Tags     int
	Device   string
	Captured string
	HasGPS   bool
	Serial   bool
}

func (s ExifSummary) String() string {
	if s.Tags == 0 {
		return "no EXIF"
	}
	parts := []string{fmt.Sprintf("%d EXIF tags", s.Tags)}
	if s.Device != "" {
		parts = append(parts, "device "+s.Device)
	}
	if s.Captured != "" {
		parts = append(parts, "captured "+s.Captured)
	}
	if s.HasGPS {
		parts = append(parts, "GPS location")
	}
	if s.Serial {
		parts = append(parts, "serial number")
	}
	return strings.Join(parts, ", ")
}

// InspectExif summarizes the EXIF block of path. Images without one yield a
// zero summary.
func InspectExif(path string) (ExifSummary, error) {
	payload, err := readExif(path)
	if err != nil || payload == nil {
		return ExifSummary{}, err
	}
	return summarizeExif(payload), nil
}

func summarizeExif(payload []byte) ExifSummary {
	var s ExifSummary
	if len(payload) <= len(jpegExifHeader) {
		return s
	}
	tags, _, err := exif.GetFlatExifData(payload[len(jpegExifHeader):], nil)
	if err != nil {
		return s
	}

	var maker, model, original, modified string
	for _, tag := range tags {
		value := strings.TrimSpace(tag.FormattedFirst)
		switch tag.TagName {
		case "Make":
			maker = value
		case "Model":
			model = value
		case "DateTimeOriginal":
			original = value
		case "DateTime":
			modified = value
		}
		if strings.HasPrefix(tag.TagName, "GPS") || strings.Contains(tag.IfdPath, "GPS") {
			s.HasGPS = true
		}
		if strings.Contains(strings.ToLower(tag.TagName), "serial") {
			s.Serial = true
		}
	}

	s.Tags = len(tags)
	s.Device = strings.TrimSpace(maker + " " + model)
	if original == "" {
		original = modified
	}
	// EXIF dates use colons in the date part too.
	s.Captured = strings.Replace(original, ":", "-", 2)
	return s
}
