package imgutil

import (
	"bytes"
	"errors"
	"io"
	"os"
)

// Kind identifies a supported image type.
type Kind int

const (
	KindUnknown Kind = iota
	KindJPEG
	KindPNG
	KindTIFF
	KindBMP
	KindWebP
	KindHEIC
)

func (k Kind) String() string {
	switch k {
	case KindJPEG:
		return "jpeg"
	case KindPNG:
		return "png"
	case KindTIFF:
		return "tiff"
	case KindBMP:
		return "bmp"
	case KindWebP:
		return "webp"
	case KindHEIC:
		return "heic"
	default:
		return "unknown"
	}
}

// HeaderSize is the number of leading bytes DetectHeader needs.
const HeaderSize = 12

var (
	pngSig    = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	jpegSig   = []byte{0xff, 0xd8, 0xff}
	tiffSigLE = []byte{0x49, 0x49, 0x2a, 0x00}
	tiffSigBE = []byte{0x4d, 0x4d, 0x00, 0x2a}
	bmpSig    = []byte("BM")
	riffSig   = []byte("RIFF")
	webpSig   = []byte("WEBP")
	ftypSig   = []byte("ftyp")
)

var heicBrands = [][]byte{
	[]byte("heic"), []byte("heix"), []byte("hevc"), []byte("hevx"),
	[]byte("heim"), []byte("heis"), []byte("mif1"), []byte("msf1"),
}

// DetectHeader inspects the first 12 bytes of a file for known signatures.
func DetectHeader(header []byte) (Kind, error) {
	if len(header) < HeaderSize {
		return KindUnknown, errors.New("header too short")
	}

	switch {
	case bytes.HasPrefix(header, jpegSig):
		return KindJPEG, nil
	case bytes.HasPrefix(header, pngSig):
		return KindPNG, nil
	case bytes.HasPrefix(header, tiffSigLE), bytes.HasPrefix(header, tiffSigBE):
		return KindTIFF, nil
	case bytes.HasPrefix(header, riffSig) && bytes.Equal(header[8:12], webpSig):
		return KindWebP, nil
	case bytes.Equal(header[4:8], ftypSig):
		for _, brand := range heicBrands {
			if bytes.Equal(header[8:12], brand) {
				return KindHEIC, nil
			}
		}
	case bytes.HasPrefix(header, bmpSig):
		return KindBMP, nil
	}

	return KindUnknown, nil
}

// SniffFile reads the first bytes of a file to determine its type.
func SniffFile(path string) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, err
	}
	defer f.Close()

	return SniffReader(f)
}

// SniffReader reads the first bytes from r and determines its type.
func SniffReader(r io.Reader) (Kind, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return KindUnknown, err
	}

	return DetectHeader(header)
}
