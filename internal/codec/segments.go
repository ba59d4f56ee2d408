package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	markerSOI  = 0xd8
	markerEOI  = 0xd9
	markerSOS  = 0xda
	markerAPP0 = 0xe0
	markerAPP1 = 0xe1

	// maxSegmentPayload is the largest payload a JPEG marker segment can
	// carry; the 16-bit length includes its own two bytes.
	maxSegmentPayload = 0xffff - 2
)

var (
	jpegExifHeader = []byte("Exif\x00\x00")
	pngSignature   = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
)

// jpegExifSegment returns the APP1 payload carrying EXIF, including the
// "Exif\0\0" header, or nil when the image has none. Scanning stops at the
// first scan segment.
func jpegExifSegment(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)

	soi := make([]byte, 2)
	if _, err := io.ReadFull(br, soi); err != nil {
		return nil, err
	}
	if soi[0] != 0xff || soi[1] != markerSOI {
		return nil, fmt.Errorf("invalid JPEG SOI")
	}

	for {
		marker, err := nextMarker(br)
		if err != nil {
			return nil, err
		}

		if marker == markerEOI || marker == markerSOS {
			return nil, nil
		}
		if marker == 0x01 || (marker >= 0xd0 && marker <= 0xd7) {
			continue
		}

		lenBuf := make([]byte, 2)
		if _, err := io.ReadFull(br, lenBuf); err != nil {
			return nil, err
		}
		segLen := int(binary.BigEndian.Uint16(lenBuf))
		if segLen < 2 {
			return nil, fmt.Errorf("invalid JPEG segment length")
		}
		payloadLen := segLen - 2

		if marker != markerAPP1 {
			if _, err := io.CopyN(io.Discard, br, int64(payloadLen)); err != nil {
				return nil, err
			}
			continue
		}

		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(br, payload); err != nil {
			return nil, err
		}
		if bytes.HasPrefix(payload, jpegExifHeader) {
			return payload, nil
		}
	}
}

func nextMarker(br *bufio.Reader) (byte, error) {
	prefix, err := br.ReadByte()
	if err != nil {
		return 0, err
	}
	for prefix != 0xff {
		prefix, err = br.ReadByte()
		if err != nil {
			return 0, err
		}
	}

	marker, err := br.ReadByte()
	if err != nil {
		return 0, err
	}
	for marker == 0xff {
		marker, err = br.ReadByte()
		if err != nil {
			return 0, err
		}
	}
	return marker, nil
}

// insertJPEGSegment copies a JPEG stream from r to w, adding one marker
// segment after SOI and any leading JFIF APP0 segments.
func insertJPEGSegment(r io.Reader, w io.Writer, marker byte, payload []byte) error {
	if len(payload) > maxSegmentPayload {
		return fmt.Errorf("segment payload too large: %d bytes", len(payload))
	}

	br := bufio.NewReader(r)

	soi := make([]byte, 2)
	if _, err := io.ReadFull(br, soi); err != nil {
		return err
	}
	if soi[0] != 0xff || soi[1] != markerSOI {
		return fmt.Errorf("invalid JPEG SOI")
	}
	if _, err := w.Write(soi); err != nil {
		return err
	}

	for {
		head, err := br.Peek(4)
		if err != nil {
			return err
		}
		if head[0] != 0xff || head[1] != markerAPP0 {
			break
		}
		segLen := int(binary.BigEndian.Uint16(head[2:4]))
		if segLen < 2 {
			return fmt.Errorf("invalid JPEG segment length")
		}
		if _, err := io.CopyN(w, br, int64(segLen)+2); err != nil {
			return err
		}
	}

	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(payload)+2))
	if _, err := w.Write([]byte{0xff, marker}); err != nil {
		return err
	}
	if _, err := w.Write(lenBuf); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}

	_, err := io.Copy(w, br)
	return err
}

// pngExifChunk returns the data of the eXIf chunk, or nil when absent.
func pngExifChunk(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)

	sig := make([]byte, 8)
	if _, err := io.ReadFull(br, sig); err != nil {
		return nil, err
	}
	if !bytes.Equal(sig, pngSignature) {
		return nil, errors.New("invalid PNG signature")
	}

	for {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(br, lenBuf); err != nil {
			if err == io.EOF {
				return nil, nil
			}
			return nil, err
		}
		length := binary.BigEndian.Uint32(lenBuf)

		typeBuf := make([]byte, 4)
		if _, err := io.ReadFull(br, typeBuf); err != nil {
			return nil, err
		}

		switch string(typeBuf) {
		case "eXIf":
			if length > maxSegmentPayload {
				return nil, fmt.Errorf("eXIf chunk too large: %d bytes", length)
			}
			data := make([]byte, length)
			if _, err := io.ReadFull(br, data); err != nil {
				return nil, err
			}
			return data, nil
		case "IEND":
			return nil, nil
		default:
			if _, err := io.CopyN(io.Discard, br, int64(length)+4); err != nil {
				return nil, err
			}
		}
	}
}
