package registry

import (
	"encoding/binary"
	"fmt"
	"math"
)

// lengthPrefixSize is the size of each little-endian u32 segment length.
const lengthPrefixSize = 4

// Frame holds the two segments of a publish request body.
//
// The layout is:
//
//	[u32le metadataLen][metadataLen bytes][u32le archiveLen][archiveLen bytes]
//
// Metadata and Archive alias the decoded body; they are not copied.
type Frame struct {
	Metadata []byte
	Archive  []byte

	// Trailing is the number of bytes found after the archive segment.
	Trailing int
}

// DecodeFrame splits body into its metadata and archive segments. Bytes after
// the archive segment are ignored and counted in Frame.Trailing.
func DecodeFrame(body []byte) (*Frame, error) {
	return decodeFrame(body, false)
}

// DecodeFrameStrict is DecodeFrame but rejects bytes after the archive segment.
func DecodeFrameStrict(body []byte) (*Frame, error) {
	return decodeFrame(body, true)
}

func decodeFrame(body []byte, strict bool) (*Frame, error) {
	rest := body

	metadata, rest, err := readSegment(rest, "metadata")
	if err != nil {
		return nil, newError(KindMalformedFrame, "", "", err)
	}
	archive, rest, err := readSegment(rest, "archive")
	if err != nil {
		return nil, newError(KindMalformedFrame, "", "", err)
	}

	if strict && len(rest) > 0 {
		return nil, newError(KindMalformedFrame, "", "", fmt.Errorf("%w: %d bytes", ErrTrailingBytes, len(rest)))
	}

	return &Frame{
		Metadata: metadata,
		Archive:  archive,
		Trailing: len(rest),
	}, nil
}

// readSegment reads one length-prefixed segment. The declared length is only
// trusted after it has been checked against the bytes actually present.
func readSegment(buf []byte, segment string) ([]byte, []byte, error) {
	if len(buf) < lengthPrefixSize {
		return nil, nil, fmt.Errorf("%w: %s length needs %d bytes, %d remain", ErrShortFrame, segment, lengthPrefixSize, len(buf))
	}
	n := uint64(binary.LittleEndian.Uint32(buf[:lengthPrefixSize]))
	buf = buf[lengthPrefixSize:]

	if n > uint64(len(buf)) {
		return nil, nil, fmt.Errorf("%w: %s declares %d bytes, %d remain", ErrShortFrame, segment, n, len(buf))
	}
	return buf[:n:n], buf[n:], nil
}

// EncodeFrame builds a publish request body from metadata and archive bytes.
// It panics if either segment is larger than the u32 length prefix allows.
func EncodeFrame(metadata, archive []byte) []byte {
	if uint64(len(metadata)) > math.MaxUint32 || uint64(len(archive)) > math.MaxUint32 {
		panic("registry: frame segment exceeds 4 GiB")
	}

	out := make([]byte, 0, 2*lengthPrefixSize+len(metadata)+len(archive))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(metadata)))
	out = append(out, metadata...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(archive)))
	out = append(out, archive...)
	return out
}
