package registry

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		metadata []byte
		archive  []byte
	}{
		{"both segments", []byte(`{"name":"demo","vers":"1.0.0"}`), []byte("abc")},
		{"empty archive", []byte(`{}`), nil},
		{"empty metadata", nil, []byte("abc")},
		{"both empty", nil, nil},
		{"binary archive", []byte(`{}`), bytes.Repeat([]byte{0x00, 0xff}, 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := DecodeFrame(EncodeFrame(tt.metadata, tt.archive))
			require.NoError(t, err)
			assert.Equal(t, len(tt.metadata), len(frame.Metadata))
			assert.Equal(t, len(tt.archive), len(frame.Archive))
			assert.True(t, bytes.Equal(tt.metadata, frame.Metadata))
			assert.True(t, bytes.Equal(tt.archive, frame.Archive))
			assert.Zero(t, frame.Trailing)
		})
	}
}

func TestEncodeFrameLayout(t *testing.T) {
	got := EncodeFrame([]byte("ab"), []byte("xyz"))
	want := []byte{2, 0, 0, 0, 'a', 'b', 3, 0, 0, 0, 'x', 'y', 'z'}
	assert.Equal(t, want, got)
}

func TestDecodeFrameMalformed(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"empty body", nil},
		{"short metadata length", []byte{1, 0, 0}},
		{"metadata overrun", []byte{10, 0, 0, 0, 'a', 'b'}},
		{"huge metadata length", []byte{0xff, 0xff, 0xff, 0xff, 'a'}},
		{"missing archive length", []byte{1, 0, 0, 0, 'a'}},
		{"short archive length", []byte{1, 0, 0, 0, 'a', 1, 0}},
		{"archive overrun", []byte{1, 0, 0, 0, 'a', 5, 0, 0, 0, 'x'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := DecodeFrame(tt.body)
			require.Error(t, err)
			assert.Nil(t, frame)
			assert.Equal(t, KindMalformedFrame, KindOf(err))
			assert.True(t, errors.Is(err, ErrShortFrame))
			assert.Equal(t, 400, Status(err))
		})
	}
}

func TestDecodeFrameTrailingBytes(t *testing.T) {
	body := append(EncodeFrame([]byte(`{}`), []byte("abc")), 'x', 'y')

	frame, err := DecodeFrame(body)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), frame.Archive)
	assert.Equal(t, 2, frame.Trailing)

	_, err = DecodeFrameStrict(body)
	require.Error(t, err)
	assert.Equal(t, KindMalformedFrame, KindOf(err))
	assert.True(t, errors.Is(err, ErrTrailingBytes))

	frame, err = DecodeFrameStrict(EncodeFrame([]byte(`{}`), []byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), frame.Archive)
}

func TestDecodeFrameSegmentsDoNotOverlap(t *testing.T) {
	frame, err := DecodeFrame(EncodeFrame([]byte("meta"), []byte("arch")))
	require.NoError(t, err)

	// Appending to the metadata segment must not clobber the archive.
	_ = append(frame.Metadata, 'X')
	assert.Equal(t, []byte("arch"), frame.Archive)
}
