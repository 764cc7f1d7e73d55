package media

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAudioStream(t *testing.T) {
	tests := []struct {
		name    string
		streams []ProbeStream
		want    bool
	}{
		{
			name: "video and audio",
			streams: []ProbeStream{
				{Index: 0, CodecType: "video", CodecName: "h264"},
				{Index: 1, CodecType: "audio", CodecName: "aac"},
			},
			want: true,
		},
		{
			name: "silent video",
			streams: []ProbeStream{
				{Index: 0, CodecType: "video", CodecName: "h264"},
			},
			want: false,
		},
		{
			name: "subtitle only counts as no audio",
			streams: []ProbeStream{
				{Index: 0, CodecType: "video"},
				{Index: 1, CodecType: "subtitle"},
			},
			want: false,
		},
		{
			name:    "no streams",
			streams: nil,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &ProbeResult{Streams: tt.streams}
			assert.Equal(t, tt.want, r.HasAudioStream())
		})
	}
}

func TestExtractionErrorUnwrap(t *testing.T) {
	err := &ExtractionError{Op: "extract", Path: "clip.mp4", Err: ErrNoAudioStream}

	assert.True(t, errors.Is(err, ErrNoAudioStream))
	assert.Contains(t, err.Error(), "clip.mp4")
	assert.Contains(t, err.Error(), "no audio stream")
}
