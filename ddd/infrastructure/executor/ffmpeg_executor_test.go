package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProbeOutput = `Input #0, mpegts, from '0000.ts':
  Duration: 01:02:03.45, start: 1.400000, bitrate: 1364 kb/s
  Program 1
    Stream #0:0[0x100]: Video: h264 (Main) ([27][0][0][0] / 0x001B), yuv420p, 1280x720, 29.97 fps
    Stream #0:1[0x101]: Audio: aac (LC) ([15][0][0][0] / 0x000F), 44100 Hz, stereo, fltp, 127 kb/s
    Stream #0:2[0x102]: Audio: aac (LC) ([15][0][0][0] / 0x000F), 44100 Hz, stereo, fltp, 64 kb/s
`

func TestParseProbeOutput(t *testing.T) {
	probe, err := parseProbeOutput(sampleProbeOutput)
	require.NoError(t, err)

	assert.Equal(t, 3723, probe.DurationSeconds)
	assert.Equal(t, 1364000, probe.BitrateBps)
	// 只取第一条视频流和第一条音频流
	assert.Equal(t, []string{"0:0", "0:1"}, probe.Streams)
}

func TestParseProbeOutputAudioOnly(t *testing.T) {
	output := `Input #0, mp3, from 'show.mp3':
  Duration: 00:30:00.12, start: 0.000000, bitrate: 64 kb/s
    Stream #0:0: Audio: mp3, 22050 Hz, mono, fltp, 64 kb/s
`
	probe, err := parseProbeOutput(output)
	require.NoError(t, err)

	assert.Equal(t, 1800, probe.DurationSeconds)
	assert.Equal(t, 64000, probe.BitrateBps)
	assert.Equal(t, []string{"0:0"}, probe.Streams)
}

func TestParseProbeOutputNoDuration(t *testing.T) {
	_, err := parseProbeOutput("some unrelated ffmpeg banner text")
	assert.Error(t, err)
}

func TestSecondsToFFmpeg(t *testing.T) {
	tests := []struct {
		seconds  int
		expected string
	}{
		{0, "00:00:00.0"},
		{59, "00:00:59.0"},
		{90, "00:01:30.0"},
		{3723, "01:02:03.0"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, secondsToFFmpeg(tt.seconds))
	}
}
