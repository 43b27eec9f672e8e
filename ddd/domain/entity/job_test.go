package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"jencoder/ddd/domain/vo"
	"jencoder/pkg/config"
)

func testPaths() *config.PathsConfig {
	return &config.PathsConfig{
		Recording:       "/opt/recordings",
		RecordingBackup: "/opt/recordings_backup",
		Archive:         "/opt/archive/clients",
		Download:        "/opt/downloads",
		Export:          "/opt/export",
		PublicVideoBase: "/video/clients",
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean", "show_123.mp4", "show_123.mp4"},
		{"path_traversal", "../../etc/passwd", "....etcpasswd"},
		{"spaces_and_symbols", "my show (final)!.mp4", "myshowfinal.mp4"},
		{"shell_metacharacters", "a;rm -rf $HOME.ts", "armrfHOME.ts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestJobPaths(t *testing.T) {
	paths := testPaths()

	recording := NewRecordingJob(7, 3, 55, "t", "a", "al", 0, 0, "rec_7_3.mp4", "show55.mp4", false, "J000001")
	assert.Equal(t, "/opt/recordings/7/rec_7_3.mp4", recording.InputPath(paths))
	assert.Equal(t, "/opt/recordings_backup/rec_7_3.mp4", recording.BackupInputPath(paths))
	assert.Equal(t, "/opt/archive/clients/7/show55", recording.OutputPathNoExt(paths))
	assert.Equal(t, "/opt/export/rec_7_3.mp4", recording.ExportPath(paths))

	archive := NewArchiveJob(7, 3, 56, "t", "a", "al", 30, 90, "show55.mp4", "clip56.mp4", false, "J000002")
	assert.Equal(t, "/opt/archive/clients/7/show55.mp4", archive.InputPath(paths))
	assert.Equal(t, "/opt/archive/clients/7/show55", archive.InputPathNoExt(paths))
	assert.Equal(t, "/opt/archive/clients/7/clip56", archive.OutputPathNoExt(paths))
	assert.Equal(t, 60, archive.DurationSeconds())

	in := NewInJob(7, 3, 12, "intro.mp4", "Encode", "J000003")
	assert.Equal(t, vo.InOutModeEncode, in.InOutMode)
	assert.Equal(t, "/opt/recordings/7/intro.mp4", in.InputPath(paths))
	assert.Equal(t, "/opt/archive/clients/7/inout/3/12", in.OutputPathNoExt(paths))

	download := NewDownloadJob(7, 3, 99, "show55.mp4", "J000004")
	assert.Equal(t, "show55.mp4", download.OutputFilename)
	assert.Equal(t, "/opt/archive/clients/7/show55", download.InputPathNoExt(paths))
	assert.Equal(t, "/opt/downloads", download.OutputPathNoExt(paths))
}

func TestJobConstructorsSanitizeFilenames(t *testing.T) {
	job := NewRecordingJob(7, 3, 55, "t", "a", "al", 0, 0, "../in put.mp4", "out;put.mp4", false, "J000001")
	assert.Equal(t, "..input.mp4", job.InputFilename)
	assert.Equal(t, "output.mp4", job.OutputFilename)
}

func TestJobKindClassification(t *testing.T) {
	assert.True(t, vo.JobKindArchive.IsArchiveOnly())
	assert.True(t, vo.JobKindDownload.IsArchiveOnly())
	assert.False(t, vo.JobKindRecording.IsArchiveOnly())
	assert.False(t, vo.JobKindIn.IsArchiveOnly())
	assert.False(t, vo.JobKindOut.IsArchiveOnly())
}
