package playback

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestFFmpegArgs(t *testing.T) {
	t.Parallel()

	local := ffmpegArgs("assets/stream.mp3")
	if slices.Contains(local, "-reconnect") {
		t.Error("local file should not get reconnect options")
	}
	want := []string{"-i", "assets/stream.mp3", "-vn", "-f", "s16le", "-ar", "48000", "-ac", "2", "pipe:1"}
	if got := local[len(local)-len(want):]; !slices.Equal(got, want) {
		t.Errorf("args tail = %v, want %v", got, want)
	}

	remote := ffmpegArgs("https://example.com/radio")
	if !slices.Contains(remote, "-reconnect") {
		t.Error("remote source should get reconnect options")
	}
}

func TestFFmpeg_MissingLocalFile(t *testing.T) {
	t.Parallel()

	f := &FFmpeg{Binary: "/does/not/matter"}
	_, err := f.Open(context.Background(), filepath.Join(t.TempDir(), "nope.mp3"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("error = %v, want not-exist", err)
	}
}

func TestFFmpeg_MissingBinary(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(path, []byte("id3"), 0o600); err != nil {
		t.Fatal(err)
	}

	f := &FFmpeg{Binary: filepath.Join(t.TempDir(), "no-ffmpeg")}
	_, err := f.Open(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "start") {
		t.Fatalf("error = %v, want start failure", err)
	}
}

func TestTailBuffer(t *testing.T) {
	t.Parallel()

	tb := &tailBuffer{max: 8}
	if tb.suffix() != "" {
		t.Error("empty buffer should produce no suffix")
	}
	_, _ = tb.Write([]byte("0123456789"))
	_, _ = tb.Write([]byte("ab"))
	if got := tb.suffix(); got != " (456789ab)" {
		t.Errorf("suffix = %q, want %q", got, " (456789ab)")
	}
}
