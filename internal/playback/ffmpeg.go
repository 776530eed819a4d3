package playback

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

const (
	sampleRate = 48000
	channels   = 2

	// frameBytes is one 20 ms stereo s16le frame.
	frameBytes = sampleRate / 50 * channels * 2
)

// FFmpeg is a [Decoder] that transcodes any source ffmpeg understands into
// PCM by running it as a subprocess.
type FFmpeg struct {
	// Binary is the ffmpeg executable. Defaults to "ffmpeg" from PATH.
	Binary string
}

// Open implements [Decoder]. Local files are checked before ffmpeg starts;
// the call then waits until ffmpeg produced its first byte of audio, so an
// unreadable source fails here rather than during playback.
func (f *FFmpeg) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	if !isRemote(locator) {
		if _, err := os.Stat(locator); err != nil {
			return nil, fmt.Errorf("ffmpeg: %w", err)
		}
	}

	// The process must outlive ctx, which only bounds the open.
	cmd := exec.Command(f.binary(), ffmpegArgs(locator)...)
	stderr := &tailBuffer{max: 2048}
	cmd.Stderr = stderr
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg: start: %w", err)
	}

	s := &ffmpegStream{cmd: cmd, r: bufio.NewReaderSize(out, frameBytes*4)}

	peeked := make(chan error, 1)
	go func() {
		_, err := s.r.Peek(1)
		peeked <- err
	}()

	select {
	case err := <-peeked:
		if err != nil {
			_ = s.Close()
			if errors.Is(err, io.EOF) {
				err = errors.New("no audio produced")
			}
			return nil, fmt.Errorf("ffmpeg: %s: %w%s", locator, err, stderr.suffix())
		}
	case <-ctx.Done():
		_ = s.Close()
		<-peeked
		return nil, fmt.Errorf("ffmpeg: %s: %w", locator, ctx.Err())
	}
	return s, nil
}

func (f *FFmpeg) binary() string {
	if f.Binary == "" {
		return "ffmpeg"
	}
	return f.Binary
}

// ffmpegArgs builds the command line. Remote sources get ffmpeg's reconnect
// options so a flaky stream does not end playback.
func ffmpegArgs(locator string) []string {
	args := []string{"-hide_banner", "-loglevel", "warning"}
	if isRemote(locator) {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}
	return append(args,
		"-i", locator,
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"pipe:1",
	)
}

func isRemote(locator string) bool {
	return strings.Contains(locator, "://")
}

// ffmpegStream is the PCM output of a running ffmpeg process. Close kills
// the process.
type ffmpegStream struct {
	cmd  *exec.Cmd
	r    *bufio.Reader
	once sync.Once
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func (s *ffmpegStream) Close() error {
	s.once.Do(func() {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	})
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.max; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

// suffix formats the captured output for appending to an error message.
func (t *tailBuffer) suffix() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := strings.TrimSpace(t.buf.String())
	if msg == "" {
		return ""
	}
	return " (" + msg + ")"
}
