package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/h2non/filetype"
	"github.com/rs/zerolog"
	"github.com/taubenschiesser/hardware-monitor/internal/frame"
	"github.com/taubenschiesser/hardware-monitor/pkg/file"
)

// StreamGrabber reads exactly one encoded frame from a stream URL.
type StreamGrabber interface {
	Grab(ctx context.Context, streamURL string) ([]byte, error)
}

// FFmpegGrabber shells out to ffmpeg for a single frame.
type FFmpegGrabber struct {
	Path string
}

// Grab runs ffmpeg until it has written one MJPEG frame to stdout.
func (g FFmpegGrabber) Grab(ctx context.Context, streamURL string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.Path, ffmpegArgs(streamURL)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg: %w", ctx.Err())
		}
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, errors.New("ffmpeg produced no frame")
	}
	return stdout.Bytes(), nil
}

func ffmpegArgs(streamURL string) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if strings.HasPrefix(strings.ToLower(streamURL), "rtsp://") {
		args = append(args, "-rtsp_transport", "tcp")
	}
	return append(args,
		"-i", streamURL,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"pipe:1",
	)
}

// Acquirer captures single frames. Stream captures are serialized across all
// devices because the stream transport is not reentrant.
type Acquirer struct {
	grabber    StreamGrabber
	files      file.FileOperations
	localRoot  string
	timeout    time.Duration
	streamSlot chan struct{}
	logger     zerolog.Logger
}

// NewAcquirer creates an Acquirer. Relative local image paths are resolved
// against localRoot.
func NewAcquirer(grabber StreamGrabber, files file.FileOperations, localRoot string, timeout time.Duration, logger zerolog.Logger) *Acquirer {
	return &Acquirer{
		grabber:    grabber,
		files:      files,
		localRoot:  localRoot,
		timeout:    timeout,
		streamSlot: make(chan struct{}, 1),
		logger:     logger.With().Str("component", "frame_acquisition").Logger(),
	}
}

// Capture returns one decoded frame from src within the configured timeout.
func (a *Acquirer) Capture(ctx context.Context, src Source) (*frame.Frame, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	var (
		data []byte
		err  error
	)
	start := time.Now()
	if src.IsFile() {
		data, err = a.readFile(ctx, src.Path)
	} else {
		data, err = a.grabStream(ctx, src.URL)
	}
	if err != nil {
		return nil, err
	}

	f, err := frame.Decode(data)
	if err != nil {
		return nil, err
	}
	a.logger.Info().
		Str("source", src.String()).
		Int("width", f.Width()).
		Int("height", f.Height()).
		Str("size", humanize.Bytes(uint64(len(data)))).
		Dur("took", time.Since(start)).
		Msg("Frame captured")
	return f, nil
}

func (a *Acquirer) grabStream(ctx context.Context, streamURL string) ([]byte, error) {
	select {
	case a.streamSlot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for stream capture slot: %w", ctx.Err())
	}
	defer func() { <-a.streamSlot }()

	return a.grabber.Grab(ctx, streamURL)
}

// ResolvePath makes a configured local image path absolute.
func (a *Acquirer) ResolvePath(path string) string {
	if filepath.IsAbs(path) || a.localRoot == "" {
		return path
	}
	return filepath.Join(a.localRoot, path)
}

func (a *Acquirer) readFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resolved := a.ResolvePath(path)
	exists, err := a.files.IsFileExists(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to stat local image %s: %w", resolved, err)
	}
	if !exists {
		return nil, fmt.Errorf("local image %s not found", resolved)
	}

	data, err := a.files.ReadFileRaw(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read local image %s: %w", resolved, err)
	}
	if !filetype.IsImage(data) {
		kind, _ := filetype.Match(data)
		return nil, fmt.Errorf("local image %s is not an image (detected %q)", resolved, kind.MIME.Value)
	}
	return data, nil
}
