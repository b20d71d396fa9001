package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StreamContentType is the MIME type of the MJPEG output produced by the
// transcoder process.
const StreamContentType = "multipart/x-mixed-replace;boundary=ffserver"

// Stream is a handle to a running MJPEG transcoder process.
type Stream interface {
	// Reader returns the MJPEG byte stream of the process.
	Reader() io.ReadCloser

	// ContentType returns the MIME type of the stream.
	ContentType() string

	// Close terminates the process. Safe to call more than once.
	Close() error
}

// Manager wraps the ffmpeg binary and keeps track of the transcoder
// processes it spawned.
type Manager struct {
	binary  string
	logger  *zap.Logger
	streams map[string]*mjpegStream
	mu      sync.Mutex
}

// NewManager creates a new ffmpeg manager.
func NewManager(binary string, logger *zap.Logger) *Manager {
	if binary == "" {
		binary = "ffmpeg"
	}

	return &Manager{
		binary:  binary,
		logger:  logger,
		streams: make(map[string]*mjpegStream),
	}
}

// GetImage extracts a single frame from the input URL and returns it as
// JPEG bytes. Width/height of 0 keep the source resolution.
func (m *Manager) GetImage(ctx context.Context, input, extraArgs string, width, height int) ([]byte, error) {
	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, strings.Fields(extraArgs)...)
	args = append(args, "-i", input, "-an", "-frames:v", "1")

	if width > 0 && height > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", width, height))
	}

	args = append(args, "-f", "image2", "pipe:1")

	cmd := exec.CommandContext(ctx, m.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("image extraction failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("image extraction produced no output")
	}

	return stdout.Bytes(), nil
}

// OpenMJPEG starts a transcoder process converting the input URL into an
// MJPEG byte stream. The caller must Close the returned stream.
func (m *Manager) OpenMJPEG(input, extraArgs string) (Stream, error) {
	ctx, cancel := context.WithCancel(context.Background())

	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, strings.Fields(extraArgs)...)
	args = append(args, "-i", input, "-an", "-c:v", "mjpeg", "-f", "mpjpeg", "pipe:1")

	cmd := exec.CommandContext(ctx, m.binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start transcoder: %w", err)
	}

	stream := &mjpegStream{
		id:      uuid.New().String(),
		cmd:     cmd,
		stdout:  stdout,
		cancel:  cancel,
		manager: m,
	}

	m.mu.Lock()
	m.streams[stream.id] = stream
	m.mu.Unlock()

	m.logger.Info("Transcoder started",
		zap.String("id", stream.id),
		zap.Int("pid", cmd.Process.Pid),
	)

	return stream, nil
}

// StopAll terminates every running transcoder process.
func (m *Manager) StopAll() {
	m.mu.Lock()
	streams := make([]*mjpegStream, 0, len(m.streams))
	for _, s := range m.streams {
		streams = append(streams, s)
	}
	m.mu.Unlock()

	for _, s := range streams {
		_ = s.Close()
	}
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.streams, id)
	m.mu.Unlock()
}

// mjpegStream is the Manager-backed Stream implementation.
type mjpegStream struct {
	id      string
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	cancel  context.CancelFunc
	manager *Manager
	once    sync.Once
}

func (s *mjpegStream) Reader() io.ReadCloser {
	return s.stdout
}

func (s *mjpegStream) ContentType() string {
	return StreamContentType
}

func (s *mjpegStream) Close() error {
	s.once.Do(func() {
		s.cancel()

		// CommandContext가 프로세스를 종료할 시간을 줍니다
		done := make(chan struct{})
		go func() {
			_ = s.cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			_ = s.cmd.Process.Kill()
		}

		s.manager.remove(s.id)
		s.manager.logger.Info("Transcoder stopped", zap.String("id", s.id))
	})

	return nil
}
