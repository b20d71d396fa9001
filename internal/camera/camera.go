package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/yourusername/canary-bridge/internal/canary"
	"github.com/yourusername/canary-bridge/internal/coordinator"
	"github.com/yourusername/canary-bridge/internal/ffmpeg"
	"go.uber.org/zap"
)

const (
	// minTimeBetweenSessionRenew는 라이브 세션 갱신 최소 간격
	minTimeBetweenSessionRenew = 90 * time.Second

	// imageFetchTimeout은 썸네일 HTTP 요청 타임아웃
	imageFetchTimeout = 10 * time.Second
)

// SnapshotSource provides the latest coordinator snapshot.
type SnapshotSource interface {
	Data() *coordinator.Snapshot
}

// StreamSource issues live stream sessions for a device.
type StreamSource interface {
	GetLiveStreamSession(ctx context.Context, device canary.Device) (*canary.LiveStreamSession, error)
}

// Transcoder is the slice of the ffmpeg helper the camera consumes.
type Transcoder interface {
	GetImage(ctx context.Context, input, extraArgs string, width, height int) ([]byte, error)
	OpenMJPEG(input, extraArgs string) (ffmpeg.Stream, error)
}

// Config holds the dependencies of a Camera.
type Config struct {
	Source     SnapshotSource
	Streams    StreamSource
	Transcoder Transcoder
	Logger     *zap.Logger
	ExtraArgs  string
}

// Camera exposes one Canary device as a camera entity. Still images are
// resolved from the latest entry thumbnail when possible, falling back to
// a frame grabbed from the live stream; the MJPEG stream is proxied from
// a transcoder child process.
type Camera struct {
	source     SnapshotSource
	streams    StreamSource
	transcoder Transcoder
	logger     *zap.Logger
	extraArgs  string

	locationID int64
	device     canary.Device
	httpClient *http.Client

	// 이미지/세션 캐시. 어댑터 자신만 변경합니다.
	mu            sync.Mutex
	lastEvent     *canary.Entry
	lastImageID   *int64
	image         []byte
	imageURL      string
	session       *canary.LiveStreamSession
	liveStreamURL string

	renewMu   sync.Mutex
	lastRenew time.Time
	now       func() time.Time
}

// New creates a camera entity for a device.
func New(config Config, locationID int64, device canary.Device) *Camera {
	return &Camera{
		source:     config.Source,
		streams:    config.Streams,
		transcoder: config.Transcoder,
		logger:     config.Logger.With(zap.String("camera", device.Name)),
		extraArgs:  config.ExtraArgs,
		locationID: locationID,
		device:     device,
		httpClient: &http.Client{Timeout: imageFetchTimeout},
		now:        time.Now,
	}
}

func (c *Camera) Name() string     { return c.device.Name }
func (c *Camera) UniqueID() string { return fmt.Sprintf("%d", c.device.ID) }
func (c *Camera) DeviceID() int64  { return c.device.ID }
func (c *Camera) Model() string    { return c.device.DeviceType.Name }

// Location returns the owning location from the latest snapshot, or nil
// when it is absent.
func (c *Camera) Location() *canary.Location {
	snapshot := c.source.Data()
	if snapshot == nil {
		return nil
	}

	location, ok := snapshot.Locations[c.locationID]
	if !ok {
		return nil
	}

	return &location
}

// IsRecording reports whether the owning location is in recording mode.
func (c *Camera) IsRecording() bool {
	location := c.Location()
	return location != nil && location.IsRecording
}

// MotionDetectionEnabled reports the inverse of the location's recording
// mode: detection is considered enabled exactly when recording is off.
func (c *Camera) MotionDetectionEnabled() bool {
	return !c.IsRecording()
}

// Image returns a still image for the camera, or nil when no strategy
// yields one. Strategies in order: cached/fetched entry thumbnail, then a
// frame from the live stream. Errors are logged, never returned.
func (c *Camera) Image(ctx context.Context, width, height int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checkForNewImage()

	if c.image == nil && c.imageURL != "" {
		c.logger.Debug("Getting the latest entry image")
		c.fetchEntryImage(ctx)
	}

	if c.image == nil {
		// 썸네일이 없으면 라이브 뷰에서 프레임을 가져옵니다
		c.logger.Debug("Grabbing a live view image")
		c.renewLiveStreamSession(ctx)

		if c.liveStreamURL == "" {
			return nil
		}

		image, err := c.transcoder.GetImage(ctx, c.liveStreamURL, c.extraArgs, width, height)
		if err != nil {
			c.logger.Error("Failed to grab live view image", zap.Error(err))
		} else if len(image) > 0 {
			c.image = image
		}
	}

	return c.image
}

// checkForNewImage re-derives the last event from the snapshot and clears
// the cached image when a newer entry appeared. A missing device key
// leaves the state untouched. Caller holds c.mu.
func (c *Camera) checkForNewImage() {
	snapshot := c.source.Data()
	if snapshot == nil {
		return
	}

	entries, ok := snapshot.Entries[c.device.ID]
	if !ok {
		return
	}

	if c.lastEvent == nil {
		if len(entries) == 0 {
			return
		}
		c.lastEvent = &entries[0]
	} else if len(entries) > 0 && c.lastEvent.ID != entries[0].ID {
		c.lastEvent = &entries[0]
	}

	if c.lastImageID == nil || *c.lastImageID != c.lastEvent.ID {
		c.image = nil
	}

	if len(c.lastEvent.Thumbnails) > 0 {
		c.imageURL = c.lastEvent.Thumbnails[0].ImageURL
	} else {
		c.imageURL = ""
	}
}

// fetchEntryImage downloads the thumbnail of the last event and caches it
// keyed to that entry's ID. Failures only log. Caller holds c.mu.
func (c *Camera) fetchEntryImage(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.imageURL, nil)
	if err != nil {
		c.logger.Error("Invalid entry image URL", zap.Error(err))
		return
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			c.logger.Error("Timeout getting camera image")
		} else {
			c.logger.Error("Error getting new camera image", zap.Error(err))
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Error getting new camera image",
			zap.Int("status", resp.StatusCode),
		)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("Error reading camera image", zap.Error(err))
		return
	}

	c.image = body
	if c.lastEvent != nil {
		id := c.lastEvent.ID
		c.lastImageID = &id
	} else {
		c.lastImageID = nil
	}
}

// renewLiveStreamSession requests a fresh live stream session, rate
// limited to one success per 90 seconds. Attempts inside the window are
// no-ops keeping the cached stream URL; a failed renewal does not consume
// the window, so the next attempt retries immediately.
func (c *Camera) renewLiveStreamSession(ctx context.Context) {
	c.renewMu.Lock()
	defer c.renewMu.Unlock()

	if c.now().Sub(c.lastRenew) < minTimeBetweenSessionRenew {
		return
	}

	session, err := c.streams.GetLiveStreamSession(ctx, c.device)
	if err != nil {
		c.logger.Error("Failed to renew live stream session", zap.Error(err))
		return
	}
	c.lastRenew = c.now()

	session.StartRenewSession()

	if c.session != nil {
		c.session.Stop()
	}
	c.session = session
	c.liveStreamURL = session.LiveStreamURL
}

// ServeMJPEG proxies a live MJPEG stream from a transcoder child process
// to the HTTP client. The process is closed whether the copy completes or
// the client disconnects.
func (c *Camera) ServeMJPEG(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.renewLiveStreamSession(r.Context())
	liveURL := c.liveStreamURL
	c.mu.Unlock()

	if liveURL == "" {
		http.Error(w, "live stream unavailable", http.StatusServiceUnavailable)
		return
	}

	stream, err := c.transcoder.OpenMJPEG(liveURL, c.extraArgs)
	if err != nil {
		c.logger.Error("Failed to open MJPEG stream", zap.Error(err))
		http.Error(w, "live stream unavailable", http.StatusServiceUnavailable)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", stream.ContentType())
	w.WriteHeader(http.StatusOK)

	c.proxyStream(r.Context(), w, stream.Reader())
}

// proxyStream copies the transcoder output to the response writer until
// the stream ends or the client goes away.
func (c *Camera) proxyStream(ctx context.Context, w http.ResponseWriter, reader io.Reader) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)

	for {
		if ctx.Err() != nil {
			return
		}

		n, err := reader.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				c.logger.Debug("MJPEG stream ended", zap.Error(err))
			}
			return
		}
	}
}

// Close stops the session keep-alive, if any.
func (c *Camera) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.session.Stop()
		c.session = nil
	}
}
