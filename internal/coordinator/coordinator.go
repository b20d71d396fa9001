package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourusername/canary-bridge/internal/canary"
	"go.uber.org/zap"
)

// API is the slice of the Canary client the coordinator and the entity
// adapters consume.
type API interface {
	GetLocations(ctx context.Context) ([]canary.Location, error)
	GetLatestReadings(ctx context.Context, deviceID int64) ([]canary.Reading, error)
	GetEntries(ctx context.Context, locationID int64) ([]canary.Entry, error)
	GetLiveStreamSession(ctx context.Context, device canary.Device) (*canary.LiveStreamSession, error)
}

// Snapshot is one complete view of the vendor cloud state. A snapshot is
// never mutated after it is published; each refresh builds a new one and
// swaps the pointer.
type Snapshot struct {
	Locations map[int64]canary.Location
	Entries   map[int64][]canary.Entry
	Readings  map[int64][]canary.Reading
}

// Config holds the configuration for the Coordinator.
type Config struct {
	API            API
	Logger         *zap.Logger
	PollInterval   time.Duration
	RefreshTimeout time.Duration
}

// Coordinator periodically pulls locations, entries and readings from the
// Canary API and exposes the last successful result as an immutable
// snapshot. Entity adapters read Data() on demand; a failed refresh keeps
// the previous snapshot.
type Coordinator struct {
	api      API
	logger   *zap.Logger
	interval time.Duration
	timeout  time.Duration

	snapshot atomic.Pointer[Snapshot]

	mu          sync.Mutex
	subscribers []func(*Snapshot)

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Coordinator.
func New(config Config) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())

	interval := config.PollInterval
	if interval == 0 {
		interval = 30 * time.Second
	}
	timeout := config.RefreshTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Coordinator{
		api:      config.API,
		logger:   config.Logger,
		interval: interval,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// API returns the underlying vendor client, used by the camera adapter for
// live stream sessions.
func (c *Coordinator) API() API {
	return c.api
}

// Data returns the latest snapshot, or nil before the first successful
// refresh.
func (c *Coordinator) Data() *Snapshot {
	return c.snapshot.Load()
}

// Subscribe registers a callback invoked after every successful refresh.
func (c *Coordinator) Subscribe(fn func(*Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Start performs an initial refresh and launches the polling loop.
func (c *Coordinator) Start() error {
	if err := c.Refresh(c.ctx); err != nil {
		return fmt.Errorf("initial refresh failed: %w", err)
	}

	go c.pollLoop()

	c.logger.Info("Coordinator started",
		zap.Duration("poll_interval", c.interval),
	)

	return nil
}

// Stop terminates the polling loop.
func (c *Coordinator) Stop() {
	c.cancel()
}

func (c *Coordinator) pollLoop() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(c.ctx); err != nil {
				// 이전 스냅샷을 유지하고 다음 주기에 재시도합니다
				c.logger.Error("Snapshot refresh failed", zap.Error(err))
			}
		}
	}
}

// Refresh fetches a fresh snapshot and publishes it atomically.
func (c *Coordinator) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	snapshot, err := c.fetch(ctx)
	if err != nil {
		return err
	}

	c.snapshot.Store(snapshot)

	c.mu.Lock()
	subscribers := make([]func(*Snapshot), len(c.subscribers))
	copy(subscribers, c.subscribers)
	c.mu.Unlock()

	for _, fn := range subscribers {
		fn(snapshot)
	}

	return nil
}

func (c *Coordinator) fetch(ctx context.Context) (*Snapshot, error) {
	locations, err := c.api.GetLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("invalid response from API: %w", err)
	}

	snapshot := &Snapshot{
		Locations: make(map[int64]canary.Location, len(locations)),
		Entries:   make(map[int64][]canary.Entry),
		Readings:  make(map[int64][]canary.Reading),
	}

	for _, location := range locations {
		snapshot.Locations[location.ID] = location

		for _, device := range location.Devices {
			if !device.IsOnline {
				continue
			}

			readings, err := c.api.GetLatestReadings(ctx, device.ID)
			if err != nil {
				return nil, fmt.Errorf("invalid response from API: %w", err)
			}
			snapshot.Readings[device.ID] = readings
		}

		entries, err := c.api.GetEntries(ctx, location.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid response from API: %w", err)
		}
		groupEntriesByDevice(snapshot, location, entries)
	}

	return snapshot, nil
}

// groupEntriesByDevice assigns each entry of a location to the devices
// whose UUIDs it references, preserving the API's newest-first order.
func groupEntriesByDevice(snapshot *Snapshot, location canary.Location, entries []canary.Entry) {
	for _, device := range location.Devices {
		deviceEntries := make([]canary.Entry, 0)
		for _, entry := range entries {
			for _, uuid := range entry.DeviceUUIDs {
				if device.UUID == uuid {
					deviceEntries = append(deviceEntries, entry)
					break
				}
			}
		}
		snapshot.Entries[device.ID] = deviceEntries
	}
}
