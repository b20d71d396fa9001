package bridge

import (
	"context"
	"sort"
	"sync"

	"github.com/yourusername/canary-bridge/internal/camera"
	"github.com/yourusername/canary-bridge/internal/coordinator"
	"github.com/yourusername/canary-bridge/internal/sensor"
	"go.uber.org/zap"
)

// Config holds the configuration for the Bridge.
type Config struct {
	Coordinator *coordinator.Coordinator
	Transcoder  camera.Transcoder
	Logger      *zap.Logger
	ExtraArgs   string
}

// EntityState is the wire representation of one entity's current state.
type EntityState struct {
	UniqueID    string            `json:"unique_id"`
	Kind        string            `json:"kind"`
	Name        string            `json:"name"`
	Model       string            `json:"model,omitempty"`
	State       any               `json:"state,omitempty"`
	Unit        string            `json:"unit,omitempty"`
	Icon        string            `json:"icon,omitempty"`
	DeviceClass string            `json:"device_class,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`

	// 카메라 전용 필드
	IsRecording     *bool `json:"is_recording,omitempty"`
	MotionDetection *bool `json:"motion_detection_enabled,omitempty"`
}

// Bridge enumerates camera and sensor entities from coordinator snapshots
// and keeps the entity registry. New devices appearing in later snapshots
// are added; existing entities keep their cached state.
type Bridge struct {
	coordinator *coordinator.Coordinator
	logger      *zap.Logger
	cameraCfg   camera.Config

	mutex   sync.RWMutex
	cameras map[string]*camera.Camera
	sensors map[string]*sensor.Sensor
}

// New creates a new Bridge.
func New(config Config) *Bridge {
	b := &Bridge{
		coordinator: config.Coordinator,
		logger:      config.Logger,
		cameras:     make(map[string]*camera.Camera),
		sensors:     make(map[string]*sensor.Sensor),
	}

	b.cameraCfg = camera.Config{
		Source:     config.Coordinator,
		Streams:    config.Coordinator.API(),
		Transcoder: config.Transcoder,
		Logger:     config.Logger,
		ExtraArgs:  config.ExtraArgs,
	}

	return b
}

// Start builds the initial entity set and subscribes to snapshot
// refreshes for late-appearing devices.
func (b *Bridge) Start() error {
	if snapshot := b.coordinator.Data(); snapshot != nil {
		b.buildEntities(snapshot)
	}

	b.coordinator.Subscribe(func(snapshot *coordinator.Snapshot) {
		b.buildEntities(snapshot)
	})

	// 구독이 살아있으므로 카운트는 락 안에서 읽습니다
	b.mutex.RLock()
	cameraCount, sensorCount := len(b.cameras), len(b.sensors)
	b.mutex.RUnlock()

	b.logger.Info("Bridge started",
		zap.Int("cameras", cameraCount),
		zap.Int("sensors", sensorCount),
	)

	return nil
}

// Stop closes all camera sessions.
func (b *Bridge) Stop() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for _, cam := range b.cameras {
		cam.Close()
	}
}

// buildEntities creates one camera per online device and one sensor per
// (online device, metric) pair whose product model supports the metric.
// Devices already registered are skipped.
func (b *Bridge) buildEntities(snapshot *coordinator.Snapshot) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for locationID, location := range snapshot.Locations {
		for _, device := range location.Devices {
			if !device.IsOnline {
				continue
			}

			cam := camera.New(b.cameraCfg, locationID, device)
			if _, exists := b.cameras[cam.UniqueID()]; !exists {
				b.cameras[cam.UniqueID()] = cam
				b.logger.Info("Camera added",
					zap.String("unique_id", cam.UniqueID()),
					zap.String("name", cam.Name()),
				)
			}

			for _, info := range sensor.Types {
				if !info.Supports(device.DeviceType.Name) {
					continue
				}

				s := sensor.New(b.coordinator, info, location, device)
				if _, exists := b.sensors[s.UniqueID()]; !exists {
					b.sensors[s.UniqueID()] = s
					b.logger.Info("Sensor added",
						zap.String("unique_id", s.UniqueID()),
						zap.String("name", s.Name()),
					)
				}
			}
		}
	}
}

// Cameras returns all camera entities, ordered by unique ID.
func (b *Bridge) Cameras() []*camera.Camera {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	cameras := make([]*camera.Camera, 0, len(b.cameras))
	for _, cam := range b.cameras {
		cameras = append(cameras, cam)
	}
	sort.Slice(cameras, func(i, j int) bool {
		return cameras[i].UniqueID() < cameras[j].UniqueID()
	})
	return cameras
}

// GetCamera returns a camera entity by unique ID.
func (b *Bridge) GetCamera(uniqueID string) (*camera.Camera, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	cam, exists := b.cameras[uniqueID]
	return cam, exists
}

// Sensors returns all sensor entities, ordered by unique ID.
func (b *Bridge) Sensors() []*sensor.Sensor {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	sensors := make([]*sensor.Sensor, 0, len(b.sensors))
	for _, s := range b.sensors {
		sensors = append(sensors, s)
	}
	sort.Slice(sensors, func(i, j int) bool {
		return sensors[i].UniqueID() < sensors[j].UniqueID()
	})
	return sensors
}

// GetSensor returns a sensor entity by unique ID.
func (b *Bridge) GetSensor(uniqueID string) (*sensor.Sensor, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	s, exists := b.sensors[uniqueID]
	return s, exists
}

// States returns the current state of every entity.
func (b *Bridge) States() []EntityState {
	states := make([]EntityState, 0)

	for _, cam := range b.Cameras() {
		recording := cam.IsRecording()
		motion := cam.MotionDetectionEnabled()
		states = append(states, EntityState{
			UniqueID:        cam.UniqueID(),
			Kind:            "camera",
			Name:            cam.Name(),
			Model:           cam.Model(),
			IsRecording:     &recording,
			MotionDetection: &motion,
		})
	}

	for _, s := range b.Sensors() {
		states = append(states, EntityState{
			UniqueID:    s.UniqueID(),
			Kind:        "sensor",
			Name:        s.Name(),
			Model:       s.Model(),
			State:       s.NativeValue(),
			Unit:        s.Unit(),
			Icon:        s.Icon(),
			DeviceClass: string(s.DeviceClass()),
			Attributes:  s.ExtraAttributes(),
		})
	}

	return states
}

// ManualSync forces a coordinator refresh.
func (b *Bridge) ManualSync() error {
	return b.coordinator.Refresh(context.Background())
}
