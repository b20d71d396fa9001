package bridge

import (
	"github.com/yourusername/canary-bridge/internal/camera"
	"github.com/yourusername/canary-bridge/internal/sensor"
)

// Provider는 플랫폼 표면(HTTP, MQTT, WebSocket)이 소비하는 엔티티 조회 인터페이스입니다
type Provider interface {
	// Cameras returns all camera entities.
	Cameras() []*camera.Camera

	// GetCamera returns a camera entity by unique ID.
	GetCamera(uniqueID string) (*camera.Camera, bool)

	// Sensors returns all sensor entities.
	Sensors() []*sensor.Sensor

	// GetSensor returns a sensor entity by unique ID.
	GetSensor(uniqueID string) (*sensor.Sensor, bool)

	// States returns the current state of every entity.
	States() []EntityState

	// ManualSync forces a coordinator refresh.
	ManualSync() error
}
