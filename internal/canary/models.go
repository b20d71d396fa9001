package canary

import "time"

// SensorType identifies a reading kind as named by the Canary API.
type SensorType string

const (
	SensorTypeTemperature SensorType = "temperature"
	SensorTypeHumidity    SensorType = "humidity"
	SensorTypeAirQuality  SensorType = "air_quality"
	SensorTypeWifi        SensorType = "wifi"
	SensorTypeBattery     SensorType = "battery"
)

// Product model names as referred to by the Canary API.
// Note: if Canary renames a product (which they have done), these need
// updating or the matching sensors stop being created.
const (
	ProductCanaryPro  = "Canary Pro"
	ProductCanaryFlex = "Canary Flex"
	ProductCanaryView = "Canary View"
)

// DeviceType describes the product model of a device.
type DeviceType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Device is a single Canary device inside a location.
type Device struct {
	ID         int64      `json:"id"`
	UUID       string     `json:"uuid"`
	Name       string     `json:"name"`
	IsOnline   bool       `json:"online"`
	DeviceType DeviceType `json:"device_type"`
}

// Location groups devices under one address and carries the arm state.
type Location struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	IsRecording bool     `json:"is_recording"`
	Devices     []Device `json:"devices"`
}

// Thumbnail is a still image belonging to an entry.
type Thumbnail struct {
	ImageURL string `json:"image_url"`
}

// Entry is a recorded motion/video event. DeviceUUIDs lists the devices
// that captured it; the API returns entries newest first.
type Entry struct {
	ID          int64       `json:"id"`
	StartTime   time.Time   `json:"start_time"`
	Thumbnails  []Thumbnail `json:"thumbnails"`
	DeviceUUIDs []string    `json:"device_uuids"`
}

// Reading is the latest value of one sensor on one device.
type Reading struct {
	SensorType SensorType `json:"sensor_type"`
	Value      float64    `json:"value"`
}
