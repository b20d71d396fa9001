package sensor

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/yourusername/canary-bridge/internal/canary"
	"github.com/yourusername/canary-bridge/internal/coordinator"
)

// valuePrecision은 센서 값 반올림 자릿수
const valuePrecision = 2

// DeviceClass categorizes a sensor for the consuming platform.
type DeviceClass string

const (
	DeviceClassTemperature    DeviceClass = "temperature"
	DeviceClassHumidity       DeviceClass = "humidity"
	DeviceClassSignalStrength DeviceClass = "signal_strength"
	DeviceClassBattery        DeviceClass = "battery"
	DeviceClassTimestamp      DeviceClass = "timestamp"
)

// Air quality bands exposed as an extra attribute. The band boundaries
// mirror the vendor documentation.
const (
	AttrAirQuality            = "air_quality"
	AirQualityNormal          = "normal"
	AirQualityAbnormal        = "abnormal"
	AirQualityVeryAbnormal    = "very_abnormal"
	airQualityVeryAbnormalMax = 0.40
	airQualityAbnormalMax     = 0.59
)

type dataKind int

const (
	kindReading dataKind = iota
	kindEntry
)

// TypeInfo describes one sensor metric: its presentation metadata and the
// product models that report it.
type TypeInfo struct {
	Metric      string
	Unit        string
	Icon        string
	DeviceClass DeviceClass
	Models      []string

	kind        dataKind
	readingType canary.SensorType
}

// Supports reports whether the given product model carries this metric.
func (t TypeInfo) Supports(model string) bool {
	return slices.Contains(t.Models, model)
}

// Types is the static table of supported sensor metrics.
var Types = []TypeInfo{
	{
		Metric:      "temperature",
		Unit:        "°C",
		DeviceClass: DeviceClassTemperature,
		Models:      []string{canary.ProductCanaryPro},
		kind:        kindReading,
		readingType: canary.SensorTypeTemperature,
	},
	{
		Metric:      "humidity",
		Unit:        "%",
		DeviceClass: DeviceClassHumidity,
		Models:      []string{canary.ProductCanaryPro},
		kind:        kindReading,
		readingType: canary.SensorTypeHumidity,
	},
	{
		Metric:      "air_quality",
		Icon:        "mdi:weather-windy",
		Models:      []string{canary.ProductCanaryPro},
		kind:        kindReading,
		readingType: canary.SensorTypeAirQuality,
	},
	{
		Metric:      "wifi",
		Unit:        "dBm",
		DeviceClass: DeviceClassSignalStrength,
		Models:      []string{canary.ProductCanaryPro, canary.ProductCanaryFlex, canary.ProductCanaryView},
		kind:        kindReading,
		readingType: canary.SensorTypeWifi,
	},
	{
		Metric:      "battery",
		Unit:        "%",
		DeviceClass: DeviceClassBattery,
		Models:      []string{canary.ProductCanaryFlex},
		kind:        kindReading,
		readingType: canary.SensorTypeBattery,
	},
	{
		Metric:      "last_entry_date",
		Icon:        "mdi:run-fast",
		DeviceClass: DeviceClassTimestamp,
		Models:      []string{canary.ProductCanaryPro, canary.ProductCanaryFlex},
		kind:        kindEntry,
	},
	{
		Metric: "entries_captured_today",
		Icon:   "mdi:file-video",
		Models: []string{canary.ProductCanaryPro, canary.ProductCanaryFlex, canary.ProductCanaryView},
		kind:   kindEntry,
	},
}

// SnapshotSource provides the latest coordinator snapshot.
type SnapshotSource interface {
	Data() *coordinator.Snapshot
}

// Sensor exposes one scalar value for one (device, metric) pair, derived
// from the coordinator snapshot on every read.
type Sensor struct {
	source   SnapshotSource
	info     TypeInfo
	deviceID int64

	name       string
	uniqueID   string
	deviceName string
	model      string
}

// New creates a sensor for a device and metric.
func New(source SnapshotSource, info TypeInfo, location canary.Location, device canary.Device) *Sensor {
	return &Sensor{
		source:     source,
		info:       info,
		deviceID:   device.ID,
		name:       fmt.Sprintf("%s %s %s", location.Name, device.Name, titleCase(info.Metric)),
		uniqueID:   fmt.Sprintf("%d_%s", device.ID, info.Metric),
		deviceName: device.Name,
		model:      device.DeviceType.Name,
	}
}

func (s *Sensor) Name() string             { return s.name }
func (s *Sensor) UniqueID() string         { return s.uniqueID }
func (s *Sensor) DeviceID() int64          { return s.deviceID }
func (s *Sensor) DeviceName() string       { return s.deviceName }
func (s *Sensor) Model() string            { return s.model }
func (s *Sensor) Metric() string           { return s.info.Metric }
func (s *Sensor) Unit() string             { return s.info.Unit }
func (s *Sensor) Icon() string             { return s.info.Icon }
func (s *Sensor) DeviceClass() DeviceClass { return s.info.DeviceClass }

// Reading returns this device's latest value for a reading-type metric,
// rounded to two decimals, or nil when the device or metric is absent
// from the snapshot.
func (s *Sensor) Reading() *float64 {
	snapshot := s.source.Data()
	if snapshot == nil {
		return nil
	}

	readings, ok := snapshot.Readings[s.deviceID]
	if !ok {
		return nil
	}

	for _, reading := range readings {
		if reading.SensorType == s.info.readingType {
			value := roundValue(reading.Value)
			return &value
		}
	}

	return nil
}

// NativeValue returns the current state of the sensor: a *float64 for
// reading metrics, an int for entries_captured_today, a time.Time for
// last_entry_date, or nil when the value is unavailable.
func (s *Sensor) NativeValue() any {
	switch s.info.kind {
	case kindReading:
		if value := s.Reading(); value != nil {
			return *value
		}
		return nil
	case kindEntry:
		snapshot := s.source.Data()
		if snapshot == nil {
			return nil
		}

		entries, ok := snapshot.Entries[s.deviceID]
		if !ok {
			return nil
		}

		switch s.info.Metric {
		case "entries_captured_today":
			return len(entries)
		case "last_entry_date":
			if len(entries) == 0 {
				return nil
			}
			return entries[0].StartTime
		}
	}

	return nil
}

// ExtraAttributes returns the air quality band for the air_quality metric,
// nil for every other metric or when the reading is absent.
func (s *Sensor) ExtraAttributes() map[string]string {
	if s.info.Metric != AttrAirQuality {
		return nil
	}

	reading := s.Reading()
	if reading == nil {
		return nil
	}

	band := AirQualityNormal
	if *reading <= airQualityVeryAbnormalMax {
		band = AirQualityVeryAbnormal
	} else if *reading <= airQualityAbnormalMax {
		band = AirQualityAbnormal
	}

	return map[string]string{AttrAirQuality: band}
}

func roundValue(v float64) float64 {
	shift := math.Pow10(valuePrecision)
	return math.Round(v*shift) / shift
}

// titleCase turns "entries_captured_today" into "Entries Captured Today".
func titleCase(metric string) string {
	words := strings.Split(metric, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
