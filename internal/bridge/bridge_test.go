package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/canary-bridge/internal/canary"
	"github.com/yourusername/canary-bridge/internal/coordinator"
	"github.com/yourusername/canary-bridge/internal/ffmpeg"
	"go.uber.org/zap"
)

type fakeAPI struct {
	locations []canary.Location
	entries   map[int64][]canary.Entry
	readings  map[int64][]canary.Reading
}

func (f *fakeAPI) GetLocations(context.Context) ([]canary.Location, error) {
	return f.locations, nil
}

func (f *fakeAPI) GetLatestReadings(_ context.Context, deviceID int64) ([]canary.Reading, error) {
	return f.readings[deviceID], nil
}

func (f *fakeAPI) GetEntries(_ context.Context, locationID int64) ([]canary.Entry, error) {
	return f.entries[locationID], nil
}

func (f *fakeAPI) GetLiveStreamSession(context.Context, canary.Device) (*canary.LiveStreamSession, error) {
	return nil, errors.New("not implemented")
}

type fakeTranscoder struct{}

func (fakeTranscoder) GetImage(context.Context, string, string, int, int) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (fakeTranscoder) OpenMJPEG(string, string) (ffmpeg.Stream, error) {
	return nil, errors.New("not implemented")
}

func newTestBridge(t *testing.T, api *fakeAPI) *Bridge {
	t.Helper()

	coord := coordinator.New(coordinator.Config{
		API:          api,
		Logger:       zap.NewNop(),
		PollInterval: time.Hour,
	})
	require.NoError(t, coord.Refresh(context.Background()))

	b := New(Config{
		Coordinator: coord,
		Transcoder:  fakeTranscoder{},
		Logger:      zap.NewNop(),
		ExtraArgs:   "-pred 1",
	})
	require.NoError(t, b.Start())

	return b
}

func TestEntityEnumeration(t *testing.T) {
	api := &fakeAPI{
		locations: []canary.Location{
			{ID: 1, Name: "Home", Devices: []canary.Device{
				{ID: 20, UUID: "dev-20", Name: "Dining Room", IsOnline: true,
					DeviceType: canary.DeviceType{Name: canary.ProductCanaryPro}},
				{ID: 21, UUID: "dev-21", Name: "Front Yard", IsOnline: true,
					DeviceType: canary.DeviceType{Name: canary.ProductCanaryFlex}},
				{ID: 22, UUID: "dev-22", Name: "Garage", IsOnline: false,
					DeviceType: canary.DeviceType{Name: canary.ProductCanaryPro}},
			}},
		},
	}

	b := newTestBridge(t, api)

	// 오프라인 장치는 엔티티를 만들지 않습니다
	cameras := b.Cameras()
	require.Len(t, cameras, 2)
	assert.Equal(t, "20", cameras[0].UniqueID())
	assert.Equal(t, "21", cameras[1].UniqueID())

	proMetrics := map[string]bool{}
	flexMetrics := map[string]bool{}
	for _, s := range b.Sensors() {
		switch s.DeviceID() {
		case 20:
			proMetrics[s.Metric()] = true
		case 21:
			flexMetrics[s.Metric()] = true
		case 22:
			t.Fatalf("offline device got sensor %s", s.UniqueID())
		}
	}

	// Pro: temperature, humidity, air_quality, wifi, last_entry_date,
	// entries_captured_today — battery는 지원 안 함
	assert.Len(t, proMetrics, 6)
	assert.False(t, proMetrics["battery"])

	// Flex: wifi, battery, last_entry_date, entries_captured_today
	assert.Len(t, flexMetrics, 4)
	assert.True(t, flexMetrics["battery"])
	assert.False(t, flexMetrics["temperature"])
}

func TestUnknownModelGetsCameraOnly(t *testing.T) {
	api := &fakeAPI{
		locations: []canary.Location{
			{ID: 1, Name: "Home", Devices: []canary.Device{
				{ID: 30, UUID: "dev-30", Name: "Attic", IsOnline: true,
					DeviceType: canary.DeviceType{Name: "Canary Unknown"}},
			}},
		},
	}

	b := newTestBridge(t, api)

	assert.Len(t, b.Cameras(), 1)
	assert.Empty(t, b.Sensors())
}

func TestStates(t *testing.T) {
	api := &fakeAPI{
		locations: []canary.Location{
			{ID: 1, Name: "Home", IsRecording: true, Devices: []canary.Device{
				{ID: 20, UUID: "dev-20", Name: "Dining Room", IsOnline: true,
					DeviceType: canary.DeviceType{Name: canary.ProductCanaryFlex}},
			}},
		},
		readings: map[int64][]canary.Reading{
			20: {{SensorType: canary.SensorTypeBattery, Value: 80.126}},
		},
		entries: map[int64][]canary.Entry{
			1: {{ID: 101, StartTime: time.Now(), DeviceUUIDs: []string{"dev-20"}}},
		},
	}

	b := newTestBridge(t, api)
	states := b.States()

	byID := map[string]EntityState{}
	for _, state := range states {
		byID[state.UniqueID] = state
	}

	cam := byID["20"]
	require.Equal(t, "camera", cam.Kind)
	require.NotNil(t, cam.IsRecording)
	assert.True(t, *cam.IsRecording)
	require.NotNil(t, cam.MotionDetection)
	assert.False(t, *cam.MotionDetection)

	battery := byID["20_battery"]
	require.Equal(t, "sensor", battery.Kind)
	assert.Equal(t, 80.13, battery.State)

	entriesToday := byID["20_entries_captured_today"]
	assert.Equal(t, 1, entriesToday.State)
}

func TestStartConcurrentWithRefresh(t *testing.T) {
	api := &fakeAPI{
		locations: []canary.Location{
			{ID: 1, Name: "Home", Devices: []canary.Device{
				{ID: 20, UUID: "dev-20", Name: "Dining Room", IsOnline: true,
					DeviceType: canary.DeviceType{Name: canary.ProductCanaryPro}},
			}},
		},
	}

	coord := coordinator.New(coordinator.Config{
		API:          api,
		Logger:       zap.NewNop(),
		PollInterval: time.Hour,
	})
	require.NoError(t, coord.Refresh(context.Background()))

	b := New(Config{
		Coordinator: coord,
		Transcoder:  fakeTranscoder{},
		Logger:      zap.NewNop(),
		ExtraArgs:   "-pred 1",
	})

	// Start가 레지스트리를 읽는 동안 구독 콜백이 갱신을 밀어넣습니다
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = coord.Refresh(context.Background())
			}
		}()
	}

	require.NoError(t, b.Start())
	wg.Wait()

	assert.Len(t, b.Cameras(), 1)
}

func TestLateDevicesAreAdded(t *testing.T) {
	api := &fakeAPI{
		locations: []canary.Location{
			{ID: 1, Name: "Home", Devices: []canary.Device{
				{ID: 20, UUID: "dev-20", Name: "Dining Room", IsOnline: true,
					DeviceType: canary.DeviceType{Name: canary.ProductCanaryView}},
			}},
		},
	}

	b := newTestBridge(t, api)
	require.Len(t, b.Cameras(), 1)

	api.locations[0].Devices = append(api.locations[0].Devices, canary.Device{
		ID: 21, UUID: "dev-21", Name: "Front Yard", IsOnline: true,
		DeviceType: canary.DeviceType{Name: canary.ProductCanaryView},
	})

	require.NoError(t, b.ManualSync())
	assert.Len(t, b.Cameras(), 2)
}
