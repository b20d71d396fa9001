package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/canary-bridge/internal/canary"
	"go.uber.org/zap"
)

type fakeAPI struct {
	locations []canary.Location
	readings  map[int64][]canary.Reading
	entries   map[int64][]canary.Entry
	err       error

	readingsCalls []int64
}

func (f *fakeAPI) GetLocations(context.Context) ([]canary.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.locations, nil
}

func (f *fakeAPI) GetLatestReadings(_ context.Context, deviceID int64) ([]canary.Reading, error) {
	f.readingsCalls = append(f.readingsCalls, deviceID)
	return f.readings[deviceID], nil
}

func (f *fakeAPI) GetEntries(_ context.Context, locationID int64) ([]canary.Entry, error) {
	return f.entries[locationID], nil
}

func (f *fakeAPI) GetLiveStreamSession(context.Context, canary.Device) (*canary.LiveStreamSession, error) {
	return nil, errors.New("not implemented")
}

func newFakeAPI() *fakeAPI {
	online := canary.Device{
		ID: 20, UUID: "dev-20", Name: "Dining Room", IsOnline: true,
		DeviceType: canary.DeviceType{Name: canary.ProductCanaryPro},
	}
	offline := canary.Device{
		ID: 21, UUID: "dev-21", Name: "Front Yard", IsOnline: false,
		DeviceType: canary.DeviceType{Name: canary.ProductCanaryFlex},
	}

	return &fakeAPI{
		locations: []canary.Location{
			{ID: 1, Name: "Home", IsRecording: true, Devices: []canary.Device{online, offline}},
		},
		readings: map[int64][]canary.Reading{
			20: {{SensorType: canary.SensorTypeTemperature, Value: 21.5}},
		},
		entries: map[int64][]canary.Entry{
			1: {
				{ID: 102, StartTime: time.Now(), DeviceUUIDs: []string{"dev-20"}},
				{ID: 101, StartTime: time.Now().Add(-time.Hour), DeviceUUIDs: []string{"dev-20", "dev-21"}},
			},
		},
	}
}

func newTestCoordinator(api API) *Coordinator {
	return New(Config{
		API:            api,
		Logger:         zap.NewNop(),
		PollInterval:   time.Hour,
		RefreshTimeout: time.Second,
	})
}

func TestRefreshBuildsSnapshot(t *testing.T) {
	api := newFakeAPI()
	c := newTestCoordinator(api)

	require.Nil(t, c.Data())
	require.NoError(t, c.Refresh(context.Background()))

	snapshot := c.Data()
	require.NotNil(t, snapshot)

	assert.Contains(t, snapshot.Locations, int64(1))
	assert.True(t, snapshot.Locations[1].IsRecording)

	// 오프라인 장치는 readings를 조회하지 않습니다
	assert.Equal(t, []int64{20}, api.readingsCalls)
	assert.Contains(t, snapshot.Readings, int64(20))
	assert.NotContains(t, snapshot.Readings, int64(21))

	// 엔트리는 UUID 매칭으로 장치별로 그룹화되며 최신순을 유지합니다
	require.Len(t, snapshot.Entries[20], 2)
	assert.EqualValues(t, 102, snapshot.Entries[20][0].ID)
	require.Len(t, snapshot.Entries[21], 1)
	assert.EqualValues(t, 101, snapshot.Entries[21][0].ID)
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	api := newFakeAPI()
	c := newTestCoordinator(api)

	require.NoError(t, c.Refresh(context.Background()))
	previous := c.Data()

	api.err = errors.New("cloud unreachable")
	err := c.Refresh(context.Background())
	require.Error(t, err)

	assert.Same(t, previous, c.Data())
}

func TestSubscribersNotifiedOnRefresh(t *testing.T) {
	api := newFakeAPI()
	c := newTestCoordinator(api)

	var got *Snapshot
	c.Subscribe(func(s *Snapshot) { got = s })

	require.NoError(t, c.Refresh(context.Background()))

	require.NotNil(t, got)
	assert.Same(t, c.Data(), got)
}
