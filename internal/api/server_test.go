package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/canary-bridge/internal/bridge"
	"github.com/yourusername/canary-bridge/internal/canary"
	"github.com/yourusername/canary-bridge/internal/coordinator"
	"github.com/yourusername/canary-bridge/internal/ffmpeg"
	"go.uber.org/zap"
)

type fakeAPI struct{}

func (fakeAPI) GetLocations(context.Context) ([]canary.Location, error) {
	return []canary.Location{
		{ID: 1, Name: "Home", IsRecording: false, Devices: []canary.Device{
			{ID: 20, UUID: "dev-20", Name: "Dining Room", IsOnline: true,
				DeviceType: canary.DeviceType{Name: canary.ProductCanaryPro}},
		}},
	}, nil
}

func (fakeAPI) GetLatestReadings(_ context.Context, deviceID int64) ([]canary.Reading, error) {
	return []canary.Reading{
		{SensorType: canary.SensorTypeTemperature, Value: 21.5},
	}, nil
}

func (fakeAPI) GetEntries(context.Context, int64) ([]canary.Entry, error) {
	return nil, nil
}

func (fakeAPI) GetLiveStreamSession(context.Context, canary.Device) (*canary.LiveStreamSession, error) {
	return nil, errors.New("no session")
}

type fakeTranscoder struct{}

func (fakeTranscoder) GetImage(context.Context, string, string, int, int) ([]byte, error) {
	return nil, errors.New("no image")
}

func (fakeTranscoder) OpenMJPEG(string, string) (ffmpeg.Stream, error) {
	return nil, errors.New("no stream")
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	coord := coordinator.New(coordinator.Config{
		API:          fakeAPI{},
		Logger:       zap.NewNop(),
		PollInterval: time.Hour,
	})
	require.NoError(t, coord.Refresh(context.Background()))

	b := bridge.New(bridge.Config{
		Coordinator: coord,
		Transcoder:  fakeTranscoder{},
		Logger:      zap.NewNop(),
	})
	require.NoError(t, b.Start())

	server := NewServer(ServerConfig{
		Port:       0,
		Production: true,
		Logger:     zap.NewNop(),
		Provider:   b,
	})

	ts := httptest.NewServer(server.router)
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	var health map[string]any
	status := getJSON(t, ts.URL+"/health", &health)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 1, health["cameras"])
}

func TestEntities(t *testing.T) {
	ts := newTestServer(t)

	var body struct {
		Entities []bridge.EntityState `json:"entities"`
	}
	status := getJSON(t, ts.URL+"/api/v1/entities", &body)

	assert.Equal(t, http.StatusOK, status)
	// 카메라 1대 + Canary Pro 센서 6개
	assert.Len(t, body.Entities, 7)
}

func TestSensorState(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]any
	status := getJSON(t, ts.URL+"/api/v1/sensor/20_temperature", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 21.5, body["state"])

	status = getJSON(t, ts.URL+"/api/v1/sensor/20_unknown", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCameraImageUnavailable(t *testing.T) {
	ts := newTestServer(t)

	// 썸네일도 라이브 세션도 없으면 404
	status := getJSON(t, ts.URL+"/api/v1/camera/20/image", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status = getJSON(t, ts.URL+"/api/v1/camera/99/image", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestManualSync(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/v1/sync", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
