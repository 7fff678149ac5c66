package handlers

import (
	"context"
	"time"

	"energy_console/internal/models"
	"energy_console/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockControl struct {
	modeErr     error
	overrideOn  bool
	overrideErr error
	commandErr  error
	toggleRes   models.Action
	toggleErr   error
	clearErr    error

	lastMode    string
	lastRoom    string
	lastDevice  string
	lastAction  string
	clearCalled int
}

func (m *mockControl) SetMode(ctx context.Context, mode string) error {
	m.lastMode = mode
	return m.modeErr
}
func (m *mockControl) ToggleOverride(ctx context.Context) (bool, error) {
	return m.overrideOn, m.overrideErr
}
func (m *mockControl) Command(ctx context.Context, room, device, action string) error {
	m.lastRoom, m.lastDevice, m.lastAction = room, device, action
	return m.commandErr
}
func (m *mockControl) ToggleDevice(ctx context.Context, room, device string) (models.Action, error) {
	m.lastRoom, m.lastDevice = room, device
	return m.toggleRes, m.toggleErr
}
func (m *mockControl) ClearAlerts(ctx context.Context) error {
	m.clearCalled++
	return m.clearErr
}

type mockMonitoring struct {
	state     models.Snapshot
	err       error
	series    map[string]models.SeriesSnapshot
	seriesErr error
	alerts    []models.Alert
}

func (m *mockMonitoring) GetState(ctx context.Context) (models.Snapshot, error) {
	return m.state, m.err
}
func (m *mockMonitoring) GetSeries(ctx context.Context, name string) (models.SeriesSnapshot, error) {
	s, ok := m.series[name]
	if !ok {
		return models.SeriesSnapshot{}, service.ErrUnknownSeries
	}
	return s, m.seriesErr
}
func (m *mockMonitoring) GetAlerts(ctx context.Context) ([]models.Alert, error) {
	return m.alerts, m.err
}

type mockEventLog struct {
	resp     []models.Event
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.Event, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, nil, nil)
	return h.InitRoutes()
}
