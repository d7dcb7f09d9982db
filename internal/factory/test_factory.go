package factory

import (
	"time"

	"github.com/quietfloor/readingroom/internal/dependencies/mocks"
	"github.com/quietfloor/readingroom/internal/services/auth"
	"github.com/quietfloor/readingroom/internal/services/forecast"
	"github.com/quietfloor/readingroom/internal/services/room"
	"github.com/quietfloor/readingroom/internal/storage/memory"
	"github.com/quietfloor/readingroom/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	roomCfg := room.DefaultConfig()
	roomCfg.AdminPIN = "4242"
	roomCfg.KickGrace = 0

	app := newWithDependencies(
		store,
		mockClock,
		mockRandom,
		auth.DefaultConfig(),
		roomCfg,
		forecast.DefaultConfig(),
		nil,
		testutil.NopLogger(),
	)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
