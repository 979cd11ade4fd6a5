package factory

import (
	"time"

	"github.com/mcoot/echorelay/internal/dependencies/mocks"
	"github.com/mcoot/echorelay/internal/services/profilesync"
	"github.com/mcoot/echorelay/internal/services/sessions"
	"github.com/mcoot/echorelay/internal/storage/memory"
	"github.com/mcoot/echorelay/internal/testutil"
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
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	sessionCfg := sessions.DefaultConfig()
	sessionCfg.HandshakeTimeout = time.Second

	app := newWithDependencies(store, mockClock, mockRandom, profilesync.DefaultConfig(), sessionCfg, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
