package app

import (
	"os"
	"sync"
)

// TestModeEnv names the variable that makes binaries return before touching
// Postgres or Redis. internal/testing/guard sets it for every test binary.
const TestModeEnv = "ODYSSEY_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	return testMode()
}
