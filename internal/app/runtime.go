package app

import (
	"os"
	"sync/atomic"
)

const testModeEnv = "TRADEBOOK_TEST_MODE"

var testMode atomic.Pointer[bool]

// InTestMode reports whether TRADEBOOK_TEST_MODE=1. Rate limiting and request
// logging are skipped in test mode.
func InTestMode() bool {
	if v := testMode.Load(); v != nil {
		return *v
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads the environment and returns the new value.
func RefreshTestMode() bool {
	on := os.Getenv(testModeEnv) == "1"
	testMode.Store(&on)
	return on
}
