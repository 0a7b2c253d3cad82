// Package testing flips the runtime into test mode when imported by a test
// binary.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

const testModeEnv = "TRADEBOOK_TEST_MODE"

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv(testModeEnv, "1")
		if os.Getenv("APP_ENV") == "" {
			_ = os.Setenv("APP_ENV", "test")
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain is used by packages that declare no TestMain of their own.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
