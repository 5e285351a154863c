package app

import (
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "PLFORECAST_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// InTestMode reports whether binaries should skip network side effects such
// as dialing Postgres or Redis.
func InTestMode() bool {
	testModeOnce.Do(RefreshTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads PLFORECAST_TEST_MODE after environment changes.
func RefreshTestMode() {
	v := os.Getenv(testModeEnv)
	testModeFlag.Store(v == "1" || v == "true")
}
