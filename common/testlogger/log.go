// Package testlogger gives tests a logger named after the running test.
package testlogger

import (
	"os"
	"testing"

	"github.com/drand/vmauth/common/log"
)

// LevelEnv sets the level of test loggers, as in VMAUTH_TEST_LOGS=debug.
const LevelEnv = "VMAUTH_TEST_LOGS"

// Level is the level named by LevelEnv, warn when unset.
func Level(t testing.TB) int {
	name, ok := os.LookupEnv(LevelEnv)
	if !ok {
		return log.WarnLevel
	}
	level, err := log.ParseLevel(name)
	if err != nil {
		t.Logf("ignoring %s: %v", LevelEnv, err)
		return log.WarnLevel
	}
	return level
}

// New returns a console logger on stderr named after t.
func New(t testing.TB) log.Logger {
	return log.New(nil, Level(t), false).Named(t.Name())
}
