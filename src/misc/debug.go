package misc

import (
	"fmt"
	"os"
	"sync"
)

var (
	debugOnce    sync.Once
	debugEnabled bool
)

// DebugEnabled reports whether trace output was requested through the
// A3_DEBUG environment variable. The check happens once per process.
func DebugEnabled() bool {
	debugOnce.Do(func() {
		debugEnabled = os.Getenv("A3_DEBUG") != ""
	})
	return debugEnabled
}

// Debugf writes a trace line to stderr when debugging is enabled.
func Debugf(format string, args ...interface{}) {
	if !DebugEnabled() {
		return
	}
	fmt.Fprintf(os.Stderr, "[artico3] "+format+"\n", args...)
}

// Infof writes an informational line to stderr unconditionally.
func Infof(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[artico3] "+format+"\n", args...)
}
