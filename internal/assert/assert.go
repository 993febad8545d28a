// Package assert provides structural invariant checks that are only
// compiled in when building with the pooleddebug tag. They guard
// against internal corruption and are never a recoverable error path.
package assert

import "fmt"

// That panics with the formatted message when cond is false and
// assertions are enabled.
func That(cond bool, format string, args ...interface{}) {
	if Enabled && !cond {
		panic(fmt.Sprintf("pooled: invariant violated: "+format, args...))
	}
}
