//go:build !pooleddebug

package assert

const Enabled = false
