//go:build pooleddebug

package assert

const Enabled = true
