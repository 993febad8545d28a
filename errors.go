package pooled

// Error is the type of the failure classes reported by the containers.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrInvalidArgument reports an out of range index, a nil or
	// stale position, an empty container where an element was
	// required, or an invalid configuration.
	ErrInvalidArgument = Error("invalid argument")

	// ErrOutOfMemory reports a size computation that overflowed or an
	// allocation that would exceed a configured limit.
	ErrOutOfMemory = Error("out of memory")
)
