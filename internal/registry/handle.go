package registry

import "github.com/google/uuid"

// Handle is the opaque identifier returned by Connect and round-tripped by
// every later call. It is never dereferenced directly — Find always goes
// back through the registry's map, per §4.F's concurrency discipline.
type Handle uuid.UUID

// NilHandle is returned on allocation failure; it never matches a live
// context.
var NilHandle Handle

func newHandle() Handle {
	return Handle(uuid.New())
}

// Valid reports whether h is anything other than the zero handle.
func (h Handle) Valid() bool {
	return h != NilHandle
}

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

// ParseHandle parses the textual form returned by Handle.String(). Used by
// internal/httpapi to round-trip handles through URLs.
func ParseHandle(s string) (Handle, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilHandle, err
	}
	return Handle(u), nil
}
