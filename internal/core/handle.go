package core

import "fmt"

// Handle is an opaque identifier for a native-owned object.
// Its validity is controlled by the native side; the bridge never frees it.
type Handle uint64

// InvalidHandle is the zero handle. Native code never hands it out.
const InvalidHandle Handle = 0

// Valid reports whether h is non-zero.
func (h Handle) Valid() bool {
	return h != InvalidHandle
}

// String formats the handle the way native logs print addresses.
func (h Handle) String() string {
	return fmt.Sprintf("0x%x", uint64(h))
}

// Wrapper is a managed object representing exactly one native object.
// The handle is fixed at construction and never changes.
type Wrapper interface {
	Handle() Handle
}
