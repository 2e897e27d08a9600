// Package core holds the types shared by every layer of the bridge.
//
// The native engine identifies its objects with opaque integer handles.
// Managed code represents those objects with wrappers. Nothing in this
// package owns native memory: a Handle is only a key.
//
// Also defined here:
//   - The error taxonomy used across the bridge (errors.go)
//   - The logical clock that stamps journaled steps (clock.go)
//   - Canonical JSON and content-addressed step identity (canonical.go, hash.go)
//
// ORDERING:
// Every journaled step is stamped with a seq from Clock.Next(). Wall-clock
// time is never used for ordering; frame time only ever arrives as a
// time-step argument supplied by the native loop.
package core
