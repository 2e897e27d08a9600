// Package bridge connects the native engine's lifecycle and frame callbacks
// to managed applications.
//
// The native side knows objects only by handle. It calls Setup, Start and
// Stop once each, in that order, for the handle of its application, and then
// calls GlobalUpdate and SceneUpdate every frame. The Bridge resolves the
// handle through the registry and forwards the call to the Application,
// which runs the user's Hooks and owns the per-application scheduler,
// dispatcher and deferred queues.
//
// LIFECYCLE:
//
//	Uninitialized --setup--> SetUp --start--> Started --stop--> Stopped
//
// Any other transition, or any call for a handle the registry does not know,
// returns LifecycleOrderViolation and leaves the phase unchanged. A hook that
// returns an error also leaves the phase unchanged.
//
// CALLBACK TABLE:
// Native adapters never call Setup/Start/Stop on an Application directly.
// They call through the Bridge's CallbackTable, which is built once in New
// and lives as long as the Bridge. SetCustomCallbacks replaces it
// (last-writer-wins); the replacement is logged.
//
// CURRENT APPLICATION:
// The most recently constructed Application is the bridge's current one and
// receives frame ticks. Construction is the only writer. Start installs the
// starting application as the target of Bridge.Delay.
package bridge
