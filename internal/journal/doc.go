// Package journal records bridge sessions in SQLite so they can be inspected
// and replayed.
//
// A session is one run of a scenario or of the host loop. Each step is one
// call into the bridge (native lifecycle, frame tick or managed API) with its
// canonical JSON payload and the outcome code it produced ("ok" or an error
// code). Step IDs are content-addressed (core.StepID), so appending the same
// step twice is a no-op.
//
// Steps are stamped with a logical seq, never a wall-clock time. ReadSession
// returns them ORDER BY seq, which is the order they were executed.
//
// Schema is managed by golang-migrate from SQL files embedded in the binary.
package journal
