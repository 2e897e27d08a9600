// Command libframebridge builds the bridge as a C shared library
// (go build -buildmode=c-shared). The native host links it and calls the
// exported entry points from its frame thread.
package main

import "C"

import (
	"log/slog"
	"os"

	"github.com/roach88/framebridge/internal/bridge"
	"github.com/roach88/framebridge/internal/core"
)

var shared = bridge.New(bridge.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))))

// framebridge_create_application binds a managed application with no-op
// hooks to the native handle h. Go code linked into the library can install
// richer hooks through the bridge before the native host starts ticking.
//
//export framebridge_create_application
func framebridge_create_application(h C.ulonglong) C.int {
	_, err := bridge.NewApplication(shared, bridge.BaseHooks{}, bridge.WithHandle(core.Handle(h)))
	return C.int(status(err))
}

//export framebridge_setup
func framebridge_setup(h C.ulonglong) C.int {
	return C.int(status(shared.Setup(core.Handle(h))))
}

//export framebridge_start
func framebridge_start(h C.ulonglong) C.int {
	return C.int(status(shared.Start(core.Handle(h))))
}

//export framebridge_stop
func framebridge_stop(h C.ulonglong) C.int {
	return C.int(status(shared.Stop(core.Handle(h))))
}

//export framebridge_global_update
func framebridge_global_update(dt C.double) C.int {
	return C.int(status(shared.GlobalUpdate(float64(dt))))
}

//export framebridge_scene_update
func framebridge_scene_update(dt C.double, scene C.ulonglong) C.int {
	return C.int(status(shared.SceneUpdate(float64(dt), core.Handle(scene))))
}

//export framebridge_initialized
func framebridge_initialized() C.int {
	if shared.Initialized() {
		return 1
	}
	return 0
}

func main() {}
