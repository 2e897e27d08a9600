package bridge

import "github.com/roach88/framebridge/internal/core"

// Hooks is the managed side of an application's lifecycle.
//
// Setup, Start and Stop run once each on the frame thread. Returning an error
// aborts the transition. Update runs every global tick after the scheduler;
// SceneUpdate runs every scene tick after scene subscribers.
type Hooks interface {
	Setup(app *Application) error
	Start(app *Application) error
	Stop(app *Application) error
	Update(app *Application, dt float64)
	SceneUpdate(app *Application, dt float64, scene core.Handle)
}

// BaseHooks implements Hooks with no-ops. Embed it and override what you need.
type BaseHooks struct{}

func (BaseHooks) Setup(*Application) error {
	return nil
}

func (BaseHooks) Start(*Application) error {
	return nil
}

func (BaseHooks) Stop(*Application) error {
	return nil
}

func (BaseHooks) Update(*Application, float64) {}

func (BaseHooks) SceneUpdate(*Application, float64, core.Handle) {}
