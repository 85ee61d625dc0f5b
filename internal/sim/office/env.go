package office

import (
	"clawoffice.ai/internal/sim/animator"
	"clawoffice.ai/internal/sim/dispatch"
	"clawoffice.ai/internal/sim/routes"
)

// dispatchEnv gives the dispatcher the catalog, the animators and presence.
type dispatchEnv struct{ o *Office }

func (e dispatchEnv) Catalog() *routes.Catalog { return e.o.catalog.Load() }

func (e dispatchEnv) Mover(name string) (dispatch.Mover, bool) {
	a, ok := e.o.anims[name]
	if !ok {
		return nil, false
	}
	return a, true
}

// IsPresent also wants the agent on screen, so a hidden agent gets spawned
// even when the monitor still counts it present.
func (e dispatchEnv) IsPresent(name string) bool {
	if a, ok := e.o.anims[name]; ok && !a.Visible() && !a.Animating() {
		return false
	}
	return e.o.pres.IsPresent(name)
}

// Spawn puts the agent back at its desk so a movement can use it.
func (e dispatchEnv) Spawn(name string) {
	e.o.respawn(name)
	e.o.pres.MarkSpawned(name, e.o.now())
}

func (e dispatchEnv) Exited(name string) { e.o.pres.MarkExited(name, e.o.now()) }

// presenceEnv routes presence transitions into the queue and the animators.
type presenceEnv struct{ o *Office }

func (e presenceEnv) Enqueue(r dispatch.Request) (dispatch.Request, error) {
	return e.o.disp.Enqueue(r)
}

func (e presenceEnv) HasRoute(from, to string) bool {
	cat := e.o.catalog.Load()
	return cat != nil && cat.Has(from, to)
}

func (e presenceEnv) Spawn(name string) { e.o.respawn(name) }

func (e presenceEnv) Despawn(name string) {
	a, ok := e.o.anims[name]
	if !ok || a.Animating() || !a.Visible() {
		return
	}
	a.Vanish()
}

func (o *Office) respawn(name string) {
	a, ok := o.anims[name]
	if !ok || a.Animating() {
		return
	}
	if a.Visible() && a.Phase() == animator.PhaseSeatedIdle {
		return
	}
	a.Respawn()
}
