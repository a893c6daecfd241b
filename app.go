package gekko

import (
	"fmt"
	"reflect"
	"runtime"
	"time"
)

type State int
type System any

type pendingAdd struct {
	eid        EntityId
	components []any
}

type pendingCompAdd struct {
	eid        EntityId
	components []any
}

type pendingCompRemoval struct {
	eid        EntityId
	components []any
}

type App struct {
	stateful            bool
	stateMachineStarted bool
	stateTransitioning  bool
	initialState        State
	finalState          State
	nextState           State
	state               State

	stages           []Stage
	modules          []Module
	systems          map[string]map[State]map[statePhase][]systemFn
	systemsStateless map[string][]systemFn

	resources map[reflect.Type]any
	ecs       *Ecs

	pendingAdditions    []pendingAdd
	pendingCompAdds     []pendingCompAdd
	pendingCompRemovals []pendingCompRemoval
	pendingRemovals     []EntityId
}

const STATELESS_STATE State = 0

type Module interface {
	Install(app *App, commands *Commands)
}

func (app *App) Commands() *Commands {
	return &Commands{
		app: app,
	}
}

func (app *App) Run() {
	app.build()
	if app.stateful {
		app.runStateful()
	} else {
		app.runStateless()
	}
}

func (app *App) runStateful() {
	app.executeChangeState(app.initialState)

	for {
		app.runStage(execute)
		app.flushCommands()

		if app.stateTransitioning {
			app.stateTransitioning = false
			app.executeChangeState(app.nextState)
		}

		if app.state == app.finalState {
			break
		}
	}
}

func (app *App) runStateless() {
	for {
		app.runStage(execute)
		app.flushCommands()
	}
}

// RunOnce executes a single pass over every stage. Used by hosts that drive
// their own outer loop (tests, embedding games) instead of calling Run.
func (app *App) RunOnce() {
	app.runStage(execute)
	app.flushCommands()
}

func (app *App) runStage(phase statePhase) {
	for _, stage := range app.stages {
		for _, system := range app.systemsStateless[stage.Name] {
			app.callSystem(system)
		}
		if app.stateful {
			if systemsInState, ok := app.systems[stage.Name][app.state]; ok {
				for _, system := range systemsInState[phase] {
					app.callSystem(system)
				}
			}
		}
	}
}

func (app *App) changeState(newState State) {
	app.nextState = newState
	app.stateTransitioning = true
}

func (app *App) executeChangeState(newState State) {
	if !app.stateMachineStarted {
		app.stateMachineStarted = true
		app.state = newState
		app.runStatePhase(enter)
	} else {
		app.runStatePhase(exit)
		app.state = newState
		app.runStatePhase(enter)
	}
}

func (app *App) runStatePhase(phase statePhase) {
	for _, stage := range app.stages {
		if systemsInState, ok := app.systems[stage.Name][app.state]; ok {
			for _, system := range systemsInState[phase] {
				app.callSystem(system)
			}
		}
	}
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}

		app.resources[resourceType.Elem()] = resource
	}
	return app
}

func (app *App) callSystem(system System) {
	start := time.Now()

	app.callSystemInternal(system)

	logger := app.Logger()
	if logger.DebugEnabled() {
		logger.Debugf("system %s: %dms",
			runtime.FuncForPC(reflect.ValueOf(system).Pointer()).Name(),
			time.Since(start).Milliseconds(),
		)
	}
}

var typeOfCommands = reflect.TypeOf(Commands{})

func (app *App) callSystemInternal(system System) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		underlyingType := argType.Elem()

		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
		} else if resource, argIsResource := app.resources[underlyingType]; argIsResource {
			resourceVal := reflect.ValueOf(resource)
			typedResourceVal := reflect.NewAt(underlyingType, resourceVal.UnsafePointer())

			args[i] = typedResourceVal
		} else {
			msg := fmt.Sprintf("Unable to resolve System dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
				runtime.FuncForPC(systemValue.Pointer()).Name(),
				fmt.Sprint(systemType),
				fmt.Sprint(argType),
			)
			println(msg)
			panic(msg)
		}
	}
	systemValue.Call(args)
}

// flushCommands applies the entity/component mutations queued by Commands
// during the last pass over the stages. Kept separate from system execution
// so that queries observed during a stage never see a half-mutated archetype.
func (app *App) flushCommands() {
	for _, add := range app.pendingAdditions {
		app.ecs.insertEntity(add.eid, add.components...)
	}
	app.pendingAdditions = app.pendingAdditions[:0]

	for _, add := range app.pendingCompAdds {
		app.ecs.addComponents(add.eid, add.components...)
	}
	app.pendingCompAdds = app.pendingCompAdds[:0]

	for _, rem := range app.pendingCompRemovals {
		app.ecs.removeComponents(rem.eid, rem.components...)
	}
	app.pendingCompRemovals = app.pendingCompRemovals[:0]

	for _, eid := range app.pendingRemovals {
		app.ecs.removeEntity(eid)
	}
	app.pendingRemovals = app.pendingRemovals[:0]
}
