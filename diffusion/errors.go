package diffusion

import "errors"

// Sentinel errors for the controller's state-machine violations. Per
// the spec's error taxonomy these never change controller state or
// have any other side effect; callers compare with errors.Is.
var (
	ErrAlreadyStepping = errors.New("diffusion: begin_step called while already stepping")
	ErrNotStepping     = errors.New("diffusion: tick called while idle")
)
