package supervisor

import (
	"errors"
	"fmt"

	"github.com/kolkov/rwgate/internal/race/task"
)

var (
	// ErrInvalidConfig is wrapped by New when the configuration is rejected.
	// Nothing is allocated or spawned in that case.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSpawn is wrapped by a *SpawnError.
	ErrSpawn = errors.New("task creation failed")

	// ErrInterrupted is wrapped when the caller's context ends the run early.
	ErrInterrupted = errors.New("run interrupted")
)

// SpawnError reports the task that could not be started.
type SpawnError struct {
	Role    task.Role
	ID      int
	Spawned int // tasks started before the failure
}

// Error implements error.
func (e *SpawnError) Error() string {
	return fmt.Sprintf("%v: %s %d (%d task(s) already running)", ErrSpawn, e.Role, e.ID, e.Spawned)
}

// Unwrap returns ErrSpawn.
func (e *SpawnError) Unwrap() error {
	return ErrSpawn
}
