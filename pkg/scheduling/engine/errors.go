package engine

import (
	"errors"
	"fmt"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
)

var (
	// ErrEngineClosed is returned by Submit while the engine is not Running.
	ErrEngineClosed = fmt.Errorf("engine: not accepting tasks: %w", tferrors.ErrClosed)

	// ErrTaskNotFound is returned for ids the engine has never seen or has
	// already evicted from its archive.
	ErrTaskNotFound = fmt.Errorf("engine: task %w", tferrors.ErrNotFound)

	// ErrAlreadyRunning is returned by Start on a running engine.
	ErrAlreadyRunning = errors.New("engine: already running")

	// ErrDuplicateID is returned when WithID names a task that already exists.
	ErrDuplicateID = errors.New("engine: duplicate task id")

	// ErrDrainTimeout is returned by Stop when outstanding work had to be
	// cancelled because the drain deadline passed.
	ErrDrainTimeout = fmt.Errorf("engine: drain deadline reached, outstanding work cancelled: %w", tferrors.ErrTimeout)
)
