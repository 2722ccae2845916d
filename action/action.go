// Package action implements what a scheduled task does when it fires:
// run a list of shell commands, or rotate the daemon's own log file.
package action

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	KindShell       = "shell"
	KindLogRotation = "logrotation"
)

// Action is dispatched synchronously by the scheduler. A returned error is
// fatal to the scheduler.
type Action interface {
	Kind() string
	Run(logger *logrus.Entry) error
}

// ExecutionError is a failed step of an action.
type ExecutionError struct {
	Step string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
