package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tOgg1/roomchat/internal/chat"
)

const (
	ExitCodeFailure = 1
	ExitCodeUsage   = 2
	ExitCodeConfig  = 3
	ExitCodeAuth    = 4
)

// ExitError carries a process exit code. Printed reports that the message
// already reached the user.
type ExitError struct {
	Code    int
	Err     error
	Printed bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Exitf builds an ExitError from a format string.
func Exitf(code int, format string, args ...any) error {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}

func usageError(cmd *cobra.Command, msg string) error {
	return &ExitError{Code: ExitCodeUsage, Err: fmt.Errorf("%s (see %s --help)", msg, cmd.CommandPath())}
}

// chatExit maps chat errors to exit codes.
func chatExit(action string, err error) error {
	if errors.Is(err, chat.ErrUnauthenticated) {
		return &ExitError{Code: ExitCodeAuth, Err: fmt.Errorf("%s: %w (run `roomchat login`)", action, err)}
	}
	return &ExitError{Code: ExitCodeFailure, Err: fmt.Errorf("%s: %w", action, err)}
}
