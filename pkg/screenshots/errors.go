package screenshots

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// ErrPermissionRequired indicates the OS refused screen capture.
var ErrPermissionRequired = errors.New("screen recording permission required for screenshot capture")

// ErrNoMonitor is returned when no active display is attached.
var ErrNoMonitor = errors.New("could not detect primary monitor")

type permissionError struct {
	message string
}

func (e *permissionError) Error() string {
	return e.message
}

func (e *permissionError) Is(target error) bool {
	return target == ErrPermissionRequired
}

func newPermissionError(message string) error {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		trimmed = ErrPermissionRequired.Error()
	}
	return &permissionError{message: trimmed}
}

func errOutOfBounds(rect image.Rectangle, m Monitor) error {
	return fmt.Errorf("region %v outside monitor %v", rect, m.Bounds())
}
