package app

import (
	"errors"

	"classroom-maestro/internal/domain"
)

const (
	permissionMessage = "You don't have permission to change this classroom. Sign in with the owning teacher account and try again."
	genericMessage    = "Something went wrong saving your change. Please try again."
)

// UserMessage maps an error to the notification shown to the user. Permission failures get
// an actionable message, known domain errors their own text, anything else a retry prompt.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, domain.ErrPermissionDenied) {
		return permissionMessage
	}
	for _, known := range userFacing {
		if errors.Is(err, known) {
			return err.Error()
		}
	}
	return genericMessage
}

// userFacing are errors whose text is safe and useful to show as is.
var userFacing = []error{
	domain.ErrClassroomNotFound,
	domain.ErrStudentNotFound,
	domain.ErrClassroomLocked,
	domain.ErrClassroomDismissed,
	domain.ErrNoActiveRound,
	domain.ErrInvalidInput,
	domain.ErrInvalidQuestion,
	domain.ErrPackageNotFound,
	domain.ErrUnitNotFound,
	domain.ErrActivityNotFound,
	domain.ErrInvalidOrder,
}
