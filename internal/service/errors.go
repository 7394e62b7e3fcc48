package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/recetario/backend/internal/models"
)

// Error kinds returned by the identity and catalog stores. Callers match
// them with errors.Is; the API layer maps them to HTTP statuses.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrForbidden        = errors.New("forbidden")
	ErrAdminFloor       = errors.New("operation would leave no administrators")
	ErrValidation       = errors.New("validation failed")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// storeError translates a raw store failure into the taxonomy. A duplicate
// key means the unique index lost a check-then-insert race and is reported
// as the same Conflict the fast-path check produces.
func storeError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: duplicate key", ErrConflict)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func validationError(err error) error {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return fmt.Errorf("%w: %s", ErrValidation, ve.Error())
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
