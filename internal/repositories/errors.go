package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/anonto42/yatube/backend/internal/apperr"
)

// wrapNotFound turns gorm.ErrRecordNotFound into apperr.ErrNotFound and
// leaves every other error untouched.
func wrapNotFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, apperr.ErrNotFound)...)
	}
	return err
}

// isUniqueViolation reports whether err is a unique-constraint violation.
// The connection is opened with TranslateError, so drivers report gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
