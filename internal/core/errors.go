package core

import (
	"errors"
	"fmt"

	"pictocore/pkg/domain"
)

// ErrNotFound is returned by operations whose explicit target must exist.
// Plain reads report absence as (zero, false, nil) instead.
type ErrNotFound struct {
	Entity domain.EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsNotFound reports whether err carries an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

var (
	// ErrInvalidCredentials is returned by Authenticate for an unknown email
	// or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoBlobStore is returned by asset operations when the service has no blob store.
	ErrNoBlobStore = errors.New("no blob store configured")
)
