package core

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"pictocore/pkg/domain"
	"pictocore/pkg/schema"
)

// SetUserPassword replaces the user's credential hash.
func (s *Service) SetUserPassword(ctx context.Context, id, password string) error {
	if err := schema.New().Required("password", password).Err(); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.run(ctx, "set_user_password", scopeUsers, func(tx *Tx) error {
		return tx.setPasswordHash(id, string(hash))
	})
}

func (tx *Tx) setPasswordHash(id, hash string) error {
	user, ok, err := get[domain.User](tx.raw, domain.CollectionUsers, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound{Entity: domain.EntityUser, ID: id}
	}
	user.PasswordHash = hash
	_, _, err = tx.UpdateUser(user)
	return err
}

// Authenticate returns the user whose email and password match. Unknown
// emails, users without a password and wrong passwords all yield
// ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	user, ok, err := s.UserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, err
	}
	if !ok || user.PasswordHash == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	return user, nil
}

// CompleteOnboarding marks the user's onboarding as done. updated is false
// when the user does not exist.
func (s *Service) CompleteOnboarding(ctx context.Context, id string) (domain.User, bool, error) {
	done := true
	return s.PatchUser(ctx, id, domain.UserPatch{OnboardingCompleted: &done})
}
