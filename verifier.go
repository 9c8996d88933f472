package authcore

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ampara-edu/authcore/password"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// credentialVerifier checks an email/password pair against the directory.
// Everything that can go wrong before "account exists and password matches"
// collapses into ErrInvalidCredentials so responses never reveal whether an
// address is registered.
type credentialVerifier struct {
	directory Directory
	hasher    *password.Hasher
	// dummyHash is compared against when the email matches no account, so a
	// lookup miss costs one argon2 derivation just like a wrong password.
	dummyHash string
}

func newCredentialVerifier(directory Directory, hasher *password.Hasher) *credentialVerifier {
	return &credentialVerifier{
		directory: directory,
		hasher:    hasher,
		dummyHash: hasher.DummyDigest(),
	}
}

// normalizeEmail lower-cases and trims an address. Lookups and rate-limit
// keys both go through this so "Alice@X" and "alice@x" are one identity.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// verify returns the matching active user record, or an error from the
// engine taxonomy. The returned record still carries its password hash; the
// caller strips it.
func (v *credentialVerifier) verify(ctx context.Context, email, plain string) (*UserRecord, error) {
	email = normalizeEmail(email)
	if email == "" || plain == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	if err := validate.Var(email, "email"); err != nil {
		return nil, fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}

	user, err := v.directory.FindUserByEmail(ctx, email)
	if err != nil {
		// Unknown account and storage fault both burn a hash compare and
		// both surface as invalid credentials.
		v.hasher.Verify(plain, v.dummyHash)
		return nil, ErrInvalidCredentials
	}

	if !v.hasher.Verify(plain, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrAccountInactive
	}
	return user, nil
}

// maybeUpgradeHash rehashes the stored digest with current costs after a
// successful login. Best-effort: a failure here never fails the login.
func (v *credentialVerifier) maybeUpgradeHash(ctx context.Context, user *UserRecord, plain string) error {
	if !v.hasher.NeedsUpgrade(user.PasswordHash) {
		return nil
	}
	fresh, err := v.hasher.Hash(plain)
	if err != nil {
		return err
	}
	return v.directory.UpdatePasswordHash(ctx, user.ID, fresh)
}
