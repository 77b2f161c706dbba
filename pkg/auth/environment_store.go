package auth

import (
	"os"
	"time"
)

const (
	envCookieHeader = "TCGSYNC_COOKIE_HEADER"
	envUserAgent    = "TCGSYNC_USER_AGENT"
	envAccountName  = "env"
)

// EnvironmentStore reads a single account from TCGSYNC_COOKIE_HEADER. It is
// read-only and is consulted last.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account for "" or "env"
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	if name != "" && name != envAccountName {
		return nil, ErrCredentialsNotFound
	}

	cookies := ParseCookieHeader(os.Getenv(envCookieHeader))
	if len(cookies) == 0 {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Name:         envAccountName,
		Cookies:      cookies,
		UserAgent:    os.Getenv(envUserAgent),
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}
