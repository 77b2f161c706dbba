package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	keyringService  = "tcgsync"
	keyringIndexKey = "index"
	keyringProbeKey = "probe"
)

// KeyringStore keeps one JSON secret per account in the system keychain.
// The keychain cannot be enumerated, so a separate index secret tracks names.
type KeyringStore struct {
	service string
	mu      sync.Mutex
}

// NewKeyringStore probes the keychain and fails when it is unusable
func NewKeyringStore() (*KeyringStore, error) {
	return newKeyringStore(keyringService)
}

func newKeyringStore(service string) (*KeyringStore, error) {
	if err := keyring.Set(service, keyringProbeKey, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(service, keyringProbeKey)
	return &KeyringStore{service: service}, nil
}

func accountKey(name string) string { return "account:" + name }

func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Name == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := keyring.Set(k.service, accountKey(account.Name), string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	names, err := k.index()
	if err != nil {
		return err
	}
	if !slices.Contains(names, account.Name) {
		names = append(names, account.Name)
		slices.Sort(names)
		return k.saveIndex(names)
	}
	return nil
}

func (k *KeyringStore) Retrieve(name string) (*Account, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(k.service, accountKey(name))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &account, nil
}

// List resolves every indexed name. Names whose secret was removed outside
// tcgsync are skipped.
func (k *KeyringStore) List() ([]*Account, error) {
	k.mu.Lock()
	names, err := k.index()
	k.mu.Unlock()
	if err != nil {
		return nil, err
	}

	accounts := make([]*Account, 0, len(names))
	for _, name := range names {
		account, err := k.Retrieve(name)
		if errors.Is(err, ErrCredentialsNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (k *KeyringStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	err := keyring.Delete(k.service, accountKey(name))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrCredentialsNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	names, err := k.index()
	if err != nil {
		return err
	}
	if i := slices.Index(names, name); i >= 0 {
		return k.saveIndex(slices.Delete(names, i, i+1))
	}
	return nil
}

func (k *KeyringStore) Exists(name string) bool {
	if name == "" {
		return false
	}
	_, err := keyring.Get(k.service, accountKey(name))
	return err == nil
}

func (k *KeyringStore) index() ([]string, error) {
	raw, err := keyring.Get(k.service, keyringIndexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}

	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("corrupt keyring index: %w", err)
	}
	return names, nil
}

func (k *KeyringStore) saveIndex(names []string) error {
	if len(names) == 0 {
		err := keyring.Delete(k.service, keyringIndexKey)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to clear keyring index: %w", err)
		}
		return nil
	}

	raw, err := json.Marshal(names)
	if err != nil {
		return err
	}
	if err := keyring.Set(k.service, keyringIndexKey, string(raw)); err != nil {
		return fmt.Errorf("failed to write keyring index: %w", err)
	}
	return nil
}
