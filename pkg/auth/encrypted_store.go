package auth

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	vaultVersion    = 2
	vaultKDF        = "pbkdf2-sha256"
	vaultIterations = 100000
	vaultSaltSize   = 32
	vaultKeySize    = 32

	passphraseEnv  = "TCGSYNC_PASSPHRASE"
	passphraseFile = ".passphrase"
)

var vaultAAD = []byte("tcgsync-vault")

// vaultFile is the on-disk envelope. Byte slices marshal as base64.
type vaultFile struct {
	Version    int       `json:"version"`
	KDF        string    `json:"kdf"`
	Iterations int       `json:"iterations"`
	Salt       []byte    `json:"salt"`
	Nonce      []byte    `json:"nonce"`
	Sealed     []byte    `json:"sealed"`
	Modified   time.Time `json:"modified"`
}

// EncryptedFileStore keeps every account in a single AES-GCM sealed vault.
// The key comes from TCGSYNC_PASSPHRASE, or from a random passphrase written
// next to the vault on first use.
type EncryptedFileStore struct {
	path       string
	passphrase []byte

	mu   sync.Mutex
	keys map[string][]byte
}

// NewEncryptedFileStore opens (without reading) the vault at path
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	passphrase, err := loadPassphrase(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}

	return &EncryptedFileStore{
		path:       path,
		passphrase: passphrase,
		keys:       make(map[string][]byte),
	}, nil
}

// Store adds or replaces an account in the vault
func (e *EncryptedFileStore) Store(account *Account) error {
	if account == nil || account.Name == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, salt, err := e.open()
	if err != nil {
		return err
	}
	accounts[account.Name] = *account
	return e.seal(accounts, salt)
}

// Retrieve returns the named account
func (e *EncryptedFileStore) Retrieve(name string) (*Account, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, _, err := e.open()
	if err != nil {
		return nil, err
	}
	account, ok := accounts[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

// List returns the vault's accounts ordered by name
func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, _, err := e.open()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(accounts))
	for name := range accounts {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]*Account, 0, len(names))
	for _, name := range names {
		account := accounts[name]
		result = append(result, &account)
	}
	return result, nil
}

// Delete removes the account. The vault file goes away with its last account.
func (e *EncryptedFileStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, salt, err := e.open()
	if err != nil {
		return err
	}
	if _, ok := accounts[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(accounts, name)

	if len(accounts) == 0 {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove vault: %w", err)
		}
		return nil
	}
	return e.seal(accounts, salt)
}

// Exists reports whether the vault holds the named account
func (e *EncryptedFileStore) Exists(name string) bool {
	account, err := e.Retrieve(name)
	return err == nil && account != nil
}

// open reads and decrypts the vault. A missing file is an empty vault with
// no salt yet.
func (e *EncryptedFileStore) open() (map[string]Account, []byte, error) {
	accounts := make(map[string]Account)

	content, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return accounts, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read vault: %w", err)
	}

	var vf vaultFile
	if err := json.Unmarshal(content, &vf); err != nil {
		return nil, nil, fmt.Errorf("failed to parse vault: %w", err)
	}
	if vf.Version != vaultVersion || vf.KDF != vaultKDF {
		return nil, nil, fmt.Errorf("unsupported vault format %q v%d", vf.KDF, vf.Version)
	}

	aead, err := e.aead(vf.Salt, vf.Iterations)
	if err != nil {
		return nil, nil, err
	}
	plain, err := aead.Open(nil, vf.Nonce, vf.Sealed, vaultAAD)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt vault: %w", err)
	}

	if err := json.Unmarshal(plain, &accounts); err != nil {
		return nil, nil, fmt.Errorf("failed to parse accounts: %w", err)
	}
	return accounts, vf.Salt, nil
}

// seal encrypts accounts and atomically replaces the vault file
func (e *EncryptedFileStore) seal(accounts map[string]Account, salt []byte) error {
	if len(salt) == 0 {
		salt = make([]byte, vaultSaltSize)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}

	aead, err := e.aead(salt, vaultIterations)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	content, err := json.MarshalIndent(vaultFile{
		Version:    vaultVersion,
		KDF:        vaultKDF,
		Iterations: vaultIterations,
		Salt:       salt,
		Nonce:      nonce,
		Sealed:     aead.Seal(nil, nonce, plain, vaultAAD),
		Modified:   time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal vault: %w", err)
	}

	return writeFileAtomic(e.path, content, 0600)
}

// aead derives (once per salt) the vault key and wraps it in AES-GCM
func (e *EncryptedFileStore) aead(salt []byte, iter int) (cipher.AEAD, error) {
	if len(salt) == 0 || iter <= 0 {
		return nil, errors.New("vault header is missing key parameters")
	}

	cacheKey := fmt.Sprintf("%d:%x", iter, salt)
	key, ok := e.keys[cacheKey]
	if !ok {
		key = pbkdf2.Key(e.passphrase, salt, iter, vaultKeySize, sha256.New)
		e.keys[cacheKey] = key
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// loadPassphrase prefers the environment, then the passphrase file in dir,
// creating that file when neither exists.
func loadPassphrase(dir string) ([]byte, error) {
	if pass := os.Getenv(passphraseEnv); pass != "" {
		return []byte(pass), nil
	}

	path := filepath.Join(dir, passphraseFile)
	if content, err := os.ReadFile(path); err == nil {
		if content = bytes.TrimSpace(content); len(content) > 0 {
			return content, nil
		}
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate passphrase: %w", err)
	}
	pass := []byte(base64.RawURLEncoding.EncodeToString(raw))
	if err := writeFileAtomic(path, pass, 0600); err != nil {
		return nil, fmt.Errorf("failed to save passphrase: %w", err)
	}
	return pass, nil
}

func writeFileAtomic(path string, content []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(name, perm); err != nil {
		return err
	}
	return os.Rename(name, path)
}
