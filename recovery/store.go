// Package recovery implements the recovery secret store: a small payload of
// personal-question answers encrypted under a key derived from those same
// answers. Verification is "derive a key from the candidate answers and try
// to decrypt"; it succeeds only for an exact, order-sensitive match.
package recovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"passkeep/crypto"
	"passkeep/fsutil"
)

// Config holds the file paths and KDF cost for a Store. Explicit paths keep
// stores isolated, so tests can point them at temporary directories.
type Config struct {
	SaltPath    string
	PayloadPath string
	Iterations  int
}

// DefaultConfig returns a Config rooted under the user's home directory.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(home, ".passkeep")
	return Config{
		SaltPath:    filepath.Join(dir, "recovery_salt.bin"),
		PayloadPath: filepath.Join(dir, "recovery_answers.bin"),
		Iterations:  crypto.DefaultIterations,
	}, nil
}

// Store persists and verifies recovery answers. Once saved it is immutable;
// resetting requires removing the persisted files out-of-band.
type Store struct {
	cfg Config
}

// New creates a Store. A zero Iterations falls back to the default cost.
func New(cfg Config) *Store {
	if cfg.Iterations == 0 {
		cfg.Iterations = crypto.DefaultIterations
	}
	return &Store{cfg: cfg}
}

// SetupNeeded reports whether no payload has ever been saved.
func (s *Store) SetupNeeded() bool {
	ok, err := fsutil.Exists(s.cfg.PayloadPath)
	if err != nil {
		return true
	}
	return !ok
}

// Save encrypts the ordered answers under a key derived from them and
// persists the result. It does not validate answer contents; callers gate
// empty or partial answer sets before reaching the store.
func (s *Store) Save(answers []string) error {
	salt, err := s.loadOrCreateSalt()
	if err != nil {
		return err
	}

	key, err := s.deriveKey(answers, salt)
	if err != nil {
		return err
	}
	defer crypto.Wipe(key)

	plaintext, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}
	defer crypto.Wipe(plaintext)

	payload, err := crypto.Encrypt(key, plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt answers: %w", err)
	}

	if err := fsutil.WriteFileAtomic(s.cfg.PayloadPath, payload, 0600); err != nil {
		return fmt.Errorf("failed to save recovery payload: %w", err)
	}

	return nil
}

// Verify reports whether the candidate answers match the saved ones. Any
// failure mode, including a missing or corrupted payload and a wrong or
// reordered answer set, yields false rather than an error.
func (s *Store) Verify(answers []string) bool {
	payload, err := os.ReadFile(s.cfg.PayloadPath)
	if err != nil {
		return false
	}

	salt, err := os.ReadFile(s.cfg.SaltPath)
	if err != nil {
		return false
	}

	key, err := s.deriveKey(answers, salt)
	if err != nil {
		return false
	}
	defer crypto.Wipe(key)

	plaintext, err := crypto.Decrypt(key, payload)
	if err != nil {
		return false
	}
	defer crypto.Wipe(plaintext)

	var stored []string
	if err := json.Unmarshal(plaintext, &stored); err != nil {
		return false
	}

	// GCM already authenticates the key, but compare contents anyway to
	// rule out derivation collisions between different answer sets.
	if len(stored) != len(answers) {
		return false
	}
	for i := range stored {
		if stored[i] != answers[i] {
			return false
		}
	}
	return true
}

// loadOrCreateSalt returns the persisted salt, generating and persisting it
// on first use so every later derivation sees the same value.
func (s *Store) loadOrCreateSalt() ([]byte, error) {
	ok, err := fsutil.Exists(s.cfg.SaltPath)
	if err != nil {
		return nil, err
	}
	if ok {
		salt, err := os.ReadFile(s.cfg.SaltPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read salt: %w", err)
		}
		return salt, nil
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(s.cfg.SaltPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.cfg.SaltPath, salt, 0600); err != nil {
		return nil, fmt.Errorf("failed to save salt: %w", err)
	}
	return salt, nil
}

// deriveKey concatenates the ordered answers and derives a key. Order
// matters: reordering the same answers derives a different key.
func (s *Store) deriveKey(answers []string, salt []byte) ([]byte, error) {
	var combined []byte
	for _, a := range answers {
		combined = append(combined, a...)
	}
	defer crypto.Wipe(combined)

	key, err := crypto.DeriveKey(combined, salt, s.cfg.Iterations)
	if err != nil {
		return nil, fmt.Errorf("failed to derive recovery key: %w", err)
	}
	return key, nil
}
