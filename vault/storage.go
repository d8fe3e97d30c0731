package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"passkeep/crypto"
	"passkeep/fsutil"
)

// storedRecord is the on-disk shape of a record. Secret holds base64
// AES-GCM ciphertext; every other field is clear text.
type storedRecord struct {
	Identity   string `json:"identity"`
	Secret     string `json:"secret"`
	Locator    string `json:"locator"`
	Category   string `json:"category"`
	CreatedAt  int64  `json:"created_at"`
	ModifiedAt int64  `json:"modified_at"`
}

// keyFile is the on-disk key material. Check is a fixed token encrypted
// under the derived key; decrypting it proves the master secret without
// persisting the key itself.
type keyFile struct {
	Salt  []byte `json:"salt"`
	Check []byte `json:"check"`
}

const keyCheckToken = "passkeep.check.v1"

// loadKeyFile reads and parses the key file.
func loadKeyFile(path string) (*keyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("failed to parse key file: %w", err)
	}
	return &kf, nil
}

// saveKeyFile persists the key material atomically with owner-only access.
func saveKeyFile(path string, kf *keyFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal key file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0600); err != nil {
		return fmt.Errorf("failed to save key file: %w", err)
	}
	return nil
}

// loadStoredRecords reads the records file. A missing file is an empty
// vault, not an error.
func loadStoredRecords(path string) (map[string]storedRecord, error) {
	ok, err := fsutil.Exists(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]storedRecord{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	stored := map[string]storedRecord{}
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}
	return stored, nil
}

// saveStoredRecords persists the full record map atomically.
func saveStoredRecords(path string, stored map[string]storedRecord) error {
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0600); err != nil {
		return fmt.Errorf("failed to save records: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config rooted under the user's home directory.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(home, ".passkeep")
	return Config{
		KeyPath:     filepath.Join(dir, "vault.key"),
		RecordsPath: filepath.Join(dir, "records.json"),
		Iterations:  crypto.DefaultIterations,
	}, nil
}
