package vault

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"passkeep/crypto"
	"passkeep/fsutil"
	"passkeep/passgen"
	"passkeep/strength"
)

const (
	// MinMasterScore is the strength score a master secret must reach.
	MinMasterScore = 50
	// MinCandidateScore is the strength score a generated candidate must
	// reach before it is returned.
	MinCandidateScore = 80
	// DefaultCandidateLength is used when GenerateCandidate gets a
	// non-positive length.
	DefaultCandidateLength = 16
)

// Config holds the file paths, KDF cost and logger for a Vault. Explicit
// paths keep vaults isolated, so tests can point them at temp directories.
type Config struct {
	KeyPath     string
	RecordsPath string
	Iterations  int
	Logger      *log.Logger
}

// Vault owns the derived master key, the in-memory record map and the
// encrypted records file. A Vault starts locked; Initialize unlocks it.
// Callers must serialize access across processes; the RWMutex only guards
// a single instance.
type Vault struct {
	mu      sync.RWMutex
	cfg     Config
	logger  *log.Logger
	key     []byte
	records map[string]Record
}

// New creates a locked Vault. A zero Iterations falls back to the default
// cost; a nil Logger falls back to the package default.
func New(cfg Config) *Vault {
	if cfg.Iterations == 0 {
		cfg.Iterations = crypto.DefaultIterations
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Vault{cfg: cfg, logger: logger}
}

// Initialize unlocks the vault with the master secret. It fails with
// ErrWeakMasterSecret below the strength gate and ErrWrongMasterSecret when
// the secret does not match the persisted key material. On first use it
// establishes the key material. Records with unreadable secrets are logged
// and skipped so one corrupt entry cannot block the rest.
func (v *Vault) Initialize(masterSecret string) error {
	if strength.Check(masterSecret).Score < MinMasterScore {
		return ErrWeakMasterSecret
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	key, err := v.loadOrCreateKey(masterSecret)
	if err != nil {
		return err
	}

	records, err := v.loadRecords(key)
	if err != nil {
		crypto.Wipe(key)
		return err
	}

	if v.key != nil {
		crypto.Wipe(v.key)
	}
	v.key = key
	v.records = records
	return nil
}

// Add inserts a new record, stamping both timestamps, and persists the
// vault before returning. Duplicate labels are rejected atomically under
// the write lock.
func (v *Vault) Add(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key == nil {
		return ErrVaultLocked
	}
	if _, exists := v.records[rec.Label]; exists {
		return ErrDuplicateLabel
	}

	if rec.Category == "" {
		rec.Category = DefaultCategory
	}
	now := time.Now().Unix()
	rec.CreatedAt = now
	rec.ModifiedAt = now

	v.records[rec.Label] = rec
	if err := v.save(); err != nil {
		delete(v.records, rec.Label)
		return err
	}
	return nil
}

// Update replaces the record stored under label, preserving CreatedAt and
// stamping ModifiedAt. The replacement may carry a new label as long as it
// is free.
func (v *Vault) Update(label string, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key == nil {
		return ErrVaultLocked
	}
	existing, ok := v.records[label]
	if !ok {
		return ErrRecordNotFound
	}
	if rec.Label != label {
		if _, taken := v.records[rec.Label]; taken {
			return ErrDuplicateLabel
		}
	}

	if rec.Category == "" {
		rec.Category = DefaultCategory
	}
	rec.CreatedAt = existing.CreatedAt
	rec.ModifiedAt = time.Now().Unix()

	delete(v.records, label)
	v.records[rec.Label] = rec
	if err := v.save(); err != nil {
		delete(v.records, rec.Label)
		v.records[label] = existing
		return err
	}
	return nil
}

// Get returns a copy of the record stored under label.
func (v *Vault) Get(label string) (Record, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.key == nil {
		return Record{}, ErrVaultLocked
	}
	rec, ok := v.records[label]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return rec.Copy(), nil
}

// Delete removes the record stored under label and persists the vault.
func (v *Vault) Delete(label string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key == nil {
		return ErrVaultLocked
	}
	existing, ok := v.records[label]
	if !ok {
		return ErrRecordNotFound
	}

	delete(v.records, label)
	if err := v.save(); err != nil {
		v.records[label] = existing
		return err
	}
	return nil
}

// Search returns copies of the records whose label, identity, locator or
// category contains the query, case-insensitively. An empty query matches
// every record.
func (v *Vault) Search(query string) (map[string]Record, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.key == nil {
		return nil, ErrVaultLocked
	}

	query = strings.ToLower(query)
	results := make(map[string]Record)
	for label, rec := range v.records {
		if strings.Contains(strings.ToLower(rec.Label), query) ||
			strings.Contains(strings.ToLower(rec.Identity), query) ||
			strings.Contains(strings.ToLower(rec.Locator), query) ||
			strings.Contains(strings.ToLower(rec.Category), query) {
			results[label] = rec.Copy()
		}
	}
	return results, nil
}

// All returns copies of every record keyed by label.
func (v *Vault) All() (map[string]Record, error) {
	return v.Search("")
}

// Categories returns the distinct categories in use, sorted.
func (v *Vault) Categories() ([]string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.key == nil {
		return nil, ErrVaultLocked
	}

	seen := make(map[string]struct{})
	for _, rec := range v.records {
		seen[rec.Category] = struct{}{}
	}
	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories, nil
}

// GenerateCandidate returns a random credential string of the given length
// that scores at least MinCandidateScore, drawing fresh candidates until
// one qualifies. A non-positive length uses DefaultCandidateLength.
func (v *Vault) GenerateCandidate(length int) (string, error) {
	if length <= 0 {
		length = DefaultCandidateLength
	}
	for {
		candidate, err := passgen.String(length)
		if err != nil {
			return "", err
		}
		if strength.Check(candidate).Score >= MinCandidateScore {
			return candidate, nil
		}
	}
}

// Lock discards the in-memory key and records. Secrets are wiped best
// effort; the vault can be unlocked again with Initialize.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key != nil {
		crypto.Wipe(v.key)
		v.key = nil
	}
	for label := range v.records {
		rec := v.records[label]
		crypto.Wipe([]byte(rec.Secret))
	}
	v.records = nil
}

// loadOrCreateKey derives the vault key from the master secret. On first
// use it generates the salt and writes the key file with an encrypted check
// token; afterwards decrypting that token verifies the secret. Caller must
// hold the write lock.
func (v *Vault) loadOrCreateKey(masterSecret string) ([]byte, error) {
	secret := []byte(masterSecret)

	exists, err := fsutil.Exists(v.cfg.KeyPath)
	if err != nil {
		return nil, err
	}

	if !exists {
		salt, err := crypto.NewSalt()
		if err != nil {
			return nil, err
		}
		key, err := crypto.DeriveKey(secret, salt, v.cfg.Iterations)
		if err != nil {
			return nil, fmt.Errorf("failed to derive vault key: %w", err)
		}
		check, err := crypto.Encrypt(key, []byte(keyCheckToken))
		if err != nil {
			crypto.Wipe(key)
			return nil, fmt.Errorf("failed to encrypt check token: %w", err)
		}
		if err := saveKeyFile(v.cfg.KeyPath, &keyFile{Salt: salt, Check: check}); err != nil {
			crypto.Wipe(key)
			return nil, err
		}
		return key, nil
	}

	kf, err := loadKeyFile(v.cfg.KeyPath)
	if err != nil {
		return nil, err
	}
	key, err := crypto.DeriveKey(secret, kf.Salt, v.cfg.Iterations)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault key: %w", err)
	}
	token, err := crypto.Decrypt(key, kf.Check)
	if err != nil || string(token) != keyCheckToken {
		crypto.Wipe(key)
		return nil, ErrWrongMasterSecret
	}
	return key, nil
}

// loadRecords decrypts the persisted records. Entries whose secret cannot
// be decrypted are logged and skipped.
func (v *Vault) loadRecords(key []byte) (map[string]Record, error) {
	stored, err := loadStoredRecords(v.cfg.RecordsPath)
	if err != nil {
		return nil, err
	}

	records := make(map[string]Record, len(stored))
	for label, sr := range stored {
		secret, err := crypto.DecryptFromString(key, sr.Secret)
		if err != nil {
			v.logger.Warn("skipping unreadable record", "label", label, "err", err)
			continue
		}
		category := sr.Category
		if category == "" {
			category = DefaultCategory
		}
		records[label] = Record{
			Label:      label,
			Identity:   sr.Identity,
			Secret:     secret,
			Locator:    sr.Locator,
			Category:   category,
			CreatedAt:  sr.CreatedAt,
			ModifiedAt: sr.ModifiedAt,
		}
	}
	return records, nil
}

// save persists the full record map, encrypting each secret. Caller must
// hold the write lock.
func (v *Vault) save() error {
	stored := make(map[string]storedRecord, len(v.records))
	for label, rec := range v.records {
		ciphertext, err := crypto.EncryptToString(v.key, rec.Secret)
		if err != nil {
			return fmt.Errorf("failed to encrypt secret for %q: %w", label, err)
		}
		stored[label] = storedRecord{
			Identity:   rec.Identity,
			Secret:     ciphertext,
			Locator:    rec.Locator,
			Category:   rec.Category,
			CreatedAt:  rec.CreatedAt,
			ModifiedAt: rec.ModifiedAt,
		}
	}
	return saveStoredRecords(v.cfg.RecordsPath, stored)
}
