package vault

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"passkeep/crypto"
	"passkeep/strength"
)

const testMaster = "Correct-Horse-Battery-1!"

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		KeyPath:     filepath.Join(dir, "vault.key"),
		RecordsPath: filepath.Join(dir, "records.json"),
		Iterations:  crypto.MinIterations,
		Logger:      log.New(io.Discard),
	}
}

func openVault(t *testing.T, cfg Config) *Vault {
	t.Helper()
	v := New(cfg)
	if err := v.Initialize(testMaster); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return v
}

func TestInitializeRejectsWeakSecret(t *testing.T) {
	v := New(testConfig(t))

	if err := v.Initialize("weak"); !errors.Is(err, ErrWeakMasterSecret) {
		t.Errorf("Initialize() error = %v, want ErrWeakMasterSecret", err)
	}
}

func TestInitializeRejectsWrongSecret(t *testing.T) {
	cfg := testConfig(t)
	openVault(t, cfg).Lock()

	v := New(cfg)
	if err := v.Initialize("Different-Strong-Secret-2!"); !errors.Is(err, ErrWrongMasterSecret) {
		t.Errorf("Initialize() error = %v, want ErrWrongMasterSecret", err)
	}
}

func TestAddGetRoundTrip(t *testing.T) {
	v := openVault(t, testConfig(t))
	defer v.Lock()

	if err := v.Add(Record{Label: "github", Identity: "u", Secret: "p"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	rec, err := v.Get("github")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Identity != "u" || rec.Secret != "p" {
		t.Errorf("Get() = %+v, want identity %q secret %q", rec, "u", "p")
	}
	if rec.Category != DefaultCategory {
		t.Errorf("Get() category = %q, want default %q", rec.Category, DefaultCategory)
	}
	if rec.CreatedAt == 0 || rec.ModifiedAt != rec.CreatedAt {
		t.Errorf("timestamps not stamped: created %d modified %d", rec.CreatedAt, rec.ModifiedAt)
	}
}

func TestAddValidation(t *testing.T) {
	v := openVault(t, testConfig(t))
	defer v.Lock()

	tests := []struct {
		name    string
		rec     Record
		wantErr error
	}{
		{"missing label", Record{Identity: "u", Secret: "p"}, ErrLabelRequired},
		{"missing identity", Record{Label: "l", Secret: "p"}, ErrIdentityRequired},
		{"missing secret", Record{Label: "l", Identity: "u"}, ErrSecretRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := v.Add(tt.rec); !errors.Is(err, tt.wantErr) {
				t.Errorf("Add() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddRejectsDuplicateLabel(t *testing.T) {
	v := openVault(t, testConfig(t))
	defer v.Lock()

	if err := v.Add(Record{Label: "mail", Identity: "a", Secret: "1"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := v.Add(Record{Label: "mail", Identity: "b", Secret: "2"}); !errors.Is(err, ErrDuplicateLabel) {
		t.Errorf("Add() error = %v, want ErrDuplicateLabel", err)
	}

	rec, err := v.Get("mail")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Identity != "a" {
		t.Errorf("duplicate Add() overwrote record: identity = %q", rec.Identity)
	}
}

func TestUpdatePreservesCreatedAt(t *testing.T) {
	v := openVault(t, testConfig(t))
	defer v.Lock()

	if err := v.Add(Record{Label: "mail", Identity: "a", Secret: "1"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	created, _ := v.Get("mail")

	if err := v.Update("mail", Record{Label: "mail", Identity: "b", Secret: "2", Category: "Work"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	rec, err := v.Get("mail")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Identity != "b" || rec.Secret != "2" || rec.Category != "Work" {
		t.Errorf("Update() not applied: %+v", rec)
	}
	if rec.CreatedAt != created.CreatedAt {
		t.Errorf("Update() changed CreatedAt: %d != %d", rec.CreatedAt, created.CreatedAt)
	}

	if err := v.Update("absent", Record{Label: "absent", Identity: "x", Secret: "y"}); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Update() error = %v, want ErrRecordNotFound", err)
	}
}

func TestDeleteThenGet(t *testing.T) {
	v := openVault(t, testConfig(t))
	defer v.Lock()

	if err := v.Add(Record{Label: "gone", Identity: "u", Secret: "p"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := v.Delete("gone"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := v.Get("gone"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrRecordNotFound", err)
	}
	if err := v.Delete("gone"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Delete() on absent label error = %v, want ErrRecordNotFound", err)
	}
}

func TestSearch(t *testing.T) {
	v := openVault(t, testConfig(t))
	defer v.Lock()

	records := []Record{
		{Label: "github", Identity: "dev@example.com", Secret: "1", Locator: "https://github.com"},
		{Label: "bank", Identity: "me", Secret: "2", Category: "Finance"},
		{Label: "forum", Identity: "GitHubFan", Secret: "3"},
	}
	for _, rec := range records {
		if err := v.Add(rec); err != nil {
			t.Fatalf("Add(%q) error = %v", rec.Label, err)
		}
	}

	tests := []struct {
		name       string
		query      string
		wantLabels []string
	}{
		{"empty query matches all", "", []string{"bank", "forum", "github"}},
		{"case-insensitive label", "GIT", []string{"forum", "github"}},
		{"identity match", "dev@", []string{"github"}},
		{"locator match", "https", []string{"github"}},
		{"category match", "finance", []string{"bank"}},
		{"no match", "zzz", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := v.Search(tt.query)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			var labels []string
			for label := range results {
				labels = append(labels, label)
			}
			sort.Strings(labels)
			if !reflect.DeepEqual(labels, tt.wantLabels) {
				t.Errorf("Search(%q) labels = %v, want %v", tt.query, labels, tt.wantLabels)
			}
		})
	}
}

func TestCategories(t *testing.T) {
	v := openVault(t, testConfig(t))
	defer v.Lock()

	for _, rec := range []Record{
		{Label: "a", Identity: "u", Secret: "p", Category: "Work"},
		{Label: "b", Identity: "u", Secret: "p", Category: "Finance"},
		{Label: "c", Identity: "u", Secret: "p"},
	} {
		if err := v.Add(rec); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	got, err := v.Categories()
	if err != nil {
		t.Fatalf("Categories() error = %v", err)
	}
	want := []string{"Finance", DefaultCategory, "Work"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Categories() = %v, want %v", got, want)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	cfg := testConfig(t)

	v := openVault(t, cfg)
	if err := v.Add(Record{Label: "site", Identity: "user", Secret: "s3cret", Locator: "https://site.example", Category: "Social"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	saved, _ := v.Get("site")
	v.Lock()

	reopened := openVault(t, cfg)
	defer reopened.Lock()

	rec, err := reopened.Get("site")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if !reflect.DeepEqual(rec, saved) {
		t.Errorf("reloaded record = %+v, want %+v", rec, saved)
	}
}

func TestSecretNotStoredInClearText(t *testing.T) {
	cfg := testConfig(t)
	v := openVault(t, cfg)
	defer v.Lock()

	if err := v.Add(Record{Label: "site", Identity: "user", Secret: "hunter2-plaintext"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	data, err := os.ReadFile(cfg.RecordsPath)
	if err != nil {
		t.Fatalf("failed to read records file: %v", err)
	}
	if strings.Contains(string(data), "hunter2-plaintext") {
		t.Error("records file contains the clear-text secret")
	}
}

func TestPartialCorruptionSkipsOnlyBadRecord(t *testing.T) {
	cfg := testConfig(t)

	v := openVault(t, cfg)
	if err := v.Add(Record{Label: "good", Identity: "u", Secret: "p"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := v.Add(Record{Label: "bad", Identity: "u", Secret: "p"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	v.Lock()

	// Corrupt the "bad" record's ciphertext on disk.
	data, err := os.ReadFile(cfg.RecordsPath)
	if err != nil {
		t.Fatalf("failed to read records file: %v", err)
	}
	var stored map[string]map[string]any
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("failed to parse records file: %v", err)
	}
	stored["bad"]["secret"] = "QUJDREVGRw==" // valid base64, invalid ciphertext
	data, err = json.Marshal(stored)
	if err != nil {
		t.Fatalf("failed to re-marshal records: %v", err)
	}
	if err := os.WriteFile(cfg.RecordsPath, data, 0600); err != nil {
		t.Fatalf("failed to rewrite records file: %v", err)
	}

	reopened := openVault(t, cfg)
	defer reopened.Lock()

	if _, err := reopened.Get("good"); err != nil {
		t.Errorf("Get(good) error = %v, intact record should survive", err)
	}
	if _, err := reopened.Get("bad"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Get(bad) error = %v, corrupted record should be skipped", err)
	}
}

func TestGenerateCandidate(t *testing.T) {
	v := New(testConfig(t))

	for _, length := range []int{16, 24} {
		candidate, err := v.GenerateCandidate(length)
		if err != nil {
			t.Fatalf("GenerateCandidate(%d) error = %v", length, err)
		}
		if len(candidate) != length {
			t.Errorf("GenerateCandidate(%d) length = %d", length, len(candidate))
		}
		if score := strength.Check(candidate).Score; score < MinCandidateScore {
			t.Errorf("GenerateCandidate(%d) score = %d, want >= %d", length, score, MinCandidateScore)
		}
	}

	candidate, err := v.GenerateCandidate(0)
	if err != nil {
		t.Fatalf("GenerateCandidate(0) error = %v", err)
	}
	if len(candidate) != DefaultCandidateLength {
		t.Errorf("GenerateCandidate(0) length = %d, want %d", len(candidate), DefaultCandidateLength)
	}
}

func TestLockedVaultRejectsOperations(t *testing.T) {
	v := New(testConfig(t))

	if err := v.Add(Record{Label: "l", Identity: "u", Secret: "p"}); !errors.Is(err, ErrVaultLocked) {
		t.Errorf("Add() on locked vault error = %v, want ErrVaultLocked", err)
	}
	if _, err := v.Get("l"); !errors.Is(err, ErrVaultLocked) {
		t.Errorf("Get() on locked vault error = %v, want ErrVaultLocked", err)
	}
	if _, err := v.Search("x"); !errors.Is(err, ErrVaultLocked) {
		t.Errorf("Search() on locked vault error = %v, want ErrVaultLocked", err)
	}
	if err := v.Delete("l"); !errors.Is(err, ErrVaultLocked) {
		t.Errorf("Delete() on locked vault error = %v, want ErrVaultLocked", err)
	}
}

func TestLockDiscardsState(t *testing.T) {
	cfg := testConfig(t)
	v := openVault(t, cfg)

	if err := v.Add(Record{Label: "l", Identity: "u", Secret: "p"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	v.Lock()
	if _, err := v.Get("l"); !errors.Is(err, ErrVaultLocked) {
		t.Errorf("Get() after Lock() error = %v, want ErrVaultLocked", err)
	}

	// Unlocking again restores access to the persisted records.
	if err := v.Initialize(testMaster); err != nil {
		t.Fatalf("Initialize() after Lock() error = %v", err)
	}
	defer v.Lock()
	if _, err := v.Get("l"); err != nil {
		t.Errorf("Get() after re-unlock error = %v", err)
	}
}

