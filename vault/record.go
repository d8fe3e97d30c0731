// Package vault provides encrypted credential storage keyed by label.
package vault

import "errors"

var (
	ErrLabelRequired     = errors.New("label is required")
	ErrIdentityRequired  = errors.New("identity is required")
	ErrSecretRequired    = errors.New("secret is required")
	ErrDuplicateLabel    = errors.New("label already exists")
	ErrRecordNotFound    = errors.New("record not found")
	ErrVaultLocked       = errors.New("vault is locked")
	ErrWeakMasterSecret  = errors.New("master secret is too weak")
	ErrWrongMasterSecret = errors.New("wrong master secret")
)

// DefaultCategory is assigned to records created without a category.
const DefaultCategory = "General"

// WellKnownCategories are the categories the record form offers by default.
// The set is open; any string is a valid category.
var WellKnownCategories = []string{"General", "Work", "Personal", "Social", "Finance"}

// Record is one stored credential. Label is the unique key; Secret is the
// only field held encrypted at rest.
type Record struct {
	Label      string
	Identity   string
	Secret     string
	Locator    string
	Category   string
	CreatedAt  int64
	ModifiedAt int64
}

// Validate checks that the required fields are present.
func (r Record) Validate() error {
	if r.Label == "" {
		return ErrLabelRequired
	}
	if r.Identity == "" {
		return ErrIdentityRequired
	}
	if r.Secret == "" {
		return ErrSecretRequired
	}
	return nil
}

// Copy returns a copy of the record.
func (r Record) Copy() Record {
	return Record{
		Label:      r.Label,
		Identity:   r.Identity,
		Secret:     r.Secret,
		Locator:    r.Locator,
		Category:   r.Category,
		CreatedAt:  r.CreatedAt,
		ModifiedAt: r.ModifiedAt,
	}
}
