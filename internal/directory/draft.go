package directory

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"swimdesk/internal/models"
	"swimdesk/internal/tiers"
)

var (
	ErrInvalidStatus = errors.New("directory: invalid business status")
	ErrInvalidTier   = errors.New("directory: invalid tier")
	ErrNoChanges     = errors.New("directory: no changes")
	ErrNilRecord     = errors.New("directory: nil record")
)

// Draft is a private working copy of a record opened in the detail view.
// Nothing done to a draft touches the record it was opened from.
type Draft struct {
	before *models.Business
	record *models.Business
}

// BeginEdit opens a draft over a deep copy of b.
func BeginEdit(b *models.Business) (*Draft, error) {
	if b == nil {
		return nil, ErrNilRecord
	}
	return &Draft{
		before: b.Clone(),
		record: b.Clone(),
	}, nil
}

// Record returns the draft's working copy.
func (d *Draft) Record() *models.Business {
	return d.record
}

// ApplyStatusChange sets the draft status.
func (d *Draft) ApplyStatusChange(status models.BusinessStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	d.record.Status = status
	return nil
}

// ApplyTierChange sets the draft tier and relabels the subscription plan with
// the tier's display name and catalog price.
func (d *Draft) ApplyTierChange(t tiers.Tier) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidTier, int(t))
	}
	d.record.Tier = t
	d.record.Subscription.Plan = t.DisplayName()
	d.record.Subscription.Price = tiers.PricingOf(t).Price
	return nil
}

// Patch lists the fields an operator may change from the detail view.
type Patch struct {
	Status *models.BusinessStatus `json:"status,omitempty"`
	Tier   *tiers.Tier            `json:"tier,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Status == nil && p.Tier == nil
}

// PendingChange is an edit that has not been saved. It must be handed to the
// persistence layer; Before is the state the edit was based on and After is
// the full record as it should be stored.
type PendingChange struct {
	BusinessID uuid.UUID        `json:"business_id"`
	Before     *models.Business `json:"before"`
	After      *models.Business `json:"after"`
	Patch      Patch            `json:"patch"`
}

// Commit turns the draft into a pending change. The draft's source record is
// left untouched.
func (d *Draft) Commit() PendingChange {
	var p Patch
	if d.record.Status != d.before.Status {
		s := d.record.Status
		p.Status = &s
	}
	if d.record.Tier != d.before.Tier {
		t := d.record.Tier
		p.Tier = &t
	}
	return PendingChange{
		BusinessID: d.before.ID,
		Before:     d.before.Clone(),
		After:      d.record.Clone(),
		Patch:      p,
	}
}

// ProposeChange applies patch to a draft of record and commits it.
func ProposeChange(record *models.Business, patch Patch) (PendingChange, error) {
	if patch.Empty() {
		return PendingChange{}, ErrNoChanges
	}

	d, err := BeginEdit(record)
	if err != nil {
		return PendingChange{}, err
	}
	if patch.Status != nil {
		if err := d.ApplyStatusChange(*patch.Status); err != nil {
			return PendingChange{}, err
		}
	}
	if patch.Tier != nil {
		if err := d.ApplyTierChange(*patch.Tier); err != nil {
			return PendingChange{}, err
		}
	}
	return d.Commit(), nil
}
