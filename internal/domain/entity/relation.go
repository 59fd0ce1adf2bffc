package entity

import (
	"errors"
	"fmt"
)

// Relation is a registered many-to-many association between two classes.
type Relation struct {
	// Left is the owning side, e.g. Setup in setups-zones.
	Left Class
	// Right is the associated side.
	Right Class
}

// Registered relations.
//
//nolint:gochecknoglobals // Static registry of the closed relation set.
var (
	SetupsZones    = Relation{Left: Setup, Right: Zone}
	WorkersActions = Relation{Left: Worker, Right: Action}
)

// ErrUnknownRelation is returned for pairs that are not registered.
var ErrUnknownRelation = errors.New("unknown relation")

// Relations returns all registered relations.
func Relations() []Relation {
	return []Relation{SetupsZones, WorkersActions}
}

// ParseRelation resolves a relation from its two class names.
func ParseRelation(left, right string) (Relation, error) {
	l, err := ParseClass(left)
	if err != nil {
		return Relation{}, err
	}

	r, err := ParseClass(right)
	if err != nil {
		return Relation{}, err
	}

	for _, rel := range Relations() {
		if rel.Left == l && rel.Right == r {
			return rel, nil
		}
	}

	return Relation{}, fmt.Errorf("%w: %s-%s", ErrUnknownRelation, l, r)
}

// Endpoint builds the path of an operation, e.g. "/setupszones/add".
func (r Relation) Endpoint(op Operation) string {
	return "/" + r.Left.Collection() + r.Right.Collection() + "/" + string(op)
}

// LeftKey is the payload key of the left identifier, e.g. "setup_id".
func (r Relation) LeftKey() string {
	return r.Left.Name() + "_" + IDField
}

// RightKey is the payload key of the right identifier, e.g. "zone_id".
func (r Relation) RightKey() string {
	return r.Right.Name() + "_" + IDField
}

// Payload builds the request body naming one association.
func (r Relation) Payload(rec Record) map[string]any {
	return map[string]any{
		r.LeftKey():  rec.LeftID,
		r.RightKey(): rec.RightID,
	}
}

// String implements fmt.Stringer.
func (r Relation) String() string {
	return r.Left.Collection() + r.Right.Collection()
}

// Record is a single association: it has no identity beyond the pair.
type Record struct {
	LeftID  int64 `json:"left_id"`
	RightID int64 `json:"right_id"`
}
