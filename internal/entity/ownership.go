package entity

import "github.com/duetapp/duet/internal/couple"

// Ownership is the (is_personal, couple_id) stamp assigned to an entity at
// creation. The two fields move together: a personal entity never carries a
// couple id, a couple-scoped entity always does.
type Ownership struct {
	CoupleID   *string
	IsPersonal bool
}

// DecideOwnership computes the ownership stamp for a new entity. The entity
// is personal when the caller asked for that explicitly, when no couple
// context resolved, or when the couple has not been activated by the partner
// yet. Otherwise it is scoped to the couple.
//
// The function is pure: the stamp depends only on its arguments.
func DecideOwnership(resolved *couple.Couple, explicitPersonal bool) Ownership {
	if explicitPersonal || !resolved.IsActive() {
		return Ownership{IsPersonal: true}
	}
	id := resolved.ID
	return Ownership{CoupleID: &id, IsPersonal: false}
}
