package couple

import "time"

// Couple status values. A couple is created pending at registration and
// becomes active when the partner redeems the pairing code.
const (
	StatusPending = "pending"
	StatusActive  = "active"
)

// Couple links two user accounts. UserB is nil until the pairing code is
// redeemed. At most one couple exists per user, resolvable by either side.
type Couple struct {
	ID                    string     `json:"id"`
	UserA                 string     `json:"user_a"`
	UserB                 *string    `json:"user_b"`
	PairingCode           string     `json:"pairing_code"`
	Status                string     `json:"status"`
	RelationshipStartDate *string    `json:"relationship_start_date"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// IsActive reports whether both partners are linked.
func (c *Couple) IsActive() bool {
	return c != nil && c.Status == StatusActive
}

// OtherUser returns the partner's id for the given user, or "" when the
// couple has no second member yet or the user is not part of the couple.
func (c *Couple) OtherUser(userID string) string {
	if c == nil {
		return ""
	}
	if c.UserA == userID {
		if c.UserB != nil {
			return *c.UserB
		}
		return ""
	}
	if c.UserB != nil && *c.UserB == userID {
		return c.UserA
	}
	return ""
}

// UpdateCoupleInput holds optional fields for a partial couple update.
type UpdateCoupleInput struct {
	RelationshipStartDate *string `json:"relationship_start_date,omitempty"`
}
