package entity

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies an owned entity collection.
type Kind string

const (
	KindEvent        Kind = "event"
	KindTask         Kind = "task"
	KindShoppingItem Kind = "shopping_item"
	KindHabit        Kind = "habit"
	KindRequest      Kind = "request"
)

// Request status values. Pending requests resolve to exactly one terminal
// state; there is no transition out of approved or rejected.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// EventTypeRequest tags calendar events synthesized from approved requests.
const EventTypeRequest = "request"

// localIDPrefix marks records that only exist in the local mirror because the
// remote store confirmed a create without returning the stored row.
const localIDPrefix = "local_"

// LocalID generates an identifier for a locally held temporary record,
// distinguishable from server-assigned ids by its prefix.
func LocalID() string {
	return localIDPrefix + uuid.NewString()
}

// IsLocalID reports whether an id was generated by LocalID.
func IsLocalID(id string) bool {
	return len(id) > len(localIDPrefix) && id[:len(localIDPrefix)] == localIDPrefix
}

// Event is a calendar entry.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`     // YYYY-MM-DD
	EndDate     *string   `json:"end_date"` // YYYY-MM-DD
	Time        *string   `json:"time"`     // HH:MM
	Type        string    `json:"type"`
	Location    string    `json:"location"`
	Color       string    `json:"color"`
	AllDay      bool      `json:"all_day"`
	CreatedBy   string    `json:"created_by"`
	CoupleID    *string   `json:"couple_id"`
	IsPersonal  bool      `json:"is_personal"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Task is a to-do item.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	AssignedTo  *string    `json:"assigned_to"`
	DueDate     *string    `json:"due_date"` // YYYY-MM-DD
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedBy   string     `json:"created_by"`
	CoupleID    *string    `json:"couple_id"`
	IsPersonal  bool       `json:"is_personal"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ShoppingItem is an entry on one of the shopping lists.
type ShoppingItem struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity"`
	ListType   string    `json:"list_type"` // daily, home, special
	Completed  bool      `json:"completed"`
	CreatedBy  string    `json:"created_by"`
	CoupleID   *string   `json:"couple_id"`
	IsPersonal bool      `json:"is_personal"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Habit tracks a recurring practice with per-day completion and a streak.
type Habit struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Frequency     string          `json:"frequency"` // daily, weekdays, weekends, custom
	TargetDays    []int           `json:"target_days"`
	TargetCount   int             `json:"target_count"`
	Time          *string         `json:"time"`
	AssignedTo    *string         `json:"assigned_to"`
	Progress      map[string]bool `json:"progress"` // YYYY-MM-DD -> done
	Streak        int             `json:"streak"`
	LastCompleted *string         `json:"last_completed"` // YYYY-MM-DD
	CreatedBy     string          `json:"created_by"`
	CoupleID      *string         `json:"couple_id"`
	IsPersonal    bool            `json:"is_personal"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Request is an approval-based ask from one partner to the other.
type Request struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Priority      string     `json:"priority"`
	FromUser      string     `json:"from_user"`
	ToUser        string     `json:"to_user"`
	Status        string     `json:"status"`
	DueDate       *string    `json:"due_date"` // YYYY-MM-DD
	RejectReason  *string    `json:"reject_reason"`
	LinkedEventID *string    `json:"linked_event_id"`
	ResponseDate  *time.Time `json:"response_date"`
	CreatedBy     string     `json:"created_by"`
	CoupleID      *string    `json:"couple_id"`
	IsPersonal    bool       `json:"is_personal"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CreateEventInput holds the fields for a new event. Personal forces the
// entity to be stamped personal even when an active couple exists.
type CreateEventInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	EndDate     *string `json:"end_date"`
	Time        *string `json:"time"`
	Type        string  `json:"type"`
	Location    string  `json:"location"`
	Color       string  `json:"color"`
	AllDay      bool    `json:"all_day"`
	Personal    bool    `json:"personal"`
}

// UpdateEventInput holds optional fields for a partial event update.
type UpdateEventInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Date        *string `json:"date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
	Time        *string `json:"time,omitempty"`
	Type        *string `json:"type,omitempty"`
	Location    *string `json:"location,omitempty"`
	Color       *string `json:"color,omitempty"`
	AllDay      *bool   `json:"all_day,omitempty"`
}

// CreateTaskInput holds the fields for a new task.
type CreateTaskInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	AssignedTo  *string `json:"assigned_to"`
	DueDate     *string `json:"due_date"`
	Personal    bool    `json:"personal"`
}

// UpdateTaskInput holds optional fields for a partial task update.
type UpdateTaskInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
}

// CreateShoppingItemInput holds the fields for a new shopping item.
type CreateShoppingItemInput struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	ListType string `json:"list_type"`
	Personal bool   `json:"personal"`
}

// UpdateShoppingItemInput holds optional fields for a partial item update.
type UpdateShoppingItemInput struct {
	Name     *string `json:"name,omitempty"`
	Quantity *int    `json:"quantity,omitempty"`
	ListType *string `json:"list_type,omitempty"`
}

// CreateHabitInput holds the fields for a new habit.
type CreateHabitInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Frequency   string  `json:"frequency"`
	TargetDays  []int   `json:"target_days"`
	TargetCount int     `json:"target_count"`
	Time        *string `json:"time"`
	AssignedTo  *string `json:"assigned_to"`
	Personal    bool    `json:"personal"`
}

// UpdateHabitInput holds optional fields for a partial habit update.
type UpdateHabitInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Frequency   *string `json:"frequency,omitempty"`
	TargetDays  *[]int  `json:"target_days,omitempty"`
	TargetCount *int    `json:"target_count,omitempty"`
	Time        *string `json:"time,omitempty"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
}

// CreateRequestInput holds the fields for a new request addressed to the
// partner.
type CreateRequestInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
}

// UpdateRequestInput holds optional fields for editing a still-pending
// request.
type UpdateRequestInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
}
