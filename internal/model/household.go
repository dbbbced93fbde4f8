package model

import "time"

type CalendarEvent struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	AllDay      bool      `json:"all_day"`
	MemberID    *int64    `json:"member_id"`
	Location    string    `json:"location"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type MealSlot string

const (
	MealBreakfast MealSlot = "breakfast"
	MealLunch     MealSlot = "lunch"
	MealDinner    MealSlot = "dinner"
	MealSnack     MealSlot = "snack"
)

func (s MealSlot) Valid() bool {
	switch s {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

type Meal struct {
	ID        int64     `json:"id"`
	Date      string    `json:"date"`
	Slot      MealSlot  `json:"slot"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes"`
	CookID    *int64    `json:"cook_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Homework struct {
	ID        int64      `json:"id"`
	MemberID  int64      `json:"member_id"`
	Subject   string     `json:"subject"`
	Title     string     `json:"title"`
	Notes     string     `json:"notes"`
	DueDate   string     `json:"due_date"`
	Done      bool       `json:"done"`
	DoneAt    *time.Time `json:"done_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type Belt struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Rank  int    `json:"rank"`
}

type Promotion struct {
	ID        int64     `json:"id"`
	MemberID  int64     `json:"member_id"`
	Belt      Belt      `json:"belt"`
	AwardedOn string    `json:"awarded_on"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// KarateProgress is a member's promotion history, newest first.
type KarateProgress struct {
	MemberID    int64       `json:"member_id"`
	CurrentBelt *Belt       `json:"current_belt"`
	NextBelt    *Belt       `json:"next_belt"`
	Promotions  []Promotion `json:"promotions"`
}

type PushSubscription struct {
	ID         int64     `json:"id"`
	MemberID   int64     `json:"member_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
