package models

import "time"

type OnboardingStatus string

const (
	OnboardingPending OnboardingStatus = "Pending"
	OnboardingDone    OnboardingStatus = "Done"
)

// User identity is issued externally (the subject claim of the bearer
// credential); rows are created lazily on first authenticated contact.
type User struct {
	ID               string
	Name             string
	Age              *int
	Onboarding       OnboardingStatus
	TrialSecondsUsed int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type RoomCondition string

const (
	RoomOn  RoomCondition = "on"
	RoomOff RoomCondition = "off"
)

// Room is one-to-one with User; its name is derived from the user id.
type Room struct {
	ID        string
	UserID    string
	RoomName  string
	Condition RoomCondition
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Session struct {
	ID         string
	UserID     string
	RoomID     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// ActiveSession is a session joined with its room for listing.
type ActiveSession struct {
	ID            string
	StartedAt     time.Time
	RoomName      string
	RoomCondition RoomCondition
}
