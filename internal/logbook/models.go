package logbook

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies a battery log entry.
type EventType string

const (
	EventCharging EventType = "Charging"
	EventDraining EventType = "Draining"
	EventChecking EventType = "Checking in the service"
)

func (e EventType) Valid() bool {
	switch e {
	case EventCharging, EventDraining, EventChecking:
		return true
	}
	return false
}

type Battery struct {
	ID              uuid.UUID `json:"id"`
	LastReplacement time.Time `json:"lastReplacement"`
	Brand           string    `json:"batteryBrand"`
	Capacity        string    `json:"capacity"`
	ServiceLife     string    `json:"serviceLife"`
	Notes           string    `json:"notes"`
}

type Note struct {
	ID        uuid.UUID `json:"id"`
	Date      time.Time `json:"date"`
	EventType EventType `json:"eventType"`
	Note      string    `json:"note"`
	ImageData []byte    `json:"imageData,omitempty"`
}

type Reminder struct {
	ID           uuid.UUID `json:"id"`
	ReminderDate time.Time `json:"reminderDate"`
	ReminderType string    `json:"reminderType"`
}
