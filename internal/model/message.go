package model

import "time"

// Priority indicates urgency of a proactive message.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
	PriorityUrgent Priority = 4
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// MessageType is the trigger family that produced a message.
type MessageType string

const (
	MessageProximity     MessageType = "proximity"
	MessageTimeSensitive MessageType = "time_sensitive"
	MessageWeatherPivot  MessageType = "weather_pivot"
	MessageRest          MessageType = "rest"
	MessageLodging       MessageType = "lodging"
	MessageBooking       MessageType = "booking"
)

// ActionType says what the front end should do when a message is acted on.
type ActionType string

const (
	ActionNavigate ActionType = "navigate"
	ActionBook     ActionType = "book"
	ActionView     ActionType = "view"
	ActionSearch   ActionType = "search"
)

// MessageAction is the optional call to action attached to a message.
type MessageAction struct {
	Label   string            `json:"label"`
	Type    ActionType        `json:"type"`
	Payload map[string]string `json:"payload,omitempty"`
}

// ProactiveMessage is an unsolicited, time-boxed suggestion.
// Only Dismiss mutates it after creation.
type ProactiveMessage struct {
	ID          string         `json:"id"`
	Type        MessageType    `json:"type"`
	Category    string         `json:"category"`
	Message     string         `json:"message"`
	Detail      string         `json:"detail,omitempty"`
	Priority    Priority       `json:"priority"`
	ActivityID  string         `json:"activityId,omitempty"`
	Action      *MessageAction `json:"action,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	IsDismissed bool           `json:"isDismissed"`
}

// Expired reports whether the message is past its expiry at now.
func (m *ProactiveMessage) Expired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && !now.Before(m.ExpiresAt)
}

// Visible reports whether the message should still be shown at now.
func (m *ProactiveMessage) Visible(now time.Time) bool {
	return !m.IsDismissed && !m.Expired(now)
}
