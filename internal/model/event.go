package model

type EventType string

const (
	EventRewardGranted     EventType = "reward_granted"
	EventAttemptSubmitted  EventType = "attempt_submitted"
	EventAttemptRejected   EventType = "attempt_rejected"
	EventRankPromoted      EventType = "rank_promoted"
	EventPlatinumActivated EventType = "platinum_activated"
	EventPlatinumExpired   EventType = "platinum_expired"
)

type Event struct {
	Type    EventType      `json:"type"`
	UserID  int64          `json:"user_id"`
	Payload map[string]any `json:"payload,omitempty"`
}
