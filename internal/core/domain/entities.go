package domain

import (
	"time"
)

// SkillLevel is the self-assessed level of a player or the level an event targets.
type SkillLevel string

const (
	SkillAny          SkillLevel = "any"
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
)

// Valid reports whether s is one of the known levels. The empty level is valid
// and means "not specified".
func (s SkillLevel) Valid() bool {
	switch s {
	case "", SkillAny, SkillBeginner, SkillIntermediate, SkillAdvanced:
		return true
	}
	return false
}

// Profile is a player's public profile.
type Profile struct {
	ID           string     `json:"id"`
	DisplayName  string     `json:"display_name"`
	Bio          string     `json:"bio,omitempty"`
	Sports       []string   `json:"sports"`
	SkillLevel   SkillLevel `json:"skill_level,omitempty"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	HomeLocation *GeoPoint  `json:"home_location,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ProfileUpdate carries the fields a PATCH may change. Nil means unchanged.
type ProfileUpdate struct {
	DisplayName  *string     `json:"display_name,omitempty"`
	Bio          *string     `json:"bio,omitempty"`
	Sports       []string    `json:"sports,omitempty"`
	SkillLevel   *SkillLevel `json:"skill_level,omitempty"`
	AvatarURL    *string     `json:"avatar_url,omitempty"`
	HomeLocation *GeoPoint   `json:"home_location,omitempty"`
}

// EventStatus is the lifecycle state of a meetup.
type EventStatus string

const (
	EventOpen      EventStatus = "open"
	EventFull      EventStatus = "full"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"
)

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventOpen, EventFull, EventCancelled, EventCompleted:
		return true
	}
	return false
}

// Joinable reports whether players can still sign up.
func (s EventStatus) Joinable() bool { return s == EventOpen }

// Closed reports whether the event will not take place (again).
func (s EventStatus) Closed() bool { return s == EventCancelled || s == EventCompleted }

// Event is a sports meetup hosted by a player.
type Event struct {
	ID               string      `json:"id"`
	HostID           string      `json:"host_id"`
	Title            string      `json:"title"`
	Description      string      `json:"description,omitempty"`
	Sport            string      `json:"sport"`
	SkillLevel       SkillLevel  `json:"skill_level,omitempty"`
	Status           EventStatus `json:"status"`
	Venue            string      `json:"venue,omitempty"`
	Location         *GeoPoint   `json:"location,omitempty"`
	StartsAt         time.Time   `json:"starts_at"`
	EndsAt           time.Time   `json:"ends_at"`
	Capacity         int         `json:"capacity"`
	ParticipantCount int         `json:"participant_count"`
	DistanceKm       *float64    `json:"distance_km,omitempty"` // computed field
	CreatedAt        time.Time   `json:"created_at"`
}

// Coordinates returns the event location, if it has one.
func (e Event) Coordinates() (GeoPoint, bool) {
	if e.Location == nil {
		return GeoPoint{}, false
	}
	return *e.Location, true
}

// SpotsLeft is the number of places still free.
func (e Event) SpotsLeft() int {
	if n := e.Capacity - e.ParticipantCount; n > 0 {
		return n
	}
	return 0
}

// EventFilter narrows event listings and searches.
type EventFilter struct {
	Sport  string      `json:"sport,omitempty"`
	Status EventStatus `json:"status,omitempty"`
	Query  string      `json:"query,omitempty"`
	From   *time.Time  `json:"from,omitempty"`
	To     *time.Time  `json:"to,omitempty"`
	Near   *GeoQuery   `json:"near,omitempty"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// Participant records a player's place in an event.
type Participant struct {
	EventID   string    `json:"event_id"`
	ProfileID string    `json:"profile_id"`
	JoinedAt  time.Time `json:"joined_at"`
}

// EventDetails is an event together with its host and participants.
type EventDetails struct {
	Event        *Event    `json:"event"`
	Host         *Profile  `json:"host,omitempty"`
	Participants []Profile `json:"participants"`
}

// Conversation is a 1:1 chat thread. ParticipantA always sorts before
// ParticipantB so that a pair of players maps to exactly one conversation.
type Conversation struct {
	ID            string     `json:"id"`
	ParticipantA  string     `json:"participant_a"`
	ParticipantB  string     `json:"participant_b"`
	EventID       *string    `json:"event_id,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Includes reports whether profileID takes part in the conversation.
func (c Conversation) Includes(profileID string) bool {
	return c.ParticipantA == profileID || c.ParticipantB == profileID
}

// OrderedPair returns a and b in canonical conversation order.
func OrderedPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Message is a single chat message.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sent_at"`
}
