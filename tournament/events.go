package tournament

// EventType enumerates the outbound tournament events fanned out to every
// socket subscribed to a session.
type EventType string

const (
	EventParticipantJoined  EventType = "participant-joined"
	EventParticipantLeft    EventType = "participant-left"
	EventParticipantRemoved EventType = "participant-removed"
	EventStarted            EventType = "started"
	EventMatchResolved      EventType = "match-resolved"
	EventRoundAdvanced      EventType = "round-advanced"
	EventFinished           EventType = "finished"
	EventCancelled          EventType = "cancelled"
)

// Event is one outbound notification. Payload must be JSON-marshallable.
type Event struct {
	Type         EventType   `json:"type"`
	TournamentID string      `json:"tournament_id"`
	Payload      interface{} `json:"payload,omitempty"`
}

// Sink receives outbound events for delivery to subscribed sockets. Publish
// must be fire-and-forget: a slow or dead client must never stall the
// session's command loop.
type Sink interface {
	Publish(event Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(event Event)

func (f SinkFunc) Publish(event Event) { f(event) }

type roundPayload struct {
	Round *Round `json:"round"`
}

type matchResolvedPayload struct {
	MatchupID string       `json:"matchup_id"`
	Round     int          `json:"round"`
	Result    *MatchResult `json:"result"`
}

type finishedPayload struct {
	Champion string         `json:"champion"`
	Rankings map[string]int `json:"rankings"`
}

type participantPayload struct {
	Alias string `json:"alias"`
}
