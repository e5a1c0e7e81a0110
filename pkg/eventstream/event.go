package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/missioncontrol/pkg/mission"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypePrefix prefixes every change event type, e.g.
	// "mission.approval.updated".
	EventTypePrefix = "mission."
)

// Entities carried by change events.
const (
	EntityBoard    = "board"
	EntityAgent    = "agent"
	EntityApproval = "approval"
	EntityMemory   = "memory"
	EntityTask     = "task"
	EntityComment  = "comment"
)

// Verbs carried by change events.
const (
	VerbCreated = "created"
	VerbUpdated = "updated"
)

// ChangeEvent is a transport-neutral notification that a mission control
// record was written. The activity streams poll storage directly; change
// events let systems outside the API follow the same writes.
type ChangeEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Entity        string      `json:"entity"`
	EntityID      string      `json:"entity_id"`
	Payload       any         `json:"payload"`
}

// EventSource identifies the tenant and actor behind a change.
type EventSource struct {
	OrgID     string `json:"org_id"`
	BoardID   string `json:"board_id,omitempty"`
	ActorType string `json:"actor_type,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
}

// NewChangeEvent builds a v1 change event with a fresh id.
func NewChangeEvent(entity, verb, entityID string, source EventSource, payload any) *ChangeEvent {
	return &ChangeEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypePrefix + entity + "." + verb,
		EventID:       uuid.NewString(),
		EmittedAt:     mission.Now(),
		Source:        source,
		Entity:        entity,
		EntityID:      entityID,
		Payload:       payload,
	}
}

// PartitionKey groups the events of one board so consumers see them in
// order. Events without a board fall back to the organization.
func (e *ChangeEvent) PartitionKey() string {
	if e.Source.BoardID != "" {
		return e.Source.BoardID
	}
	return e.Source.OrgID
}
