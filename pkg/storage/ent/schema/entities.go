package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// timestampSize fits mission.TimestampLayout.
const timestampSize = 32

func id() ent.Field {
	return field.String("id").MaxLen(64).Unique().Immutable().NotEmpty()
}

func ref(name string) ent.Field {
	return field.String(name).MaxLen(64).Default("")
}

func timestamp(name string) ent.Field {
	return field.String(name).MaxLen(timestampSize)
}

func optionalTimestamp(name string) ent.Field {
	return field.String(name).MaxLen(timestampSize).Optional()
}

// Board holds tenant-scoped boards.
type Board struct {
	ent.Schema
}

func (Board) Fields() []ent.Field {
	return []ent.Field{
		id(),
		ref("org_id"),
		field.String("name").MaxLen(255).Default(""),
		field.String("slug").MaxLen(255).Default(""),
		field.Text("description").Default(""),
		timestamp("created_at"),
		timestamp("updated_at"),
	}
}

func (Board) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("org_id"),
	}
}

// Agent holds agents. org_id is copied from the board so agent streams can
// be scoped without a join.
type Agent struct {
	ent.Schema
}

func (Agent) Fields() []ent.Field {
	return []ent.Field{
		id(),
		ref("org_id"),
		ref("board_id"),
		field.String("name").MaxLen(255).Default(""),
		field.String("status").MaxLen(32).Default(""),

		// token_hash is the blake3 digest of the agent token
		field.String("token_hash").MaxLen(128).Default(""),

		optionalTimestamp("last_seen_at"),
		timestamp("created_at"),
		timestamp("updated_at"),
	}
}

func (Agent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("org_id", "updated_at"),
		index.Fields("board_id", "updated_at"),
		index.Fields("token_hash"),
	}
}

// Approval holds agent approval requests.
type Approval struct {
	ent.Schema
}

func (Approval) Fields() []ent.Field {
	return []ent.Field{
		id(),
		ref("board_id"),
		ref("agent_id"),
		field.String("action_type").MaxLen(255).Default(""),
		field.Text("payload").Default(""),
		field.Float("confidence").Default(0),
		field.String("status").MaxLen(32).Default(""),
		optionalTimestamp("resolved_at"),
		timestamp("created_at"),
		timestamp("updated_at"),
	}
}

func (Approval) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("board_id", "updated_at"),
	}
}

// MemoryItem holds append-only board memory and chat.
type MemoryItem struct {
	ent.Schema
}

func (MemoryItem) Fields() []ent.Field {
	return []ent.Field{
		id(),
		ref("board_id"),
		field.Text("content").Default(""),
		field.Text("tags").Default(""),
		field.String("source").MaxLen(255).Default(""),
		field.Bool("is_chat").Default(false),
		timestamp("created_at"),
	}
}

func (MemoryItem) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("board_id", "created_at"),
	}
}

// Task holds board tasks.
type Task struct {
	ent.Schema
}

func (Task) Fields() []ent.Field {
	return []ent.Field{
		id(),
		ref("board_id"),
		field.String("title").MaxLen(512).Default(""),
		field.Text("description").Default(""),
		field.String("status").MaxLen(32).Default(""),
		field.String("priority").MaxLen(32).Default(""),
		ref("assigned_agent_id"),
		timestamp("created_at"),
		timestamp("updated_at"),
	}
}

func (Task) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("board_id", "status"),
	}
}

// ActivityEvent holds the append-only activity feed.
type ActivityEvent struct {
	ent.Schema
}

func (ActivityEvent) Fields() []ent.Field {
	return []ent.Field{
		id(),
		ref("org_id"),
		ref("board_id"),
		field.String("event_type").MaxLen(64).Default(""),
		field.Text("message").Default(""),
		ref("task_id"),
		ref("agent_id"),
		timestamp("created_at"),
	}
}

func (ActivityEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("org_id", "created_at"),
		index.Fields("board_id", "created_at"),
	}
}
