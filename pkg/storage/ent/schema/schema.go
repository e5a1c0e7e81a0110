// Package schema declares the mission control entities and turns them into
// tables for ent's migration engine. Timestamps are stored as fixed-width
// text (see mission.TimestampLayout) so range scans compare the same way on
// every dialect.
package schema

import (
	"fmt"
	"strings"

	"entgo.io/ent"
	entschema "entgo.io/ent/dialect/sql/schema"
)

// Table names.
const (
	BoardsTable    = "boards"
	AgentsTable    = "agents"
	ApprovalsTable = "approvals"
	MemoryTable    = "board_memory"
	TasksTable     = "tasks"
	ActivityTable  = "activity_events"
)

// entity is the part of ent.Interface the migration needs.
type entity interface {
	Fields() []ent.Field
	Indexes() []ent.Index
}

var (
	Boards    = NewTable(BoardsTable, Board{})
	Agents    = NewTable(AgentsTable, Agent{})
	Approvals = NewTable(ApprovalsTable, Approval{})
	Memory    = NewTable(MemoryTable, MemoryItem{})
	Tasks     = NewTable(TasksTable, Task{})
	Activity  = NewTable(ActivityTable, ActivityEvent{})

	// Tables is every table in migration order.
	Tables = []*entschema.Table{Boards, Agents, Approvals, Memory, Tasks, Activity}
)

// NewTable builds the migration table of e. The first field is the primary
// key. Optional fields are nullable; indexes without a storage key are named
// after the table and their columns. It panics on an invalid declaration.
func NewTable(name string, e entity) *entschema.Table {
	t := &entschema.Table{Name: name}

	for _, f := range e.Fields() {
		d := f.Descriptor()
		if d.Err != nil {
			panic(fmt.Sprintf("schema: %s.%s: %v", name, d.Name, d.Err))
		}

		col := &entschema.Column{
			Name:     d.Name,
			Type:     d.Info.Type,
			Size:     int64(d.Size),
			Unique:   d.Unique,
			Nullable: d.Optional,
			Default:  d.Default,
		}
		if d.StorageKey != "" {
			col.Name = d.StorageKey
		}
		t.AddColumn(col)
	}
	t.PrimaryKey = t.Columns[:1]

	for _, i := range e.Indexes() {
		d := i.Descriptor()
		idx := &entschema.Index{Name: d.StorageKey, Unique: d.Unique}
		if idx.Name == "" {
			idx.Name = name + "_" + strings.Join(d.Fields, "_")
		}
		for _, field := range d.Fields {
			col, ok := t.Column(field)
			if !ok {
				panic("schema: unknown column in index " + idx.Name)
			}
			idx.Columns = append(idx.Columns, col)
		}
		t.Indexes = append(t.Indexes, idx)
	}
	return t
}
