package domain

import "time"

// Note groups the fields sharing one identity.
type Note struct {
	ID       ID
	ModelID  ID
	Created  time.Time
	Modified time.Time
	Tags     string
}

// Field holds one note value. Checksum is only filled for unique fields.
type Field struct {
	ID       ID
	NoteID   ID
	FieldID  ID
	Ordinal  int
	Value    string
	Checksum string
}

// Card is one reviewable card of a note together with its scheduling state.
// Type and Queue hold a sched.State: 0 learning, 1 review, 2 new.
type Card struct {
	ID         ID
	NoteID     ID
	TemplateID ID
	Ordinal    int
	Created    time.Time
	Modified   time.Time
	Due        time.Time
	Type       int
	Queue      int
	Reps       int
	Successive int
	Lapses     int
	Interval   float64
	Factor     float64
	Stability  float64
	Difficulty float64
	Question   string
	Answer     string
	Tags       string
}

// FieldValue is one (note, value) pair read back from the store.
type FieldValue struct {
	NoteID ID
	Value  string
}

// FieldUpdate rewrites a note's value for one field template.
type FieldUpdate struct {
	NoteID   ID
	FieldID  ID
	Value    string
	Checksum string
}

// TagUpdate replaces a note's tag string.
type TagUpdate struct {
	NoteID ID
	Tags   string
}
