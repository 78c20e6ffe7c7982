package domain

import "github.com/google/uuid"

// ID identifies every row in a collection. Ids are UUIDv7, so they sort
// roughly by allocation time.
type ID = uuid.UUID

// FieldTemplate is the schema of one field slot on a model.
type FieldTemplate struct {
	ID       ID
	Name     string
	Ordinal  int
	Required bool
	Unique   bool
}

// CardTemplate is the schema of one card type derived from a note.
type CardTemplate struct {
	ID      ID
	Name    string
	Ordinal int
	Active  bool
	QFormat string
	AFormat string
}

// Model groups the field and card templates notes are built from.
type Model struct {
	ID     ID
	Name   string
	Fields []FieldTemplate
	Cards  []CardTemplate
}

// ActiveCards returns the card templates that produce cards.
func (m *Model) ActiveCards() []CardTemplate {
	var active []CardTemplate
	for _, c := range m.Cards {
		if c.Active {
			active = append(active, c)
		}
	}
	return active
}

// FieldByID looks up a field template on the model.
func (m *Model) FieldByID(id ID) (FieldTemplate, bool) {
	for _, f := range m.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FieldTemplate{}, false
}

// FieldByName looks up a field template by its display name.
func (m *Model) FieldByName(name string) (FieldTemplate, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldTemplate{}, false
}

// UpdateKey joins incoming records to existing notes: the value in foreign
// slot Slot is matched against field template Field.
type UpdateKey struct {
	Slot  int
	Field ID
}
