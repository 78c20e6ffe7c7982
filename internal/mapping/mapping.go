// Package mapping assigns foreign field slots to a model's field templates,
// to the tag string, or to nothing.
package mapping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conorfennell/knolimport/internal/domain"
)

// Kind says what a foreign slot feeds.
type Kind int

const (
	Ignore Kind = iota
	Field
	Tags
)

// TagsName is the name that selects the tag sentinel in name-based mappings.
const TagsName = "_tags"

// Slot is one entry of a mapping. Template is only set for Field slots.
type Slot struct {
	Kind     Kind
	Template domain.FieldTemplate
}

// FieldSlot returns a slot feeding the given template.
func FieldSlot(t domain.FieldTemplate) Slot { return Slot{Kind: Field, Template: t} }

// TagSlot returns the slot feeding the tag string.
func TagSlot() Slot { return Slot{Kind: Tags} }

// IgnoreSlot returns a slot whose values are dropped.
func IgnoreSlot() Slot { return Slot{} }

func (s Slot) String() string {
	switch s.Kind {
	case Field:
		return s.Template.Name
	case Tags:
		return TagsName
	default:
		return ""
	}
}

// Mapping has one slot per foreign field.
type Mapping []Slot

// Default lays the model's fields out in ordinal order, then the tag slot,
// then ignored slots, cut or padded to numFields.
func Default(model *domain.Model, numFields int) Mapping {
	m := make(Mapping, 0, numFields)
	for _, f := range ordered(model.Fields) {
		m = append(m, FieldSlot(f))
	}
	m = append(m, TagSlot())
	for len(m) < numFields {
		m = append(m, IgnoreSlot())
	}
	return m[:numFields]
}

// Resolve builds a mapping from slot names: a field template name,
// TagsName, or "" for an ignored slot.
func Resolve(model *domain.Model, names []string) (Mapping, error) {
	m := make(Mapping, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		switch name {
		case "":
			m[i] = IgnoreSlot()
		case TagsName:
			m[i] = TagSlot()
		default:
			f, ok := model.FieldByName(name)
			if !ok {
				return nil, fmt.Errorf("model %q has no field %q", model.Name, name)
			}
			m[i] = FieldSlot(f)
		}
	}
	return m, nil
}

// IndexOf returns the first slot feeding the field template, or -1.
func (m Mapping) IndexOf(fieldID domain.ID) int {
	for i, s := range m {
		if s.Kind == Field && s.Template.ID == fieldID {
			return i
		}
	}
	return -1
}

// TagIndex returns the first tag slot, or -1.
func (m Mapping) TagIndex() int {
	for i, s := range m {
		if s.Kind == Tags {
			return i
		}
	}
	return -1
}

// Names renders the mapping back into slot names.
func (m Mapping) Names() []string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.String()
	}
	return names
}

// MissingField returns the first required or unique template on the model
// that no slot feeds.
func (m Mapping) MissingField(model *domain.Model) (domain.FieldTemplate, bool) {
	for _, f := range ordered(model.Fields) {
		if !f.Required && !f.Unique {
			continue
		}
		if m.IndexOf(f.ID) < 0 {
			return f, true
		}
	}
	return domain.FieldTemplate{}, false
}

// RepeatedField returns the first required or unique template on the model
// that more than one slot feeds.
func (m Mapping) RepeatedField(model *domain.Model) (domain.FieldTemplate, bool) {
	for _, f := range ordered(model.Fields) {
		if !f.Required && !f.Unique {
			continue
		}
		if m.count(f.ID) > 1 {
			return f, true
		}
	}
	return domain.FieldTemplate{}, false
}

func (m Mapping) count(fieldID domain.ID) int {
	n := 0
	for _, s := range m {
		if s.Kind == Field && s.Template.ID == fieldID {
			n++
		}
	}
	return n
}

func ordered(fields []domain.FieldTemplate) []domain.FieldTemplate {
	out := make([]domain.FieldTemplate, len(fields))
	copy(out, fields)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}
