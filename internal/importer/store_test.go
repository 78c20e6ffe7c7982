package importer

import (
	"errors"

	"github.com/google/uuid"

	"github.com/conorfennell/knolimport/internal/domain"
)

var errStore = errors.New("store unavailable")

// memStore records every write an import makes.
type memStore struct {
	notes  []domain.Note
	fields []domain.Field
	cards  []domain.Card

	calls      []string
	purged     []domain.ID
	recomputed [][]domain.ID
	tagRebuilt []domain.ID
	randomized []domain.ID
	failOn     string
}

func (s *memStore) call(name string) error {
	s.calls = append(s.calls, name)
	if s.failOn == name {
		return errStore
	}
	return nil
}

func (s *memStore) AllocateID() (domain.ID, error) {
	return uuid.NewV7()
}

func (s *memStore) InsertNotes(notes []domain.Note) error {
	if err := s.call("InsertNotes"); err != nil {
		return err
	}
	s.notes = append(s.notes, notes...)
	return nil
}

func (s *memStore) InsertFields(fields []domain.Field) error {
	if err := s.call("InsertFields"); err != nil {
		return err
	}
	s.fields = append(s.fields, fields...)
	return nil
}

func (s *memStore) InsertCards(cards []domain.Card) error {
	if err := s.call("InsertCards"); err != nil {
		return err
	}
	s.cards = append(s.cards, cards...)
	return nil
}

func (s *memStore) UpdateFields(updates []domain.FieldUpdate) error {
	if err := s.call("UpdateFields"); err != nil {
		return err
	}
	for _, u := range updates {
		for i := range s.fields {
			if s.fields[i].NoteID == u.NoteID && s.fields[i].FieldID == u.FieldID {
				s.fields[i].Value = u.Value
				s.fields[i].Checksum = u.Checksum
			}
		}
	}
	return nil
}

func (s *memStore) UpdateNoteTags(updates []domain.TagUpdate) error {
	if err := s.call("UpdateNoteTags"); err != nil {
		return err
	}
	for _, u := range updates {
		for i := range s.notes {
			if s.notes[i].ID == u.NoteID {
				s.notes[i].Tags = u.Tags
			}
		}
	}
	return nil
}

func (s *memStore) FieldValues(fieldID domain.ID) ([]domain.FieldValue, error) {
	if err := s.call("FieldValues"); err != nil {
		return nil, err
	}
	var out []domain.FieldValue
	for _, f := range s.fields {
		if f.FieldID == fieldID && f.Value != "" {
			out = append(out, domain.FieldValue{NoteID: f.NoteID, Value: f.Value})
		}
	}
	return out, nil
}

func (s *memStore) PurgeDeletedNotes(noteIDs []domain.ID) error {
	if err := s.call("PurgeDeletedNotes"); err != nil {
		return err
	}
	s.purged = append(s.purged, noteIDs...)
	return nil
}

func (s *memStore) RecomputeDisplay(noteIDs []domain.ID) error {
	if err := s.call("RecomputeDisplay"); err != nil {
		return err
	}
	s.recomputed = append(s.recomputed, noteIDs)
	return nil
}

func (s *memStore) CardIDsForNotes(noteIDs []domain.ID) ([]domain.ID, error) {
	if err := s.call("CardIDsForNotes"); err != nil {
		return nil, err
	}
	want := make(map[domain.ID]bool)
	for _, id := range noteIDs {
		want[id] = true
	}
	var out []domain.ID
	for _, c := range s.cards {
		if want[c.NoteID] {
			out = append(out, c.ID)
		}
	}
	return out, nil
}

func (s *memStore) RebuildCardTags(cardIDs []domain.ID) error {
	if err := s.call("RebuildCardTags"); err != nil {
		return err
	}
	s.tagRebuilt = append(s.tagRebuilt, cardIDs...)
	return nil
}

func (s *memStore) RandomizeNewCards(cardIDs []domain.ID) error {
	if err := s.call("RandomizeNewCards"); err != nil {
		return err
	}
	s.randomized = append(s.randomized, cardIDs...)
	return nil
}

// noteFields returns a note's values keyed by field template id.
func (s *memStore) noteFields(noteID domain.ID) map[domain.ID]domain.Field {
	out := make(map[domain.ID]domain.Field)
	for _, f := range s.fields {
		if f.NoteID == noteID {
			out[f.FieldID] = f
		}
	}
	return out
}

func (s *memStore) noteByValue(fieldID domain.ID, value string) (domain.Note, bool) {
	for _, f := range s.fields {
		if f.FieldID == fieldID && f.Value == value {
			for _, n := range s.notes {
				if n.ID == f.NoteID {
					return n, true
				}
			}
		}
	}
	return domain.Note{}, false
}
