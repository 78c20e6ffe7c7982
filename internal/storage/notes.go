package storage

import (
	"fmt"
	"time"

	"github.com/conorfennell/knolimport/internal/domain"
)

// NoteView is a stored note with its field values keyed by field name.
type NoteView struct {
	domain.Note
	Fields map[string]string
}

// Notes retrieves every note in creation order.
func (db *DB) Notes() ([]NoteView, error) {
	rows, err := db.conn.Query(`SELECT id, model_id, created, modified, tags FROM notes ORDER BY created`)
	if err != nil {
		return nil, fmt.Errorf("failed to get notes: %w", err)
	}
	var notes []NoteView
	for rows.Next() {
		var n NoteView
		var created, modified int64
		if err := rows.Scan(&n.ID, &n.ModelID, &created, &modified, &n.Tags); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		n.Created = time.Unix(0, created)
		n.Modified = time.Unix(0, modified)
		n.Fields = make(map[string]string)
		notes = append(notes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range notes {
		fields, err := db.conn.Query(`
			SELECT fm.name, f.value
			FROM fields f JOIN field_models fm ON fm.id = f.field_model_id
			WHERE f.note_id = ?
		`, notes[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get fields of note %s: %w", notes[i].ID, err)
		}
		for fields.Next() {
			var name, value string
			if err := fields.Scan(&name, &value); err != nil {
				fields.Close()
				return nil, fmt.Errorf("failed to scan field row: %w", err)
			}
			notes[i].Fields[name] = value
		}
		fields.Close()
	}
	return notes, nil
}

// Cards retrieves every card ordered by due time.
func (db *DB) Cards() ([]domain.Card, error) {
	rows, err := db.conn.Query(`
		SELECT id, note_id, card_model_id, ordinal, created, modified, due, type, queue,
			reps, successive, lapses, interval, factor, stability, difficulty,
			question, answer, tags
		FROM cards ORDER BY due
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		var created, modified, due int64
		if err := rows.Scan(
			&c.ID, &c.NoteID, &c.TemplateID, &c.Ordinal, &created, &modified, &due,
			&c.Type, &c.Queue, &c.Reps, &c.Successive, &c.Lapses, &c.Interval, &c.Factor,
			&c.Stability, &c.Difficulty, &c.Question, &c.Answer, &c.Tags,
		); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		c.Created = time.Unix(0, created)
		c.Modified = time.Unix(0, modified)
		c.Due = time.Unix(0, due)
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// CountRows returns the number of rows of notes, fields and cards.
func (db *DB) CountRows() (notes, fields, cards int, err error) {
	err = db.conn.QueryRow(`
		SELECT (SELECT COUNT(*) FROM notes), (SELECT COUNT(*) FROM fields), (SELECT COUNT(*) FROM cards)
	`).Scan(&notes, &fields, &cards)
	if err != nil {
		err = fmt.Errorf("failed to count rows: %w", err)
	}
	return notes, fields, cards, err
}

// DeletedNoteIDs returns the notes with a tombstone.
func (db *DB) DeletedNoteIDs() ([]domain.ID, error) {
	rows, err := db.conn.Query(`SELECT note_id FROM notes_deleted`)
	if err != nil {
		return nil, fmt.Errorf("failed to get tombstones: %w", err)
	}
	defer rows.Close()
	var ids []domain.ID
	for rows.Next() {
		var id domain.ID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tombstone row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
