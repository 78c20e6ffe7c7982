package storage

import (
	"database/sql"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/knolimport/internal/domain"
	"github.com/conorfennell/knolimport/internal/sched"
)

// maxVars keeps IN lists well below sqlite's bound parameter limit.
const maxVars = 500

// Tx is one collection transaction. It implements the store side of an
// import.
type Tx struct {
	tx  *sql.Tx
	now func() time.Time
}

// AllocateID returns a new time-ordered identifier.
func (t *Tx) AllocateID() (domain.ID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to allocate id: %w", err)
	}
	return id, nil
}

// CurrentModel returns the collection's current model.
func (t *Tx) CurrentModel() (*domain.Model, error) {
	var id string
	if err := t.tx.QueryRow(`SELECT value FROM config WHERE key = ?`, currentModelKey).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to read current model: %w", err)
	}
	return loadModel(t.tx, `id = ?`, id)
}

// InsertNotes inserts note rows in bulk.
func (t *Tx) InsertNotes(notes []domain.Note) error {
	stmt, err := t.tx.Prepare(`
		INSERT INTO notes (id, model_id, created, modified, tags)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare note insert: %w", err)
	}
	defer stmt.Close()
	for _, n := range notes {
		if _, err := stmt.Exec(n.ID, n.ModelID, n.Created.UnixNano(), n.Modified.UnixNano(), n.Tags); err != nil {
			return fmt.Errorf("failed to insert note %s: %w", n.ID, err)
		}
	}
	return nil
}

// InsertFields inserts field rows in bulk.
func (t *Tx) InsertFields(fields []domain.Field) error {
	stmt, err := t.tx.Prepare(`
		INSERT INTO fields (id, note_id, field_model_id, ordinal, value, chksum)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare field insert: %w", err)
	}
	defer stmt.Close()
	for _, f := range fields {
		if _, err := stmt.Exec(f.ID, f.NoteID, f.FieldID, f.Ordinal, f.Value, f.Checksum); err != nil {
			return fmt.Errorf("failed to insert field %s: %w", f.ID, err)
		}
	}
	return nil
}

// InsertCards inserts card rows in bulk.
func (t *Tx) InsertCards(cards []domain.Card) error {
	stmt, err := t.tx.Prepare(`
		INSERT INTO cards (
			id, note_id, card_model_id, ordinal, created, modified, due, type, queue,
			reps, successive, lapses, interval, factor, stability, difficulty,
			question, answer, tags
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare card insert: %w", err)
	}
	defer stmt.Close()
	for _, c := range cards {
		if _, err := stmt.Exec(
			c.ID, c.NoteID, c.TemplateID, c.Ordinal,
			c.Created.UnixNano(), c.Modified.UnixNano(), c.Due.UnixNano(),
			c.Type, c.Queue,
			c.Reps, c.Successive, c.Lapses, c.Interval, c.Factor,
			c.Stability, c.Difficulty,
			c.Question, c.Answer, c.Tags,
		); err != nil {
			return fmt.Errorf("failed to insert card %s: %w", c.ID, err)
		}
	}
	return nil
}

// UpdateFields rewrites field values and checksums by (note, field template).
func (t *Tx) UpdateFields(updates []domain.FieldUpdate) error {
	stmt, err := t.tx.Prepare(`
		UPDATE fields SET value = ?, chksum = ?
		WHERE note_id = ? AND field_model_id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare field update: %w", err)
	}
	defer stmt.Close()
	noteIDs := make([]domain.ID, 0, len(updates))
	for _, u := range updates {
		if _, err := stmt.Exec(u.Value, u.Checksum, u.NoteID, u.FieldID); err != nil {
			return fmt.Errorf("failed to update field %s of note %s: %w", u.FieldID, u.NoteID, err)
		}
		noteIDs = append(noteIDs, u.NoteID)
	}
	return t.touchNotes(noteIDs)
}

// UpdateNoteTags replaces the tag strings of notes.
func (t *Tx) UpdateNoteTags(updates []domain.TagUpdate) error {
	stmt, err := t.tx.Prepare(`UPDATE notes SET tags = ?, modified = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare tag update: %w", err)
	}
	defer stmt.Close()
	now := t.now().UnixNano()
	for _, u := range updates {
		if _, err := stmt.Exec(u.Tags, now, u.NoteID); err != nil {
			return fmt.Errorf("failed to update tags of note %s: %w", u.NoteID, err)
		}
	}
	return nil
}

func (t *Tx) touchNotes(noteIDs []domain.ID) error {
	now := t.now().UnixNano()
	return inChunks(noteIDs, func(in string, args []any) error {
		_, err := t.tx.Exec(`UPDATE notes SET modified = ? WHERE id IN (`+in+`)`, append([]any{now}, args...)...)
		if err != nil {
			return fmt.Errorf("failed to touch notes: %w", err)
		}
		return nil
	})
}

// FieldValues returns every non-empty (note, value) pair of a field template.
func (t *Tx) FieldValues(fieldID domain.ID) ([]domain.FieldValue, error) {
	rows, err := t.tx.Query(`
		SELECT note_id, value FROM fields
		WHERE field_model_id = ? AND value != ''
	`, fieldID)
	if err != nil {
		return nil, fmt.Errorf("failed to get values of field %s: %w", fieldID, err)
	}
	defer rows.Close()

	var values []domain.FieldValue
	for rows.Next() {
		var fv domain.FieldValue
		if err := rows.Scan(&fv.NoteID, &fv.Value); err != nil {
			return nil, fmt.Errorf("failed to scan field value row: %w", err)
		}
		values = append(values, fv)
	}
	return values, rows.Err()
}

// MarkDeleted records tombstones for deleted notes.
func (t *Tx) MarkDeleted(noteIDs []domain.ID) error {
	now := t.now().UnixNano()
	for _, id := range noteIDs {
		if _, err := t.tx.Exec(`
			INSERT INTO notes_deleted (note_id, deleted) VALUES (?, ?)
			ON CONFLICT(note_id) DO UPDATE SET deleted = excluded.deleted
		`, id, now); err != nil {
			return fmt.Errorf("failed to mark note %s deleted: %w", id, err)
		}
	}
	return nil
}

// PurgeDeletedNotes clears tombstones for the given note ids.
func (t *Tx) PurgeDeletedNotes(noteIDs []domain.ID) error {
	return inChunks(noteIDs, func(in string, args []any) error {
		if _, err := t.tx.Exec(`DELETE FROM notes_deleted WHERE note_id IN (`+in+`)`, args...); err != nil {
			return fmt.Errorf("failed to purge tombstones: %w", err)
		}
		return nil
	})
}

// CardIDsForNotes returns the ids of every card of the given notes.
func (t *Tx) CardIDsForNotes(noteIDs []domain.ID) ([]domain.ID, error) {
	var ids []domain.ID
	err := inChunks(noteIDs, func(in string, args []any) error {
		rows, err := t.tx.Query(`SELECT id FROM cards WHERE note_id IN (`+in+`) ORDER BY due`, args...)
		if err != nil {
			return fmt.Errorf("failed to get cards of notes: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id domain.ID
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("failed to scan card id: %w", err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	return ids, err
}

// RebuildCardTags copies each note's tags onto its cards' tag cache.
func (t *Tx) RebuildCardTags(cardIDs []domain.ID) error {
	return inChunks(cardIDs, func(in string, args []any) error {
		if _, err := t.tx.Exec(`
			UPDATE cards SET tags = (SELECT tags FROM notes WHERE notes.id = cards.note_id)
			WHERE id IN (`+in+`)
		`, args...); err != nil {
			return fmt.Errorf("failed to rebuild card tags: %w", err)
		}
		return nil
	})
}

type dueCard struct {
	id     domain.ID
	noteID domain.ID
	due    int64
}

// RandomizeNewCards shuffles the queue position of new cards. The cards of
// one note move together and keep their relative order.
func (t *Tx) RandomizeNewCards(cardIDs []domain.ID) error {
	var cards []dueCard
	err := inChunks(cardIDs, func(in string, args []any) error {
		rows, err := t.tx.Query(`
			SELECT id, note_id, due FROM cards
			WHERE queue = ? AND id IN (`+in+`)
		`, append([]any{int(sched.New)}, args...)...)
		if err != nil {
			return fmt.Errorf("failed to get new cards: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var c dueCard
			if err := rows.Scan(&c.id, &c.noteID, &c.due); err != nil {
				return fmt.Errorf("failed to scan new card: %w", err)
			}
			cards = append(cards, c)
		}
		return rows.Err()
	})
	if err != nil {
		return err
	}

	base := make(map[domain.ID]int64)
	var notes []domain.ID
	for _, c := range cards {
		b, ok := base[c.noteID]
		if !ok {
			notes = append(notes, c.noteID)
		}
		if !ok || c.due < b {
			base[c.noteID] = c.due
		}
	}
	slots := make([]int64, len(notes))
	for i, n := range notes {
		slots[i] = base[n]
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	rand.Shuffle(len(notes), func(i, j int) { notes[i], notes[j] = notes[j], notes[i] })
	shift := make(map[domain.ID]int64, len(notes))
	for i, n := range notes {
		shift[n] = slots[i] - base[n]
	}

	stmt, err := t.tx.Prepare(`UPDATE cards SET due = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare due update: %w", err)
	}
	defer stmt.Close()
	for _, c := range cards {
		if _, err := stmt.Exec(c.due+shift[c.noteID], c.id); err != nil {
			return fmt.Errorf("failed to update due of card %s: %w", c.id, err)
		}
	}
	return nil
}

// inChunks calls fn with a placeholder list and its arguments for each
// slice of at most maxVars ids.
func inChunks(ids []domain.ID, fn func(in string, args []any) error) error {
	for start := 0; start < len(ids); start += maxVars {
		end := min(start+maxVars, len(ids))
		chunk := ids[start:end]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		in := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		if err := fn(in, args); err != nil {
			return err
		}
	}
	return nil
}
