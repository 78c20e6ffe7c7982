package storage

import (
	"fmt"
	"strings"

	"github.com/conorfennell/knolimport/internal/domain"
)

// RecomputeDisplay renders the question and answer of every card of the
// given notes from the note's current field values.
func (t *Tx) RecomputeDisplay(noteIDs []domain.ID) error {
	stmt, err := t.tx.Prepare(`UPDATE cards SET question = ?, answer = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare display update: %w", err)
	}
	defer stmt.Close()

	for _, nid := range noteIDs {
		r, err := t.noteReplacer(nid)
		if err != nil {
			return err
		}
		cards, err := t.cardFormats(nid)
		if err != nil {
			return err
		}
		for _, c := range cards {
			if _, err := stmt.Exec(r.Replace(c.qformat), r.Replace(c.aformat), c.id); err != nil {
				return fmt.Errorf("failed to render card %s: %w", c.id, err)
			}
		}
	}
	return nil
}

// noteReplacer substitutes {{Field Name}} with the note's value for it.
func (t *Tx) noteReplacer(noteID domain.ID) (*strings.Replacer, error) {
	rows, err := t.tx.Query(`
		SELECT fm.name, f.value
		FROM fields f JOIN field_models fm ON fm.id = f.field_model_id
		WHERE f.note_id = ?
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get fields of note %s: %w", noteID, err)
	}
	defer rows.Close()

	var pairs []string
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan field row: %w", err)
		}
		pairs = append(pairs, "{{"+name+"}}", value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return strings.NewReplacer(pairs...), nil
}

type cardFormat struct {
	id      domain.ID
	qformat string
	aformat string
}

func (t *Tx) cardFormats(noteID domain.ID) ([]cardFormat, error) {
	rows, err := t.tx.Query(`
		SELECT c.id, cm.qformat, cm.aformat
		FROM cards c JOIN card_models cm ON cm.id = c.card_model_id
		WHERE c.note_id = ?
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards of note %s: %w", noteID, err)
	}
	defer rows.Close()

	var out []cardFormat
	for rows.Next() {
		var c cardFormat
		if err := rows.Scan(&c.id, &c.qformat, &c.aformat); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
