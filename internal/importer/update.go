package importer

import (
	"fmt"

	"github.com/conorfennell/knolimport/internal/domain"
	"github.com/conorfennell/knolimport/internal/knol"
)

type match struct {
	noteID domain.ID
	rec    domain.ForeignRecord
}

// runUpdate merges records into existing notes joined on the update key.
// Records without a match go through the normal insert path.
func (imp *Importer) runUpdate(records []domain.ForeignRecord, res *Result) error {
	key := *imp.opts.UpdateKey
	if _, ok := imp.model.FieldByID(key.Field); !ok {
		return fmt.Errorf("update key field %s is not on model %q", key.Field, imp.model.Name)
	}

	existing, err := imp.store.FieldValues(key.Field)
	if err != nil {
		return err
	}
	lookup := make(map[string]domain.ID, len(existing))
	for _, fv := range existing {
		lookup[fv.Value] = fv.NoteID
	}

	var matched []match
	var unmatched []domain.ForeignRecord
	for _, rec := range records {
		v := rec.Field(key.Slot)
		if nid, ok := lookup[v]; ok && v != "" {
			matched = append(matched, match{noteID: nid, rec: rec})
			continue
		}
		unmatched = append(unmatched, rec)
	}

	// New notes need a complete mapping; check it before anything is written.
	if len(unmatched) > 0 {
		if err := imp.checkMapping(); err != nil {
			return err
		}
	}

	if err := imp.applyMatches(matched, key); err != nil {
		return err
	}
	matchedIDs := make([]domain.ID, len(matched))
	for i, mt := range matched {
		matchedIDs[i] = mt.noteID
	}
	matchedIDs = uniqueIDs(matchedIDs)
	res.Updated = len(matched)
	res.NoteIDs = append(res.NoteIDs, matchedIDs...)

	newIDs, err := imp.insert(unmatched, res)
	if err != nil {
		return err
	}

	touched := append(append([]domain.ID{}, matchedIDs...), newIDs...)
	if len(touched) > 0 {
		if err := imp.store.RecomputeDisplay(touched); err != nil {
			return err
		}
	}
	if len(matchedIDs) > 0 {
		cardIDs, err := imp.store.CardIDsForNotes(matchedIDs)
		if err != nil {
			return err
		}
		res.CardIDs = append(res.CardIDs, cardIDs...)
	}
	return nil
}

// applyMatches replaces the tags of matched notes when a tag slot is mapped,
// then rewrites every mapped field except the key.
func (imp *Importer) applyMatches(matched []match, key domain.UpdateKey) error {
	if len(matched) == 0 {
		return nil
	}
	m := imp.Mapping()

	if tagIdx := m.TagIndex(); tagIdx >= 0 {
		updates := make([]domain.TagUpdate, len(matched))
		for i, mt := range matched {
			updates[i] = domain.TagUpdate{
				NoteID: mt.noteID,
				Tags:   knol.CanonifyTags(imp.opts.TagsToAdd + " " + mt.rec.Field(tagIdx)),
			}
		}
		if err := imp.store.UpdateNoteTags(updates); err != nil {
			return err
		}
	}

	var updates []domain.FieldUpdate
	for _, ft := range imp.model.Fields {
		if ft.ID == key.Field {
			continue
		}
		idx := m.IndexOf(ft.ID)
		if idx < 0 {
			continue
		}
		for _, mt := range matched {
			v := mt.rec.Field(idx)
			updates = append(updates, domain.FieldUpdate{
				NoteID:   mt.noteID,
				FieldID:  ft.ID,
				Value:    v,
				Checksum: knol.MaybeChecksum(v, ft.Unique),
			})
		}
	}
	if len(updates) == 0 {
		return nil
	}
	return imp.store.UpdateFields(updates)
}

func uniqueIDs(ids []domain.ID) []domain.ID {
	seen := make(map[domain.ID]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
