package importer

import (
	"sort"
	"time"

	"github.com/conorfennell/knolimport/internal/domain"
	"github.com/conorfennell/knolimport/internal/knol"
)

const (
	// cardStep separates the cards of one note by template ordinal.
	cardStep = time.Microsecond
	// minNoteStep separates consecutive notes of a batch.
	minNoteStep = 100 * time.Microsecond
)

// clock hands out strictly increasing timestamps, one step apart, starting
// at the wall clock time of the first call.
type clock struct {
	next time.Time
	step time.Duration
}

func (c *clock) tick() time.Time {
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

// noteStep is wide enough that no card of a note can reach the next note's
// creation time.
func noteStep(cards []domain.CardTemplate) time.Duration {
	step := minNoteStep
	for _, c := range cards {
		if need := time.Duration(c.Ordinal+1) * cardStep; need >= step {
			step = need + cardStep
		}
	}
	return step
}

type batch struct {
	noteIDs []domain.ID
	cardIDs []domain.ID
}

// materialize writes one note per record with its fields and cards. Notes
// go first, then fields, then cards, so every row's note exists when the
// row is written.
func (imp *Importer) materialize(records []domain.ForeignRecord) (*batch, error) {
	m := imp.Mapping()
	tagIdx := m.TagIndex()
	active := imp.model.ActiveCards()
	clk := &clock{next: imp.opts.Now(), step: noteStep(active)}

	notes := make([]domain.Note, len(records))
	b := &batch{noteIDs: make([]domain.ID, len(records))}
	for i, rec := range records {
		id, err := imp.store.AllocateID()
		if err != nil {
			return nil, err
		}
		tags := imp.opts.TagsToAdd
		if tagIdx >= 0 {
			tags += " " + rec.Field(tagIdx)
		}
		created := clk.tick()
		notes[i] = domain.Note{
			ID:       id,
			ModelID:  imp.model.ID,
			Created:  created,
			Modified: created,
			Tags:     knol.CanonifyTags(tags + " " + rec.Tags),
		}
		b.noteIDs[i] = id
	}
	if err := imp.store.InsertNotes(notes); err != nil {
		return nil, err
	}
	if err := imp.store.PurgeDeletedNotes(b.noteIDs); err != nil {
		return nil, err
	}

	templates := make([]domain.FieldTemplate, len(imp.model.Fields))
	copy(templates, imp.model.Fields)
	sort.SliceStable(templates, func(i, j int) bool { return templates[i].Ordinal < templates[j].Ordinal })
	for _, ft := range templates {
		idx := m.IndexOf(ft.ID)
		fields := make([]domain.Field, len(records))
		for i, rec := range records {
			id, err := imp.store.AllocateID()
			if err != nil {
				return nil, err
			}
			value := ""
			if idx >= 0 {
				value = rec.Field(idx)
			}
			fields[i] = domain.Field{
				ID:       id,
				NoteID:   notes[i].ID,
				FieldID:  ft.ID,
				Ordinal:  ft.Ordinal,
				Value:    value,
				Checksum: knol.MaybeChecksum(value, ft.Unique),
			}
		}
		if err := imp.store.InsertFields(fields); err != nil {
			return nil, err
		}
	}

	for _, ct := range active {
		cards := make([]domain.Card, len(records))
		for i, rec := range records {
			id, err := imp.store.AllocateID()
			if err != nil {
				return nil, err
			}
			cards[i] = imp.newCard(id, notes[i], ct, rec.Sched)
			b.cardIDs = append(b.cardIDs, id)
		}
		if err := imp.store.InsertCards(cards); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// newCard builds a card row. Timestamps sit just after the note's creation
// time so a note's cards stay adjacent when sorted by due.
func (imp *Importer) newCard(id domain.ID, note domain.Note, ct domain.CardTemplate, attrs domain.SchedAttrs) domain.Card {
	t := note.Created.Add(time.Duration(ct.Ordinal) * cardStep)
	state := imp.opts.Policy.Classify(attrs)
	mem := imp.opts.FSRS.Seed(state, attrs.Successive)
	return domain.Card{
		ID:         id,
		NoteID:     note.ID,
		TemplateID: ct.ID,
		Ordinal:    ct.Ordinal,
		Created:    t,
		Modified:   t,
		Due:        t,
		Type:       int(state),
		Queue:      int(state),
		Reps:       attrs.Reps,
		Successive: attrs.Successive,
		Lapses:     attrs.Lapses,
		Interval:   attrs.Interval,
		Factor:     attrs.Factor,
		Stability:  mem.Stability,
		Difficulty: mem.Difficulty,
	}
}
