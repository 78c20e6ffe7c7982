package importer

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knolimport/internal/domain"
	"github.com/conorfennell/knolimport/internal/knol"
	"github.com/conorfennell/knolimport/internal/mapping"
	"github.com/conorfennell/knolimport/internal/sched"
)

func basicModel() *domain.Model {
	return &domain.Model{
		ID:   uuid.New(),
		Name: "Basic",
		Fields: []domain.FieldTemplate{
			{ID: uuid.New(), Name: "Front", Ordinal: 0, Required: true, Unique: true},
			{ID: uuid.New(), Name: "Back", Ordinal: 1},
		},
		Cards: []domain.CardTemplate{
			{ID: uuid.New(), Name: "Forward", Ordinal: 0, Active: true},
			{ID: uuid.New(), Name: "Reverse", Ordinal: 1, Active: false},
		},
	}
}

func rec(fields ...string) domain.ForeignRecord {
	return domain.ForeignRecord{Fields: fields}
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
}

func newTestImporter(store Store, model *domain.Model, records []domain.ForeignRecord, opts Options) *Importer {
	if opts.Now == nil {
		opts.Now = fixedNow
	}
	return New(store, model, domain.FieldCount(records), opts)
}

func TestDuplicateRejected(t *testing.T) {
	store := &memStore{}
	model := basicModel()
	records := []domain.ForeignRecord{rec("cat", "Katze"), rec("cat", "Chat")}

	res, err := newTestImporter(store, model, records, Options{}).Run(records)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Imported)
	assert.Len(t, store.notes, 1)
	require.Len(t, res.Log, 1)
	assert.Equal(t, "Note has duplicate 'Front': cat, Chat", res.Log[0])

	back := store.noteFields(store.notes[0].ID)[model.Fields[1].ID]
	assert.Equal(t, "Katze", back.Value)
}

func TestDuplicateTagged(t *testing.T) {
	store := &memStore{}
	model := basicModel()
	records := []domain.ForeignRecord{rec("cat", "Katze"), rec("cat", "Chat")}

	res, err := newTestImporter(store, model, records, Options{TagDuplicates: true}).Run(records)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Imported)
	require.Len(t, store.notes, 2)
	assert.Empty(t, store.notes[0].Tags)
	assert.Equal(t, "Duplicate:Front", store.notes[1].Tags)
	assert.Empty(t, res.Log)
}

func TestDuplicateTagJoinsFieldNames(t *testing.T) {
	store := &memStore{}
	model := &domain.Model{
		ID:   uuid.New(),
		Name: "Pairs",
		Fields: []domain.FieldTemplate{
			{ID: uuid.New(), Name: "Word", Ordinal: 0, Unique: true},
			{ID: uuid.New(), Name: "Word Reading", Ordinal: 1, Unique: true},
		},
		Cards: []domain.CardTemplate{{ID: uuid.New(), Ordinal: 0, Active: true}},
	}
	records := []domain.ForeignRecord{rec("a", "b"), rec("a", "b"), rec("a", "c")}
	records[1].Tags = "mine"

	res, err := newTestImporter(store, model, records, Options{TagDuplicates: true}).Run(records)
	require.NoError(t, err)
	require.Equal(t, 3, res.Imported)
	assert.Equal(t, "Duplicate:Word+Word-Reading mine", store.notes[1].Tags)
	assert.Equal(t, "Duplicate:Word", store.notes[2].Tags)
}

func TestRejectedDuplicateReservesNothing(t *testing.T) {
	store := &memStore{}
	model := &domain.Model{
		ID:   uuid.New(),
		Name: "Pairs",
		Fields: []domain.FieldTemplate{
			{ID: uuid.New(), Name: "A", Ordinal: 0, Unique: true},
			{ID: uuid.New(), Name: "B", Ordinal: 1, Unique: true},
		},
		Cards: []domain.CardTemplate{{ID: uuid.New(), Ordinal: 0, Active: true}},
	}
	// The second record is a duplicate on A, so its new B value must stay free.
	records := []domain.ForeignRecord{rec("x", "1"), rec("x", "2"), rec("y", "2")}

	res, err := newTestImporter(store, model, records, Options{}).Run(records)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Len(t, res.Log, 1)
}

func TestExistingValuesAreDuplicates(t *testing.T) {
	store := &memStore{}
	model := basicModel()
	first := []domain.ForeignRecord{rec("cat", "Katze"), rec("dog", "Hund")}

	res, err := newTestImporter(store, model, first, Options{}).Run(first)
	require.NoError(t, err)
	require.Equal(t, 2, res.Imported)

	res, err = newTestImporter(store, model, first, Options{}).Run(first)
	require.NoError(t, err)
	assert.Zero(t, res.Imported)
	assert.Len(t, res.Log, 2)
	assert.Len(t, store.notes, 2)
}

func TestInvalidRecordsSkipped(t *testing.T) {
	store := &memStore{}
	model := basicModel()
	records := []domain.ForeignRecord{
		rec("  ", "blank front"),
		rec("cat", "Katze"),
		rec(),
		rec("dog"),
	}

	res, err := newTestImporter(store, model, records, Options{}).Run(records)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Imported)
	require.Len(t, res.Log, 2)
	assert.Equal(t, "Note is missing field 'Front':   , blank front", res.Log[0])
	assert.Equal(t, "Note is missing field 'Front': ", res.Log[1])

	dog, ok := store.noteByValue(model.Fields[0].ID, "dog")
	require.True(t, ok)
	assert.Equal(t, "", store.noteFields(dog.ID)[model.Fields[1].ID].Value)
}

func TestShortRecordMissingRequiredSlot(t *testing.T) {
	store := &memStore{}
	model := basicModel()
	records := []domain.ForeignRecord{rec("Katze", "cat"), rec("Hund")}

	imp := newTestImporter(store, model, records, Options{})
	imp.SetMapping(mapping.Mapping{mapping.FieldSlot(model.Fields[1]), mapping.FieldSlot(model.Fields[0])})
	res, err := imp.Run(records)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Len(t, res.Log, 1)
}

func TestMissingRequiredMappingIsFatal(t *testing.T) {
	store := &memStore{}
	model := basicModel()
	records := []domain.ForeignRecord{rec("cat", "Katze")}

	imp := newTestImporter(store, model, records, Options{})
	imp.SetMapping(mapping.Mapping{mapping.IgnoreSlot(), mapping.FieldSlot(model.Fields[1])})
	res, err := imp.Run(records)

	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrMissingRequiredOrUniqueField))
	var mfe *MissingFieldError
	require.ErrorAs(t, err, &mfe)
	assert.Equal(t, "Front", mfe.Field)
	assert.Empty(t, store.calls, "no store access before the mapping is accepted")
}

func TestRepeatedUniqueMappingIsFatal(t *testing.T) {
	store := &memStore{}
	model := basicModel()
	records := []domain.ForeignRecord{rec("a", "b"), rec("b", "c")}

	imp := newTestImporter(store, model, records, Options{})
	imp.SetMapping(mapping.Mapping{mapping.FieldSlot(model.Fields[0]), mapping.FieldSlot(model.Fields[0])})
	res, err := imp.Run(records)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrMissingRequiredOrUniqueField)
	var rfe *RepeatedFieldError
	require.ErrorAs(t, err, &rfe)
	assert.Equal(t, "Front", rfe.Field)
	assert.Empty(t, store.calls, "no store access before the mapping is accepted")
}

func TestRepeatedPlainFieldAllowed(t *testing.T) {
	store := &memStore{}
	model := basicModel()
	records := []domain.ForeignRecord{rec("cat", "Katze", "Mieze")}

	imp := newTestImporter(store, model, records, Options{})
	imp.SetMapping(mapping.Mapping{
		mapping.FieldSlot(model.Fields[0]),
		mapping.FieldSlot(model.Fields[1]),
		mapping.FieldSlot(model.Fields[1]),
	})
	res, err := imp.Run(records)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, "Katze", store.noteFields(store.notes[0].ID)[model.Fields[1].ID].Value)
}

func TestRowCounts(t *testing.T) {
	store := &memStore{}
	model := &domain.Model{
		ID:   uuid.New(),
		Name: "Three",
		Fields: []domain.FieldTemplate{
			{ID: uuid.New(), Name: "A", Ordinal: 0, Required: true},
			{ID: uuid.New(), Name: "B", Ordinal: 1},
			{ID: uuid.New(), Name: "C", Ordinal: 2},
		},
		Cards: []domain.CardTemplate{
			{ID: uuid.New(), Ordinal: 0, Active: true},
			{ID: uuid.New(), Ordinal: 1, Active: false},
			{ID: uuid.New(), Ordinal: 2, Active: true},
		},
	}
	var records []domain.ForeignRecord
	for _, v := range []string{"1", "2", "3", "4", "5"} {
		records = append(records, rec(v, "b", "c"))
	}

	res, err := newTestImporter(store, model, records, Options{}).Run(records)
	require.NoError(t, err)

	const k, f, a = 5, 3, 2
	assert.Equal(t, k, res.Imported)
	assert.Len(t, store.notes, k)
	assert.Len(t, store.fields, k*f)
	assert.Len(t, store.cards, k*a)
	assert.Len(t, res.NewCardIDs, k*a)
	for _, c := range store.cards {
		assert.NotEqual(t, model.Cards[1].ID, c.TemplateID, "inactive template produced a card")
	}
}

func TestWriteOrder(t *testing.T) {
	store := &memStore{}
	model := basicModel()
	records := []domain.ForeignRecord{rec("cat", "Katze")}

	_, err := newTestImporter(store, model, records, Options{}).Run(records)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"FieldValues",
		"InsertNotes",
		"PurgeDeletedNotes",
		"InsertFields",
		"InsertFields",
		"InsertCards",
		"RecomputeDisplay",
		"RebuildCardTags",
	}, store.calls)
	assert.Equal(t, []domain.ID{store.notes[0].ID}, store.purged)
	require.Len(t, store.recomputed, 1)
	assert.Equal(t, []domain.ID{store.notes[0].ID}, store.recomputed[0])
}

func TestTimestampsStrictlyIncrease(t *testing.T) {
	store := &memStore{}
	model := basicModel()
	model.Cards[1].Active = true
	var records []domain.ForeignRecord
	for i := 0; i < 50; i++ {
		records = append(records, rec(string(rune('A'+i)), "x"))
	}

	// The clock never moves during the run.
	_, err := newTestImporter(store, model, records, Options{}).Run(records)
	require.NoError(t, err)

	require.Len(t, store.notes, 50)
	assert.Equal(t, fixedNow(), store.notes[0].Created)
	for i := 1; i < len(store.notes); i++ {
		assert.True(t, store.notes[i].Created.After(store.notes[i-1].Created), "note %d not after note %d", i, i-1)
	}

	created := make(map[domain.ID]time.Time)
	for _, n := range store.notes {
		created[n.ID] = n.Created
	}
	seen := make(map[time.Time]bool)
	for _, c := range store.cards {
		assert.False(t, seen[c.Due], "due %v used twice", c.Due)
		seen[c.Due] = true
		assert.Equal(t, c.Due, c.Created)
		assert.Equal(t, c.Due, c.Modified)
		base := created[c.NoteID]
		assert.False(t, c.Due.Before(base))
		assert.True(t, c.Due.Before(base.Add(noteStep(model.ActiveCards()))))
	}
}

func TestNoteStepCoversOrdinals(t *testing.T) {
	assert.Equal(t, minNoteStep, noteStep([]domain.CardTemplate{{Ordinal: 0}, {Ordinal: 3}}))
	step := noteStep([]domain.CardTemplate{{Ordinal: 250}})
	assert.Greater(t, step, 250*cardStep)
}

func TestTagSlot(t *testing.T) {
	store := &memStore{}
	model := basicModel()
	records := []domain.ForeignRecord{rec("cat", "Katze", "animals noun")}

	imp := newTestImporter(store, model, records, Options{TagsToAdd: "german"})
	assert.Equal(t, []string{"Front", "Back", mapping.TagsName}, imp.Mapping().Names())
	_, err := imp.Run(records)
	require.NoError(t, err)

	assert.Equal(t, "animals german noun", store.notes[0].Tags)
}

func TestChecksumOnlyForUniqueFields(t *testing.T) {
	store := &memStore{}
	model := basicModel()
	records := []domain.ForeignRecord{rec("cat", "Katze")}

	_, err := newTestImporter(store, model, records, Options{}).Run(records)
	require.NoError(t, err)

	fields := store.noteFields(store.notes[0].ID)
	assert.Equal(t, knol.Checksum("cat"), fields[model.Fields[0].ID].Checksum)
	assert.Empty(t, fields[model.Fields[1].ID].Checksum)
}

func TestSchedulingState(t *testing.T) {
	store := &memStore{}
	model := basicModel()
	records := []domain.ForeignRecord{
		{Fields: []string{"new", "x"}},
		{Fields: []string{"learning", "x"}, Sched: domain.SchedAttrs{Reps: 2, Lapses: 1}},
		{Fields: []string{"review", "x"}, Sched: domain.SchedAttrs{Reps: 5, Successive: 3, Interval: 12, Factor: 2.5}},
	}

	_, err := newTestImporter(store, model, records, Options{}).Run(records)
	require.NoError(t, err)
	require.Len(t, store.cards, 3)

	byNote := make(map[domain.ID]domain.Card)
	for _, c := range store.cards {
		byNote[c.NoteID] = c
	}
	card := func(front string) domain.Card {
		n, ok := store.noteByValue(model.Fields[0].ID, front)
		require.True(t, ok)
		return byNote[n.ID]
	}

	assert.Equal(t, int(sched.New), card("new").Type)
	assert.Zero(t, card("new").Stability)

	learning := card("learning")
	assert.Equal(t, int(sched.Learning), learning.Type)
	assert.Equal(t, int(sched.Learning), learning.Queue)
	assert.Equal(t, 2, learning.Reps)
	assert.Equal(t, 1, learning.Lapses)

	review := card("review")
	assert.Equal(t, int(sched.Review), review.Queue)
	assert.Equal(t, 3, review.Successive)
	assert.Equal(t, 12.0, review.Interval)
	assert.Equal(t, 2.5, review.Factor)
	assert.Greater(t, review.Stability, 1.0)
}

func TestCustomPolicy(t *testing.T) {
	store := &memStore{}
	model := basicModel()
	records := []domain.ForeignRecord{rec("cat", "Katze")}
	allReview := sched.PolicyFunc(func(domain.SchedAttrs) sched.State { return sched.Review })

	_, err := newTestImporter(store, model, records, Options{Policy: allReview}).Run(records)
	require.NoError(t, err)
	assert.Equal(t, int(sched.Review), store.cards[0].Type)
}

func TestRandomOrder(t *testing.T) {
	store := &memStore{}
	model := basicModel()
	records := []domain.ForeignRecord{rec("cat", "Katze"), rec("dog", "Hund")}

	res, err := newTestImporter(store, model, records, Options{NewCardOrder: Random}).Run(records)
	require.NoError(t, err)
	assert.ElementsMatch(t, res.NewCardIDs, store.randomized)
	assert.ElementsMatch(t, res.NewCardIDs, store.tagRebuilt)
}

func TestStoreErrorPropagates(t *testing.T) {
	store := &memStore{failOn: "InsertFields"}
	model := basicModel()
	records := []domain.ForeignRecord{rec("cat", "Katze")}

	res, err := newTestImporter(store, model, records, Options{}).Run(records)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, errStore)
	assert.NotContains(t, store.calls, "InsertCards")
}

func TestSetModelResetsMapping(t *testing.T) {
	store := &memStore{}
	imp := New(store, basicModel(), 2, Options{})
	imp.SetMapping(mapping.Mapping{mapping.IgnoreSlot(), mapping.IgnoreSlot()})

	other := basicModel()
	other.Fields[0].Name = "Question"
	imp.SetModel(other)
	assert.Equal(t, []string{"Question", "Back"}, imp.Mapping().Names())
	assert.Same(t, other, imp.Model())
}

func TestParseCardOrder(t *testing.T) {
	order, err := ParseCardOrder("random")
	require.NoError(t, err)
	assert.Equal(t, Random, order)

	order, err = ParseCardOrder("")
	require.NoError(t, err)
	assert.Equal(t, Sequential, order)

	_, err = ParseCardOrder("shuffled")
	assert.Error(t, err)
}
