// Package importer turns foreign records into notes, fields and cards of a
// collection, or merges them into existing notes by a key field.
//
// An import assumes exclusive use of the store. Callers run it inside one
// store transaction and roll back on any returned error; the importer never
// cleans up partial writes itself.
package importer

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/conorfennell/knolimport/internal/domain"
	"github.com/conorfennell/knolimport/internal/mapping"
	"github.com/conorfennell/knolimport/internal/sched"
)

// Store is the part of a collection the importer writes to.
type Store interface {
	AllocateID() (domain.ID, error)
	InsertNotes(notes []domain.Note) error
	InsertFields(fields []domain.Field) error
	InsertCards(cards []domain.Card) error
	UpdateFields(updates []domain.FieldUpdate) error
	UpdateNoteTags(updates []domain.TagUpdate) error
	// FieldValues returns every non-empty value stored for a field template.
	FieldValues(fieldID domain.ID) ([]domain.FieldValue, error)
	PurgeDeletedNotes(noteIDs []domain.ID) error
	RecomputeDisplay(noteIDs []domain.ID) error
	CardIDsForNotes(noteIDs []domain.ID) ([]domain.ID, error)
	RebuildCardTags(cardIDs []domain.ID) error
	RandomizeNewCards(cardIDs []domain.ID) error
}

// CardOrder decides how new cards are queued after an import.
type CardOrder int

const (
	Sequential CardOrder = iota
	Random
)

// ParseCardOrder accepts "sequential" or "random".
func ParseCardOrder(s string) (CardOrder, error) {
	switch s {
	case "", "sequential":
		return Sequential, nil
	case "random":
		return Random, nil
	default:
		return Sequential, fmt.Errorf("unknown new card order %q", s)
	}
}

// Options configures one import run.
type Options struct {
	TagsToAdd     string
	TagDuplicates bool
	UpdateKey     *domain.UpdateKey
	NewCardOrder  CardOrder
	Policy        sched.Policy
	FSRS          *sched.Params
	Now           func() time.Time
	Logger        *slog.Logger
}

// Result reports what a run did.
type Result struct {
	Imported   int
	Updated    int
	Log        []string
	NoteIDs    []domain.ID // every note created or updated
	NewCardIDs []domain.ID // cards created by this run
	CardIDs    []domain.ID // every card whose note was touched
}

// Total is the number of records that ended up in the collection.
func (r *Result) Total() int {
	return r.Imported + r.Updated
}

// Importer runs the import pipeline against one store.
type Importer struct {
	store     Store
	model     *domain.Model
	numFields int
	mapping   mapping.Mapping
	opts      Options
	log       *slog.Logger
}

// New creates an importer for records with numFields foreign slots.
func New(store Store, model *domain.Model, numFields int, opts Options) *Importer {
	if opts.Policy == nil {
		opts.Policy = sched.DefaultPolicy
	}
	if opts.FSRS == nil {
		opts.FSRS = sched.DefaultParams()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Importer{
		store:     store,
		model:     model,
		numFields: numFields,
		opts:      opts,
		log:       log,
	}
}

// Model returns the target model.
func (imp *Importer) Model() *domain.Model {
	return imp.model
}

// SetModel changes the target model and resets the mapping to its default.
func (imp *Importer) SetModel(model *domain.Model) {
	imp.model = model
	imp.mapping = nil
}

// Mapping returns the current mapping, falling back to the model's default.
func (imp *Importer) Mapping() mapping.Mapping {
	if imp.mapping == nil {
		imp.mapping = mapping.Default(imp.model, imp.numFields)
	}
	return imp.mapping
}

// SetMapping replaces the mapping.
func (imp *Importer) SetMapping(m mapping.Mapping) {
	imp.mapping = m
}

// Run imports records. With an update key configured, records matching an
// existing note by key update it and the rest are imported as new notes.
func (imp *Importer) Run(records []domain.ForeignRecord) (*Result, error) {
	res := &Result{}
	if imp.opts.UpdateKey != nil {
		if err := imp.runUpdate(records, res); err != nil {
			return nil, err
		}
	} else {
		if err := imp.checkMapping(); err != nil {
			return nil, err
		}
		noteIDs, err := imp.insert(records, res)
		if err != nil {
			return nil, err
		}
		if len(noteIDs) > 0 {
			if err := imp.store.RecomputeDisplay(noteIDs); err != nil {
				return nil, err
			}
		}
	}

	if err := imp.finish(res); err != nil {
		return nil, err
	}
	imp.log.Info("import complete",
		"model", imp.model.Name,
		"records", len(records),
		"imported", res.Imported,
		"updated", res.Updated,
		"rejected", len(res.Log),
	)
	return res, nil
}

// checkMapping rejects the whole run unless every required or unique field
// has exactly one slot. It runs before any record is looked at.
func (imp *Importer) checkMapping() error {
	m := imp.Mapping()
	if f, missing := m.MissingField(imp.model); missing {
		return &MissingFieldError{Field: f.Name}
	}
	if f, repeated := m.RepeatedField(imp.model); repeated {
		return &RepeatedFieldError{Field: f.Name}
	}
	return nil
}

// insert drops invalid and duplicate records and writes the rest as new notes.
func (imp *Importer) insert(records []domain.ForeignRecord, res *Result) ([]domain.ID, error) {
	accepted := imp.stripInvalid(records, res)
	accepted, err := imp.stripOrTagDupes(accepted, res)
	if err != nil {
		return nil, err
	}
	if len(accepted) == 0 {
		return nil, nil
	}
	batch, err := imp.materialize(accepted)
	if err != nil {
		return nil, err
	}
	res.Imported += len(batch.noteIDs)
	res.NoteIDs = append(res.NoteIDs, batch.noteIDs...)
	res.NewCardIDs = append(res.NewCardIDs, batch.cardIDs...)
	res.CardIDs = append(res.CardIDs, batch.cardIDs...)
	return batch.noteIDs, nil
}

// finish rebuilds the tag cache of every touched card and queues new cards.
func (imp *Importer) finish(res *Result) error {
	if len(res.CardIDs) == 0 {
		return nil
	}
	if err := imp.store.RebuildCardTags(res.CardIDs); err != nil {
		return err
	}
	if imp.opts.NewCardOrder == Random && len(res.NewCardIDs) > 0 {
		if err := imp.store.RandomizeNewCards(res.NewCardIDs); err != nil {
			return err
		}
	}
	return nil
}

func (imp *Importer) reject(res *Result, reason, field string, rec domain.ForeignRecord) {
	line := fmt.Sprintf("Note %s '%s': %s", reason, field, joinFields(rec.Fields))
	res.Log = append(res.Log, line)
	imp.log.Info("record rejected", "reason", reason, "field", field, "fields", rec.Fields)
}
