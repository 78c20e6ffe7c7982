package importer

import (
	"strings"

	"github.com/conorfennell/knolimport/internal/domain"
	"github.com/conorfennell/knolimport/internal/knol"
	"github.com/conorfennell/knolimport/internal/mapping"
)

// uniqueCache holds, per unique field template, every value seen so far:
// the store's values first, then each value accepted from the batch.
// It lives for a single run.
type uniqueCache map[domain.ID]map[string]struct{}

func newUniqueCache(store Store, m mapping.Mapping) (uniqueCache, error) {
	cache := make(uniqueCache)
	for _, slot := range m {
		if slot.Kind != mapping.Field || !slot.Template.Unique {
			continue
		}
		if _, ok := cache[slot.Template.ID]; ok {
			continue
		}
		values, err := store.FieldValues(slot.Template.ID)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]struct{}, len(values))
		for _, v := range values {
			seen[v.Value] = struct{}{}
		}
		cache[slot.Template.ID] = seen
	}
	return cache, nil
}

func (c uniqueCache) has(fieldID domain.ID, value string) bool {
	_, ok := c[fieldID][value]
	return ok
}

func (c uniqueCache) reserve(fieldID domain.ID, value string) {
	c[fieldID][value] = struct{}{}
}

// stripOrTagDupes drops records repeating a unique value, or keeps them with
// a Duplicate:<field> tag when duplicate tagging is on. Records are checked
// in input order so the first occurrence always wins.
func (imp *Importer) stripOrTagDupes(records []domain.ForeignRecord, res *Result) ([]domain.ForeignRecord, error) {
	m := imp.Mapping()
	cache, err := newUniqueCache(imp.store, m)
	if err != nil {
		return nil, err
	}
	if len(cache) == 0 {
		return records, nil
	}

	var kept []domain.ForeignRecord
	for _, rec := range records {
		if out, ok := imp.checkUnique(rec, m, cache, res); ok {
			kept = append(kept, out)
		}
	}
	return kept, nil
}

func (imp *Importer) checkUnique(rec domain.ForeignRecord, m mapping.Mapping, cache uniqueCache, res *Result) (domain.ForeignRecord, bool) {
	var dupes, fresh []int
	for n, slot := range m {
		if slot.Kind != mapping.Field || !slot.Template.Unique {
			continue
		}
		if !cache.has(slot.Template.ID, rec.Field(n)) {
			fresh = append(fresh, n)
			continue
		}
		if !imp.opts.TagDuplicates {
			imp.reject(res, "has duplicate", slot.Template.Name, rec)
			return rec, false
		}
		dupes = append(dupes, n)
	}

	// A rejected record reserves nothing.
	for _, n := range fresh {
		cache.reserve(m[n].Template.ID, rec.Field(n))
	}
	if len(dupes) > 0 {
		names := make([]string, len(dupes))
		for i, n := range dupes {
			names[i] = strings.ReplaceAll(m[n].Template.Name, " ", "-")
		}
		rec.Tags = knol.CanonifyTags(rec.Tags + " Duplicate:" + strings.Join(names, "+"))
	}
	return rec, true
}
