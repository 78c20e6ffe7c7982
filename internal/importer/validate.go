package importer

import (
	"strings"

	"github.com/conorfennell/knolimport/internal/domain"
	"github.com/conorfennell/knolimport/internal/mapping"
)

// stripInvalid keeps the records whose required slots all hold a value.
func (imp *Importer) stripInvalid(records []domain.ForeignRecord, res *Result) []domain.ForeignRecord {
	m := imp.Mapping()
	var valid []domain.ForeignRecord
	for _, rec := range records {
		if field, ok := recordValid(rec, m); !ok {
			imp.reject(res, "is missing field", field, rec)
			continue
		}
		valid = append(valid, rec)
	}
	return valid
}

// recordValid reports whether every slot mapped to a required template has a
// non-blank value. On failure it returns the first offending template name.
func recordValid(rec domain.ForeignRecord, m mapping.Mapping) (string, bool) {
	for n, slot := range m {
		if slot.Kind != mapping.Field || !slot.Template.Required {
			continue
		}
		if n >= len(rec.Fields) || strings.TrimSpace(rec.Fields[n]) == "" {
			return slot.Template.Name, false
		}
	}
	return "", true
}

func joinFields(fields []string) string {
	return strings.Join(fields, ", ")
}
