package domain

// SchedAttrs carries scheduling history a source file may hold for a row.
// Zero values mean the source had nothing to say.
type SchedAttrs struct {
	Reps       int     // prior repetitions, successful or not
	Successive int     // prior consecutive successful reviews
	Lapses     int
	Interval   float64 // days
	Factor     float64
}

// ForeignRecord is one parsed input row prior to import.
type ForeignRecord struct {
	Fields []string
	Tags   string
	Sched  SchedAttrs
}

// Field returns the value at slot n, or "" when the record is too short.
func (r ForeignRecord) Field(n int) string {
	if n < 0 || n >= len(r.Fields) {
		return ""
	}
	return r.Fields[n]
}

// FieldCount returns the widest record's field count, which is the number
// of foreign slots a mapping has to cover.
func FieldCount(records []ForeignRecord) int {
	n := 0
	for _, r := range records {
		if len(r.Fields) > n {
			n = len(r.Fields)
		}
	}
	return n
}
