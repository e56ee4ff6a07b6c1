package scan

// Entry is one scanner's contribution to a Report.
type Entry struct {
	Name  string  `json:"name"`
	Valid bool    `json:"is_valid"`
	Risk  float64 `json:"risk_score"`
}

// Report is the consolidated result of running a chain. Entries keep the
// order scanners were executed in.
type Report struct {
	Text    string
	entries []Entry
}

// record adds or overwrites the entry for name. An overwrite keeps the
// position of the first occurrence.
func (r *Report) record(name string, res Result) {
	for i := range r.entries {
		if r.entries[i].Name == name {
			r.entries[i].Valid = res.Valid
			r.entries[i].Risk = res.Risk
			return
		}
	}
	r.entries = append(r.entries, Entry{Name: name, Valid: res.Valid, Risk: res.Risk})
}

// Entries returns a copy of the per-scanner results in execution order.
func (r Report) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Names returns the executed scanner names in execution order.
func (r Report) Names() []string {
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Name)
	}
	return out
}

// Validity maps scanner name to its validity flag.
func (r Report) Validity() map[string]bool {
	out := make(map[string]bool, len(r.entries))
	for _, e := range r.entries {
		out[e.Name] = e.Valid
	}
	return out
}

// Scores maps scanner name to its risk score.
func (r Report) Scores() map[string]float64 {
	out := make(map[string]float64, len(r.entries))
	for _, e := range r.entries {
		out[e.Name] = e.Risk
	}
	return out
}

// Valid reports whether every executed scanner accepted the content.
// A report with no entries is valid.
func (r Report) Valid() bool {
	for _, e := range r.entries {
		if !e.Valid {
			return false
		}
	}
	return true
}

// Len returns the number of executed scanners.
func (r Report) Len() int {
	return len(r.entries)
}
