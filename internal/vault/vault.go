// Package vault holds the placeholder to original-value mappings written by
// the anonymize scanner and read back by the deanonymize scanner.
package vault

import "sync"

// Entry is one reversible substitution.
type Entry struct {
	Placeholder string `json:"placeholder"`
	Original    string `json:"original"`
}

// Vault is an ordered list of entries. Duplicates are allowed. A Vault
// belongs to one session; it is safe for concurrent use so that a paired
// anonymize and deanonymize never observe a torn write.
type Vault struct {
	mu      sync.RWMutex
	entries []Entry
}

// New returns an empty vault.
func New() *Vault {
	return &Vault{}
}

// Append adds a single entry at the end.
func (v *Vault) Append(placeholder, original string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries = append(v.entries, Entry{Placeholder: placeholder, Original: original})
}

// Extend adds entries at the end, preserving their order.
func (v *Vault) Extend(entries []Entry) {
	if len(entries) == 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries = append(v.entries, entries...)
}

// Remove deletes the first entry equal to e. It reports whether an entry
// was removed.
func (v *Vault) Remove(e Entry) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.entries {
		if v.entries[i] == e {
			v.entries = append(v.entries[:i], v.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns a copy of the entries in insertion order.
func (v *Vault) Get() []Entry {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Len returns the number of stored entries.
func (v *Vault) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries)
}

// IsEmpty reports whether the vault holds no entries.
func (v *Vault) IsEmpty() bool {
	return v.Len() == 0
}
