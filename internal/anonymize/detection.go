// Package anonymize detects sensitive spans in a prompt, replaces them with
// reversible placeholders or fake values and records the originals in a vault.
package anonymize

import (
	"context"
	"sort"
)

// Canonical entity types.
const (
	EntityPerson       = "PERSON"
	EntityOrganization = "ORGANIZATION"
	EntityLocation     = "LOCATION"
	EntityEmail        = "EMAIL_ADDRESS"
	EntityPhone        = "PHONE_NUMBER"
	EntitySSN          = "US_SSN"
	EntityCreditCard   = "CREDIT_CARD"
	EntityIP           = "IP_ADDRESS"
	EntityUUID         = "UUID"
	EntityURL          = "URL"
	EntityIBAN         = "IBAN_CODE"
	EntityCrypto       = "CRYPTO"
	EntityCustom       = "CUSTOM"
)

// Detection is a sensitive span found in text. Start and End are byte
// offsets, End exclusive.
type Detection struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

// Len returns the span length in bytes.
func (d Detection) Len() int {
	return d.End - d.Start
}

// Overlaps reports whether d and o share at least one byte.
func (d Detection) Overlaps(o Detection) bool {
	return d.Start < o.End && o.Start < d.End
}

// Recognizer finds detections of the requested entity types. An empty
// entities list means every type the recognizer supports.
type Recognizer interface {
	Recognize(ctx context.Context, text string, entities []string) ([]Detection, error)
}

func wants(entities []string, entityType string) bool {
	if len(entities) == 0 {
		return true
	}
	for _, e := range entities {
		if e == entityType {
			return true
		}
	}
	return false
}

func validSpan(d Detection, textLen int) bool {
	return d.Start >= 0 && d.End <= textLen && d.Start < d.End
}

func sortByStart(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		if dets[i].Start != dets[j].Start {
			return dets[i].Start < dets[j].Start
		}
		return dets[i].End > dets[j].End
	})
}
