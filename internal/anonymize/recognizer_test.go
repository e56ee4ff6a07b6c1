package anonymize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valinor-ai/llmguard/internal/model"
)

func recognize(t *testing.T, text string, entities ...string) []Detection {
	t.Helper()
	r, err := NewPatternRecognizer(DefaultPatternGroups())
	require.NoError(t, err)
	dets, err := r.Recognize(context.Background(), text, entities)
	require.NoError(t, err)
	return dets
}

func TestPatternRecognizer_Defaults(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		entity string
		match  string
	}{
		{"email", "write to jane.doe@corp.io today", EntityEmail, "jane.doe@corp.io"},
		{"phone", "reach me at (415) 555-0132", EntityPhone, "(415) 555-0132"},
		{"ssn", "my ssn is 123-45-6789", EntitySSN, "123-45-6789"},
		{"credit card", "visa 4111-1111-1111-1111", EntityCreditCard, "4111-1111-1111-1111"},
		{"ip", "server at 10.0.0.254 is down", EntityIP, "10.0.0.254"},
		{"uuid", "id 123e4567-e89b-12d3-a456-426614174000", EntityUUID, "123e4567-e89b-12d3-a456-426614174000"},
		{"url", "see https://example.com/a?b=c for more", EntityURL, "https://example.com/a?b=c"},
		{"iban", "iban GB82 WEST 1234 5698 7654 32", EntityIBAN, "GB82 WEST 1234 5698 7654 32"},
		{"bitcoin", "send to 1BoatSLRHtKNngkdXEeobR76b53LETtpyT", EntityCrypto, "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dets := recognize(t, tt.text, tt.entity)
			require.NotEmpty(t, dets)
			d := dets[0]
			assert.Equal(t, tt.entity, d.EntityType)
			assert.Equal(t, tt.match, tt.text[d.Start:d.End])
		})
	}
}

func TestPatternRecognizer_ValidatorsRejectNoise(t *testing.T) {
	assert.Empty(t, recognize(t, "order 1234 5678 9012 3456", EntityCreditCard))
	assert.Empty(t, recognize(t, "code 000-12-3456", EntitySSN))
	assert.Empty(t, recognize(t, "ref GB00 WEST 1234 5698 7654 32", EntityIBAN))
}

func TestPatternRecognizer_ContextBoost(t *testing.T) {
	plain := recognize(t, "10.1.2.3", EntityIP)
	boosted := recognize(t, "the server ip is 10.1.2.3", EntityIP)
	far := recognize(t, "ip one two three four five six 10.1.2.3", EntityIP)

	require.Len(t, plain, 1)
	require.Len(t, boosted, 1)
	require.Len(t, far, 1)
	assert.InDelta(t, 0.6, plain[0].Score, 1e-9)
	assert.InDelta(t, 0.95, boosted[0].Score, 1e-9)
	assert.InDelta(t, 0.6, far[0].Score, 1e-9)
}

func TestPatternRecognizer_ContextFloor(t *testing.T) {
	r, err := NewPatternRecognizer([]PatternGroup{{
		Name: "zip", EntityType: "ZIP", Expressions: []string{`\b[0-9]{5}\b`}, Context: []string{"zip"}, Score: 0.01,
	}})
	require.NoError(t, err)

	dets, err := r.Recognize(context.Background(), "zip 90210", nil)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.InDelta(t, 0.4, dets[0].Score, 1e-9)
}

func TestPatternRecognizer_EntityFilter(t *testing.T) {
	dets := recognize(t, "a@b.com 10.0.0.1", EntityIP)
	require.Len(t, dets, 1)
	assert.Equal(t, EntityIP, dets[0].EntityType)
}

func TestDenyListRecognizer(t *testing.T) {
	assert.Nil(t, NewDenyListRecognizer([]string{" ", ""}))

	r := NewDenyListRecognizer([]string{"Acme", "Acme Corp"})
	dets, err := r.Recognize(context.Background(), "ACME CORP and acmes and Acme", nil)
	require.NoError(t, err)
	require.Len(t, dets, 2)
	assert.Equal(t, Detection{EntityType: EntityCustom, Start: 0, End: 9, Score: 1}, dets[0])
	assert.Equal(t, 24, dets[1].Start)

	dets, err = r.Recognize(context.Background(), "Acme", []string{EntityEmail})
	require.NoError(t, err)
	assert.Empty(t, dets)
}

func TestChunks(t *testing.T) {
	assert.Equal(t, []chunk{{0, 5}}, chunks("short", 10, 2))
	assert.Equal(t, []chunk{{0, 4}, {3, 7}, {6, 10}}, chunks("abcdefghij", 4, 1))

	// Never split a multi-byte rune.
	text := "ééééé"
	for _, c := range chunks(text, 3, 1) {
		assert.True(t, strings.ToValidUTF8(text[c.start:c.end], "?") == text[c.start:c.end])
	}
}

type occurrenceNER struct {
	word  string
	calls int
}

func (o *occurrenceNER) Entities(_ context.Context, text string) ([]NEREntity, error) {
	o.calls++
	var out []NEREntity
	for i := 0; ; {
		j := strings.Index(text[i:], o.word)
		if j < 0 {
			return out, nil
		}
		out = append(out, NEREntity{Label: "PER", Start: i + j, End: i + j + len(o.word), Score: 0.5 + float64(o.calls)/10})
		i += j + len(o.word)
	}
}

func TestNERRecognizer_ChunkedOffsetsAndDedupe(t *testing.T) {
	ner := &occurrenceNER{word: "Bob"}
	r, err := NewNERRecognizer(ner, NERConfig{ChunkSize: 10, ChunkOverlap: 6})
	require.NoError(t, err)

	text := "xxxxxxBobyyyyyy"
	dets, err := r.Recognize(context.Background(), text, nil)
	require.NoError(t, err)

	require.Len(t, dets, 1)
	assert.Equal(t, 3, ner.calls)
	assert.Equal(t, "Bob", text[dets[0].Start:dets[0].End])
	assert.Equal(t, EntityPerson, dets[0].EntityType)
	assert.InDelta(t, 0.7, dets[0].Score, 1e-9)
}

func TestNewNERRecognizer_Validation(t *testing.T) {
	_, err := NewNERRecognizer(nil, NERConfig{})
	assert.Error(t, err)

	_, err = NewNERRecognizer(&fakeNER{}, NERConfig{ChunkSize: 10, ChunkOverlap: 10})
	assert.Error(t, err)
}

func TestHTTPNERClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ner", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cpu", req["device"])
		assert.Equal(t, "Ann lives in Oslo", req["text"])
		_, _ = w.Write([]byte(`{"entities":[{"label":"PER","start":0,"end":3,"score":0.99},{"label":"LOC","start":13,"end":17,"score":0.97}]}`))
	}))
	defer srv.Close()

	c := NewHTTPNERClient(model.Runtime{Device: "cpu", BaseURL: srv.URL}, "")
	ents, err := c.Entities(context.Background(), "Ann lives in Oslo")
	require.NoError(t, err)
	require.Len(t, ents, 2)
	assert.Equal(t, NEREntity{Label: "LOC", Start: 13, End: 17, Score: 0.97}, ents[1])
}

func TestFaker(t *testing.T) {
	f := NewFaker(1)
	assert.True(t, f.Supports(EntityCreditCard))
	assert.False(t, f.Supports(EntityCustom))

	cc, ok := f.Fake(EntityCreditCard, "4111-1111-1111-1111")
	require.True(t, ok)
	assert.True(t, luhnValid(cc))
	assert.Len(t, cc, 19)

	_, ok = f.Fake(EntityCustom, "x")
	assert.False(t, ok)
}
