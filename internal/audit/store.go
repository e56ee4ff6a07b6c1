package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valinor-ai/llmguard/internal/platform/database"
	"github.com/valinor-ai/llmguard/internal/scan"
)

// Store handles scan event persistence.
type Store struct{}

// NewStore creates an audit Store.
func NewStore() *Store {
	return &Store{}
}

// InsertBatch writes a batch of events to the database.
func (s *Store) InsertBatch(ctx context.Context, db database.Querier, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	sql, args, err := buildBatchInsert(events)
	if err != nil {
		return fmt.Errorf("building batch insert: %w", err)
	}
	_, err = db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("inserting scan events: %w", err)
	}
	return nil
}

const insertColumns = 7

// buildBatchInsert constructs a multi-row INSERT statement.
func buildBatchInsert(events []Event) (string, []any, error) {
	const cols = "(id, session_id, direction, valid, results, duration_ms, source)"
	placeholders := make([]string, 0, len(events))
	args := make([]any, 0, len(events)*insertColumns)

	for i, e := range events {
		base := i * insertColumns
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))

		results := e.Results
		if results == nil {
			results = []scan.Entry{}
		}
		resultsJSON, err := json.Marshal(results)
		if err != nil {
			return "", nil, fmt.Errorf("marshaling results: %w", err)
		}

		args = append(args, e.ID, e.SessionID, string(e.Direction), e.Valid, resultsJSON, e.DurationMS, e.Source)
	}

	sql := fmt.Sprintf("INSERT INTO scan_events %s VALUES %s", cols, strings.Join(placeholders, ", "))
	return sql, args, nil
}

// ListEventsParams defines filters for querying scan events.
type ListEventsParams struct {
	SessionID *string
	Direction *Direction
	Valid     *bool
	Source    *string
	After     *time.Time
	Before    *time.Time
	Limit     int
}

// buildListQuery constructs a parameterized SELECT for scan events.
func buildListQuery(p ListEventsParams) (string, []any) {
	var conditions []string
	var args []any
	argN := 1

	add := func(cond string, v any) {
		conditions = append(conditions, fmt.Sprintf(cond, argN))
		args = append(args, v)
		argN++
	}
	if p.SessionID != nil {
		add("session_id = $%d", *p.SessionID)
	}
	if p.Direction != nil {
		add("direction = $%d", string(*p.Direction))
	}
	if p.Valid != nil {
		add("valid = $%d", *p.Valid)
	}
	if p.Source != nil {
		add("source = $%d", *p.Source)
	}
	if p.After != nil {
		add("created_at > $%d", *p.After)
	}
	if p.Before != nil {
		add("created_at < $%d", *p.Before)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	sql := fmt.Sprintf(
		`SELECT id, session_id, direction, valid, results, duration_ms, source, created_at
		FROM scan_events
		%s
		ORDER BY created_at DESC
		LIMIT $%d`,
		where, argN,
	)
	args = append(args, p.Limit)

	return sql, args
}

// List returns events matching p, newest first.
func (s *Store) List(ctx context.Context, db database.Querier, p ListEventsParams) ([]Event, error) {
	sql, args := buildListQuery(p)
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying scan events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e       Event
			dir     string
			results []byte
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &dir, &e.Valid, &results, &e.DurationMS, &e.Source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning scan event: %w", err)
		}
		e.Direction = Direction(dir)
		if err := json.Unmarshal(results, &e.Results); err != nil {
			return nil, fmt.Errorf("decoding scan results: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scan events: %w", err)
	}
	return events, nil
}
