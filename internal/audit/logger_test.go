package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDB implements database.Querier for testing.
type mockDB struct {
	mu    sync.Mutex
	count int
	args  [][]any
}

func (m *mockDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
	m.args = append(m.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *mockDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockDB) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return nil
}

func (m *mockDB) insertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func (m *mockDB) argCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.args {
		n += len(a)
	}
	return n
}

func testEvent() Event {
	return Event{
		SessionID: "sess-1",
		Direction: DirectionPrompt,
		Valid:     true,
		Source:    SourceAPI,
	}
}

func TestAsyncLogger_FlushesOnInterval(t *testing.T) {
	db := &mockDB{}
	cfg := LoggerConfig{
		BufferSize:    100,
		BatchSize:     10,
		FlushInterval: 50 * time.Millisecond,
	}

	logger := NewAsyncLogger(db, NewStore(), cfg)
	logger.Log(context.Background(), testEvent())

	// Wait for flush interval
	time.Sleep(150 * time.Millisecond)

	require.NoError(t, logger.Close())
	assert.GreaterOrEqual(t, db.insertCount(), 1)
}

func TestAsyncLogger_FlushesOnBatchSize(t *testing.T) {
	db := &mockDB{}
	cfg := LoggerConfig{
		BufferSize:    100,
		BatchSize:     3,
		FlushInterval: 10 * time.Second,
	}

	logger := NewAsyncLogger(db, NewStore(), cfg)
	for i := 0; i < 3; i++ {
		logger.Log(context.Background(), testEvent())
	}

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, logger.Close())
	assert.GreaterOrEqual(t, db.insertCount(), 1)
}

func TestAsyncLogger_CloseFlushesPending(t *testing.T) {
	db := &mockDB{}
	logger := NewAsyncLogger(db, NewStore(), LoggerConfig{
		BufferSize:    100,
		BatchSize:     100,
		FlushInterval: 10 * time.Second,
	})

	for i := 0; i < 5; i++ {
		logger.Log(context.Background(), testEvent())
	}
	require.NoError(t, logger.Close())

	assert.Equal(t, 5*insertColumns, db.argCount())
}

func TestAsyncLogger_AssignsIDs(t *testing.T) {
	db := &mockDB{}
	logger := NewAsyncLogger(db, NewStore(), LoggerConfig{BatchSize: 1})

	logger.Log(context.Background(), testEvent())
	require.NoError(t, logger.Close())

	require.NotEmpty(t, db.args)
	id, ok := db.args[0][0].(uuid.UUID)
	require.True(t, ok)
	assert.NotEqual(t, uuid.Nil, id)
}

func TestAsyncLogger_DropsWhenBufferFull(t *testing.T) {
	db := &mockDB{}
	cfg := LoggerConfig{
		BufferSize:    2,
		BatchSize:     100,
		FlushInterval: 10 * time.Second,
	}

	logger := NewAsyncLogger(db, NewStore(), cfg)

	// Send more events than buffer can hold
	for i := 0; i < 10; i++ {
		logger.Log(context.Background(), testEvent())
	}

	require.NoError(t, logger.Close())
	assert.Equal(t, int64(10), logger.Dropped()+int64(db.argCount()/insertColumns))
}
