package events

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/swiper/internal/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(migrations.InitialSQL)
	require.NoError(t, err)
	return db
}

func completed(id int64, session, desc string) *DownloadCompleted {
	return &DownloadCompleted{
		BaseEvent: NewBaseEvent(EventDownloadCompleted, EntityDownload, id, session),
		Content:   desc,
	}
}

func TestEventLog_Append(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog(setupTestDB(t))

	id, err := log.Append(ctx, completed(1, "cli", "Heat (1995)"))
	require.NoError(t, err)
	assert.Positive(t, id)

	events, err := log.Since(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Payload, `"content":"Heat (1995)"`)
	assert.Equal(t, EventDownloadCompleted, events[0].EventType)
	assert.Equal(t, EntityDownload, events[0].EntityType)
	assert.Equal(t, int64(1), events[0].EntityID)
	assert.Equal(t, "cli", events[0].SessionID)
}

func TestEventLog_Since(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog(setupTestDB(t))
	start := time.Now().Add(-time.Hour)

	_, err := log.Append(ctx, completed(1, "cli", "first"))
	require.NoError(t, err)
	_, err = log.Append(ctx, completed(2, "cli", "second"))
	require.NoError(t, err)

	events, err := log.Since(ctx, start)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].EntityID)
	assert.Equal(t, int64(2), events[1].EntityID)
}

func TestEventLog_ForSession(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog(setupTestDB(t))

	_, err := log.Append(ctx, completed(1, "cli", "one"))
	require.NoError(t, err)
	_, err = log.Append(ctx, completed(2, "chat-1", "two"))
	require.NoError(t, err)
	_, err = log.Append(ctx, &DownloadFailed{
		BaseEvent: NewBaseEvent(EventDownloadFailed, EntityDownload, 3, "cli"),
		Content:   "three",
	})
	require.NoError(t, err)
	_, err = log.Append(ctx, completed(4, "cli", "four"))
	require.NoError(t, err)

	events, err := log.ForSession(ctx, "cli", EventDownloadCompleted, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(4), events[0].EntityID, "newest first")
	assert.Equal(t, int64(1), events[1].EntityID)

	all, err := log.ForSession(ctx, "cli", "", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestEventLog_Recent(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog(setupTestDB(t))

	for i := int64(1); i <= 5; i++ {
		_, err := log.Append(ctx, completed(i, "cli", "x"))
		require.NoError(t, err)
	}

	events, err := log.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(5), events[0].EntityID)
	assert.Equal(t, int64(4), events[1].EntityID)
	assert.Equal(t, int64(3), events[2].EntityID)
}

func TestEventLog_Prune(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	log := NewEventLog(db)

	old := completed(1, "cli", "old")
	old.Timestamp = time.Now().Add(-40 * 24 * time.Hour)
	_, err := log.Append(ctx, old)
	require.NoError(t, err)
	_, err = log.Append(ctx, completed(2, "cli", "new"))
	require.NoError(t, err)

	count, err := log.Prune(ctx, DefaultRetention)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	events, err := log.Since(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(2), events[0].EntityID)
}
