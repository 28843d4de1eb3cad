package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(cfg MemoryConfig) *MemoryStore {
	return NewMemoryStore(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(DefaultMemoryConfig())

	s, err := store.CreateSession(ctx, "s1", Context{KeyTenantID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, "acme", s.Context[KeyTenantID])
	assert.Empty(t, s.History)
	assert.Empty(t, s.ActiveAgents)
	assert.False(t, s.CreatedAt.IsZero())

	_, err = store.CreateSession(ctx, "s1", nil)
	assert.ErrorIs(t, err, ErrSessionExists)

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Context[KeyTenantID])
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_Errors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(DefaultMemoryConfig())

	_, err := store.CreateSession(ctx, "", nil)
	assert.ErrorIs(t, err, ErrSessionIDEmpty)

	_, err = store.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = store.UpdateContext(ctx, "missing", Context{"a": 1})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = store.AddConversationEntry(ctx, "missing", ConversationEntry{Type: EntryUserMessage})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = store.AddTask(ctx, "missing", Task{})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, _, err = store.GetOrCreateSession(ctx, "")
	assert.ErrorIs(t, err, ErrSessionIDEmpty)
}

func TestMemoryStore_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(DefaultMemoryConfig())

	s, created, err := store.GetOrCreateSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotNil(t, s.Context)

	require.NoError(t, store.UpdateContext(ctx, "s1", Context{KeyObjective: "grow"}))

	s, created, err = store.GetOrCreateSession(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "grow", s.Context[KeyObjective])
}

func TestMemoryStore_UpdateContextMerges(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(DefaultMemoryConfig())
	_, err := store.CreateSession(ctx, "s1", Context{"a": 1, "b": 2})
	require.NoError(t, err)

	require.NoError(t, store.UpdateContext(ctx, "s1", Context{"b": 3, "c": 4}))

	s, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, Context{"a": 1, "b": 3, "c": 4}, s.Context)
}

func TestMemoryStore_SnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(DefaultMemoryConfig())
	_, err := store.CreateSession(ctx, "s1", Context{"a": 1})
	require.NoError(t, err)
	_, err = store.AddConversationEntry(ctx, "s1", ConversationEntry{
		Type:     EntryUserMessage,
		Content:  "hi",
		Metadata: map[string]any{"k": "v"},
	})
	require.NoError(t, err)

	s, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	s.Context["a"] = 99
	s.History[0].Metadata["k"] = "mutated"
	s.History[0].Content = "mutated"

	fresh, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Context["a"])
	assert.Equal(t, "hi", fresh.History[0].Content)
	assert.Equal(t, "v", fresh.History[0].Metadata["k"])
}

func TestMemoryStore_HistoryOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(DefaultMemoryConfig())
	_, err := store.CreateSession(ctx, "s1", nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		e, err := store.AddConversationEntry(ctx, "s1", ConversationEntry{
			Type:    EntryUserMessage,
			Content: fmt.Sprintf("msg-%d", i),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.Timestamp.IsZero())
	}

	all, err := store.GetConversationHistory(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, e := range all {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), e.Content)
	}

	last, err := store.GetConversationHistory(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "msg-3", last[0].Content)
	assert.Equal(t, "msg-4", last[1].Content)
}

func TestMemoryStore_HistoryBounded(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(MemoryConfig{TTL: time.Hour, MaxHistory: 3})
	_, err := store.CreateSession(ctx, "s1", nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := store.AddConversationEntry(ctx, "s1", ConversationEntry{
			Type:    EntryUserMessage,
			Content: fmt.Sprintf("msg-%d", i),
		})
		require.NoError(t, err)
	}

	all, err := store.GetConversationHistory(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "msg-2", all[0].Content)
	assert.Equal(t, "msg-4", all[2].Content)
}

func TestMemoryStore_TaskLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(DefaultMemoryConfig())
	_, err := store.CreateSession(ctx, "s1", nil)
	require.NoError(t, err)

	task, err := store.AddTask(ctx, "s1", Task{Type: "campaign", AssignedAgent: "scheduler"})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, TaskPending, task.Status)

	_, err = store.AddTask(ctx, "s1", Task{ID: task.ID})
	assert.Error(t, err)

	updated, err := store.UpdateTask(ctx, "s1", task.ID, TaskUpdate{Status: TaskInProgress})
	require.NoError(t, err)
	assert.Equal(t, TaskInProgress, updated.Status)

	updated, err = store.UpdateTask(ctx, "s1", task.ID, TaskUpdate{
		Status: TaskCompleted,
		Result: map[string]any{"ok": true},
	})
	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, updated.Status)
	assert.Equal(t, map[string]any{"ok": true}, updated.Result)

	_, err = store.UpdateTask(ctx, "s1", task.ID, TaskUpdate{Status: TaskInProgress})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := store.GetTask(ctx, "s1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, got.Status)

	_, err = store.GetTask(ctx, "s1", "nope")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = store.UpdateTask(ctx, "s1", "nope", TaskUpdate{Status: TaskFailed})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		allowed  bool
	}{
		{TaskPending, TaskInProgress, true},
		{TaskPending, TaskCompleted, true},
		{TaskPending, TaskFailed, true},
		{TaskInProgress, TaskCompleted, true},
		{TaskInProgress, TaskFailed, true},
		{TaskInProgress, TaskPending, false},
		{TaskCompleted, TaskFailed, false},
		{TaskFailed, TaskInProgress, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.canTransition(tt.to))
		})
	}
}

func TestMemoryStore_ActiveAgentsAreCounted(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(DefaultMemoryConfig())
	_, err := store.CreateSession(ctx, "s1", nil)
	require.NoError(t, err)

	require.NoError(t, store.AddActiveAgent(ctx, "s1", "scheduler"))
	require.NoError(t, store.AddActiveAgent(ctx, "s1", "scheduler"))
	require.NoError(t, store.AddActiveAgent(ctx, "s1", "copywriter"))

	s, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"copywriter", "scheduler"}, s.ActiveAgents)

	require.NoError(t, store.RemoveActiveAgent(ctx, "s1", "scheduler"))
	s, err = store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"copywriter", "scheduler"}, s.ActiveAgents)

	require.NoError(t, store.RemoveActiveAgent(ctx, "s1", "scheduler"))
	require.NoError(t, store.RemoveActiveAgent(ctx, "s1", "copywriter"))
	require.NoError(t, store.RemoveActiveAgent(ctx, "s1", "never-added"))
	s, err = store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, s.ActiveAgents)
}

func TestMemoryStore_IdleSessionsExpire(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(MemoryConfig{TTL: 50 * time.Millisecond})
	_, err := store.CreateSession(ctx, "s1", nil)
	require.NoError(t, err)

	// every access refreshes the TTL, so the session has to sit idle
	time.Sleep(150 * time.Millisecond)

	_, err = store.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore_AccessRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(MemoryConfig{TTL: 100 * time.Millisecond})
	_, err := store.CreateSession(ctx, "s1", nil)
	require.NoError(t, err)

	for range 5 {
		time.Sleep(40 * time.Millisecond)
		_, err := store.GetSession(ctx, "s1")
		require.NoError(t, err)
	}
}

func TestMemoryStore_OnEvict(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(MemoryConfig{TTL: 50 * time.Millisecond, MaxSessions: 1})

	evicted := make(chan string, 4)
	store.OnEvict(func(sessionID string) { evicted <- sessionID })

	_, err := store.CreateSession(ctx, "a", nil)
	require.NoError(t, err)
	_, err = store.CreateSession(ctx, "b", nil)
	require.NoError(t, err)

	select {
	case id := <-evicted:
		assert.Equal(t, "a", id)
	case <-time.After(time.Second):
		t.Fatal("capacity eviction did not run the hook")
	}

	select {
	case id := <-evicted:
		assert.Equal(t, "b", id)
	case <-time.After(2 * time.Second):
		t.Fatal("expiry did not run the hook")
	}
}

func TestMemoryStore_EvictedEntryNeverReturns(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(MemoryConfig{TTL: time.Hour, MaxSessions: 1})

	var tick atomic.Int64
	base := time.Now()
	store.now = func() time.Time {
		return base.Add(time.Duration(tick.Add(1)))
	}

	const iterations = 500
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range iterations {
				_, _, _ = store.GetOrCreateSession(ctx, id)
			}
		}()
	}

	regressions := make(chan string, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last time.Time
			for range iterations {
				s, err := store.GetSession(ctx, "a")
				if err != nil {
					continue
				}
				if s.CreatedAt.Before(last) {
					regressions <- fmt.Sprintf("saw %v after %v", s.CreatedAt, last)
					return
				}
				last = s.CreatedAt
			}
		}()
	}

	wg.Wait()
	close(regressions)
	for r := range regressions {
		t.Errorf("evicted session came back: %s", r)
	}
}

func TestMemoryStore_MaxSessionsEvictsLeastRecent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(MemoryConfig{TTL: time.Hour, MaxSessions: 2})

	for _, id := range []string{"a", "b"} {
		_, err := store.CreateSession(ctx, id, nil)
		require.NoError(t, err)
	}
	_, err := store.GetSession(ctx, "a")
	require.NoError(t, err)

	_, err = store.CreateSession(ctx, "c", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, store.Len())
	_, err = store.GetSession(ctx, "b")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.GetSession(ctx, "a")
	assert.NoError(t, err)
}

func TestMemoryStore_ConcurrentAppendsLoseNothing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(MemoryConfig{TTL: time.Hour})
	_, err := store.CreateSession(ctx, "s1", nil)
	require.NoError(t, err)
	_, err = store.CreateSession(ctx, "s2", nil)
	require.NoError(t, err)

	const writers = 20
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				sid := "s1"
				if i%2 == 1 {
					sid = "s2"
				}
				_, err := store.AddConversationEntry(ctx, sid, ConversationEntry{
					Type:    EntryAgentResponse,
					Content: fmt.Sprintf("%d-%d", w, i),
				})
				assert.NoError(t, err)
				assert.NoError(t, store.AddActiveAgent(ctx, sid, "scheduler"))
				assert.NoError(t, store.RemoveActiveAgent(ctx, sid, "scheduler"))
			}
		}(w)
	}
	wg.Wait()

	h1, err := store.GetConversationHistory(ctx, "s1", 0)
	require.NoError(t, err)
	h2, err := store.GetConversationHistory(ctx, "s2", 0)
	require.NoError(t, err)
	assert.Len(t, h1, writers*13)
	assert.Len(t, h2, writers*12)

	seen := make(map[string]bool)
	for _, e := range append(h1, h2...) {
		assert.False(t, seen[e.ID], "duplicate entry id")
		seen[e.ID] = true
	}

	s, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, s.ActiveAgents)
}
