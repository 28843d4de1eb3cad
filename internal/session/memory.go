package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultTTL is how long an idle session is retained
	DefaultTTL = 30 * time.Minute
	// DefaultMaxSessions bounds the number of live sessions
	DefaultMaxSessions = 10000
	// DefaultMaxHistory bounds the retained conversation entries per session
	DefaultMaxHistory = 200
)

// MemoryConfig configures a MemoryStore
type MemoryConfig struct {
	TTL         time.Duration // idle expiry; <= 0 disables expiry
	MaxSessions int           // least recently used sessions beyond this are evicted; 0 = unbounded
	MaxHistory  int           // oldest entries beyond this are dropped; 0 = unbounded
}

// DefaultMemoryConfig returns the default in-memory store configuration
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		TTL:         DefaultTTL,
		MaxSessions: DefaultMaxSessions,
		MaxHistory:  DefaultMaxHistory,
	}
}

// entry owns one session. Its mutex serializes every mutation of that session.
type entry struct {
	mu     sync.Mutex
	s      Session
	active map[string]int
}

func (e *entry) snapshot() *Session {
	s := e.s
	s.Context = e.s.Context.clone()
	s.History = cloneHistory(e.s.History)
	s.Tasks = cloneTasks(e.s.Tasks)
	s.ActiveAgents = sortedKeys(e.active)
	return &s
}

// MemoryStore implements Store in memory with per-session locking and idle expiry
type MemoryStore struct {
	sessions   *expirable.LRU[string, *entry]
	createMu   sync.Mutex
	hooksMu    sync.RWMutex
	evictHooks []func(sessionID string)
	maxHistory int
	logger     *slog.Logger
	now        func() time.Time
}

// NewMemoryStore creates an in-memory session store
func NewMemoryStore(cfg MemoryConfig, logger *slog.Logger) *MemoryStore {
	ttl := cfg.TTL
	if ttl < 0 {
		ttl = 0
	}

	m := &MemoryStore{
		maxHistory: cfg.MaxHistory,
		logger:     logger,
		now:        time.Now,
	}
	m.sessions = expirable.NewLRU[string, *entry](cfg.MaxSessions, m.onEvict, ttl)
	return m
}

func (m *MemoryStore) onEvict(id string, e *entry) {
	e.mu.Lock()
	active := sortedKeys(e.active)
	e.mu.Unlock()

	if len(active) > 0 {
		m.logger.Warn("Evicted session with active agents",
			"session_id", id,
			"active_agents", active,
		)
	} else {
		m.logger.Debug("Evicted idle session", "session_id", id)
	}

	m.hooksMu.RLock()
	hooks := m.evictHooks
	m.hooksMu.RUnlock()
	for _, hook := range hooks {
		hook(id)
	}
}

// OnEvict registers fn to run whenever a session expires or is evicted.
// fn runs under the store's internal lock and must not call back into the store.
func (m *MemoryStore) OnEvict(fn func(sessionID string)) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.evictHooks = append(m.evictHooks, fn)
}

// lookup returns the live entry for id and refreshes its expiry
func (m *MemoryStore) lookup(sessionID string) (*entry, error) {
	if sessionID == "" {
		return nil, ErrSessionIDEmpty
	}

	// Get and Add must be atomic with creation, or an entry that expired in
	// between could be re-added over its replacement.
	m.createMu.Lock()
	defer m.createMu.Unlock()

	e, ok := m.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	m.sessions.Add(sessionID, e)
	return e, nil
}

func (m *MemoryStore) newEntry(sessionID string, initial Context) *entry {
	now := m.now()
	return &entry{
		s: Session{
			ID:         sessionID,
			Context:    initial.clone(),
			CreatedAt:  now,
			LastActive: now,
		},
		active: make(map[string]int),
	}
}

// CreateSession creates a new session with an initial context
func (m *MemoryStore) CreateSession(ctx context.Context, sessionID string, initial Context) (*Session, error) {
	if sessionID == "" {
		return nil, ErrSessionIDEmpty
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()

	if m.sessions.Contains(sessionID) {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}

	e := m.newEntry(sessionID, initial)
	m.sessions.Add(sessionID, e)
	return e.snapshot(), nil
}

// GetSession retrieves a session snapshot by ID
func (m *MemoryStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), nil
}

// GetOrCreateSession returns the existing session or creates an empty one
func (m *MemoryStore) GetOrCreateSession(ctx context.Context, sessionID string) (*Session, bool, error) {
	if sessionID == "" {
		return nil, false, ErrSessionIDEmpty
	}

	m.createMu.Lock()
	e, ok := m.sessions.Get(sessionID)
	created := !ok
	if created {
		e = m.newEntry(sessionID, nil)
	}
	m.sessions.Add(sessionID, e)
	m.createMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), created, nil
}

// UpdateContext merges partial into the session context
func (m *MemoryStore) UpdateContext(ctx context.Context, sessionID string, partial Context) error {
	e, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.s.Context == nil {
		e.s.Context = Context{}
	}
	for k, v := range partial {
		e.s.Context[k] = v
	}
	e.s.LastActive = m.now()
	return nil
}

// AddConversationEntry appends an entry to the session history
func (m *MemoryStore) AddConversationEntry(
	ctx context.Context,
	sessionID string,
	item ConversationEntry,
) (ConversationEntry, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return ConversationEntry{}, err
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = m.now()
	}
	item = item.clone()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.s.History = append(e.s.History, item)
	if m.maxHistory > 0 && len(e.s.History) > m.maxHistory {
		drop := len(e.s.History) - m.maxHistory
		e.s.History = append([]ConversationEntry(nil), e.s.History[drop:]...)
	}
	e.s.LastActive = m.now()
	return item.clone(), nil
}

// GetConversationHistory returns the most recent entries in insertion order
func (m *MemoryStore) GetConversationHistory(
	ctx context.Context,
	sessionID string,
	limit int,
) ([]ConversationEntry, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	history := e.s.History
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return cloneHistory(history), nil
}

// AddTask records a new task in the session
func (m *MemoryStore) AddTask(ctx context.Context, sessionID string, task Task) (Task, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return Task{}, err
	}

	now := m.now()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = TaskPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	task = task.clone()

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, existing := range e.s.Tasks {
		if existing.ID == task.ID {
			return Task{}, fmt.Errorf("task with ID %s already exists", task.ID)
		}
	}
	e.s.Tasks = append(e.s.Tasks, task)
	e.s.LastActive = now
	return task.clone(), nil
}

// UpdateTask applies a partial update, enforcing the status lifecycle
func (m *MemoryStore) UpdateTask(ctx context.Context, sessionID, taskID string, update TaskUpdate) (Task, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return Task{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.s.Tasks {
		t := &e.s.Tasks[i]
		if t.ID != taskID {
			continue
		}
		if update.Status != "" && update.Status != t.Status {
			if !t.Status.canTransition(update.Status) {
				return Task{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, update.Status)
			}
			t.Status = update.Status
		}
		if update.Result != nil {
			t.Result = update.Result
		}
		t.UpdatedAt = m.now()
		e.s.LastActive = t.UpdatedAt
		return t.clone(), nil
	}
	return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
}

// GetTask returns one task of the session
func (m *MemoryStore) GetTask(ctx context.Context, sessionID, taskID string) (Task, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return Task{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, t := range e.s.Tasks {
		if t.ID == taskID {
			return t.clone(), nil
		}
	}
	return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
}

// AddActiveAgent marks agent as executing. Marks are counted so overlapping
// orchestrations of the same session release independently.
func (m *MemoryStore) AddActiveAgent(ctx context.Context, sessionID, agent string) error {
	e, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.active[agent]++
	e.s.LastActive = m.now()
	return nil
}

// RemoveActiveAgent releases one mark for agent
func (m *MemoryStore) RemoveActiveAgent(ctx context.Context, sessionID, agent string) error {
	e, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active[agent] <= 1 {
		delete(e.active, agent)
	} else {
		e.active[agent]--
	}
	e.s.LastActive = m.now()
	return nil
}

// Len returns the number of live sessions
func (m *MemoryStore) Len() int {
	return m.sessions.Len()
}
