// Package session owns chat sessions: the durable store, the message
// history engine, and the stream orchestrator that drives model turns.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sidekick-dev/sidekick/internal/event"
	"github.com/sidekick-dev/sidekick/internal/logging"
	"github.com/sidekick-dev/sidekick/internal/storage"
	"github.com/sidekick-dev/sidekick/pkg/types"
)

const defaultSessionName = "New Chat"

var (
	sessionsPrefix = []string{"sessions"}
	appStateKey    = []string{"state", "app"}
)

// Sentinel errors, wrapped with context at the failure site so transports
// can classify with errors.Is instead of matching message text.
var (
	// ErrSessionNotFound reports an unknown chat id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrMessageNotFound reports an unknown message id within a chat.
	ErrMessageNotFound = errors.New("message not found")
	// ErrToolCallNotFound reports an unknown tool call id.
	ErrToolCallNotFound = errors.New("tool call not found")
	// ErrInvalidInput marks caller mistakes, as opposed to backend faults.
	ErrInvalidInput = errors.New("invalid input")
)

// SessionSummary is the lightweight projection published on the
// session-list topic and returned by ListSessions.
type SessionSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MessageCount int    `json:"messageCount"`
	CreatedAt    int64  `json:"createdAt"`
	LastModified int64  `json:"lastModified"`
}

// Service is the session store. All mutations go through it: they lock the
// session, apply in memory, persist, and only then publish updates, so a
// failed write never leaves subscribers ahead of disk.
type Service struct {
	store *storage.Store
	bus   *event.Bus

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	session *types.ChatSession
}

// NewService creates a session service over the given store and bus.
func NewService(store *storage.Store, bus *event.Bus) *Service {
	return &Service{
		store:    store,
		bus:      bus,
		sessions: make(map[string]*sessionEntry),
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// NewID returns a new lexicographically sortable id.
func NewID() string {
	return ulid.Make().String()
}

// CreateSession creates and persists a new chat session.
func (s *Service) CreateSession(ctx context.Context, name string, cfg types.ChatConfig) (*types.ChatSession, error) {
	if name == "" {
		name = defaultSessionName
	}

	now := nowMillis()
	sess := &types.ChatSession{
		ID:           NewID(),
		Name:         name,
		History:      []*types.UiMessage{},
		Config:       cfg,
		CreatedAt:    now,
		LastModified: now,
	}

	if err := s.store.Put(ctx, append(sessionsPrefix, sess.ID), sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.mu.Lock()
	s.sessions[sess.ID] = &sessionEntry{session: sess}
	s.mu.Unlock()

	logging.Info().Str("session", sess.ID).Msg("session created")
	s.publishSession(ctx, sess)
	s.publishSessionList(ctx)
	return cloneSession(sess), nil
}

// GetSession returns a snapshot of the session with the given id.
func (s *Service) GetSession(ctx context.Context, id string) (*types.ChatSession, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneSession(entry.session), nil
}

// DeleteSession removes a session from memory and disk.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	if err := s.store.Delete(ctx, append(sessionsPrefix, id)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	state, _ := s.AppState(ctx)
	if state.LastActiveSessionID == id {
		state.LastActiveSessionID = ""
		if err := s.store.Put(ctx, appStateKey, state); err != nil {
			logging.Warn().Err(err).Msg("clear last active session")
		}
	}

	s.bus.DropRetained(event.TopicSessionUpdate(id))
	s.bus.DropRetained(event.TopicStreamStatus(id))
	s.publishSessionList(ctx)
	return nil
}

// RenameSession sets a session's display name.
func (s *Service) RenameSession(ctx context.Context, id, name string) error {
	if name == "" {
		return fmt.Errorf("%w: session name must not be empty", ErrInvalidInput)
	}
	_, err := s.mutate(ctx, id, func(sess *types.ChatSession) error {
		sess.Name = name
		return nil
	})
	return err
}

// SetSessionConfig replaces a session's model configuration.
func (s *Service) SetSessionConfig(ctx context.Context, id string, cfg types.ChatConfig) error {
	_, err := s.mutate(ctx, id, func(sess *types.ChatSession) error {
		sess.Config = cfg
		return nil
	})
	return err
}

// TouchSession bumps LastModified and persists.
func (s *Service) TouchSession(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, id, func(*types.ChatSession) error { return nil })
	return err
}

// ListSessions returns summaries of every stored session, most recently
// modified first.
func (s *Service) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	byID := make(map[string]SessionSummary)

	err := s.store.Scan(ctx, sessionsPrefix, func(key string, data json.RawMessage) error {
		var sess types.ChatSession
		if err := json.Unmarshal(data, &sess); err != nil {
			logging.Warn().Str("session", key).Err(err).Msg("skipping unreadable session")
			return nil
		}
		byID[sess.ID] = summarize(&sess)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// In-memory copies may be ahead of disk mid-mutation.
	s.mu.Lock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.Unlock()
	for _, e := range entries {
		e.mu.Lock()
		byID[e.session.ID] = summarize(e.session)
		e.mu.Unlock()
	}

	summaries := make([]SessionSummary, 0, len(byID))
	for _, sum := range byID {
		summaries = append(summaries, sum)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].LastModified != summaries[j].LastModified {
			return summaries[i].LastModified > summaries[j].LastModified
		}
		return summaries[i].ID > summaries[j].ID
	})
	return summaries, nil
}

// AppState returns the workspace pointer record. An absent record is an
// empty state, not an error.
func (s *Service) AppState(ctx context.Context) (*types.AppState, error) {
	var state types.AppState
	if err := s.store.Get(ctx, appStateKey, &state); err != nil && err != storage.ErrNotFound {
		return nil, err
	}
	return &state, nil
}

// SetLastActiveSession records which chat the UI had open.
func (s *Service) SetLastActiveSession(ctx context.Context, id string) error {
	state, err := s.AppState(ctx)
	if err != nil {
		return err
	}
	state.LastActiveSessionID = id
	return s.store.Put(ctx, appStateKey, state)
}

// SetLastLocation records where the UI last was.
func (s *Service) SetLastLocation(ctx context.Context, location string) error {
	state, err := s.AppState(ctx)
	if err != nil {
		return err
	}
	state.LastLocation = location
	return s.store.Put(ctx, appStateKey, state)
}

// entry loads the session into the in-memory map if it is not already there.
func (s *Service) entry(ctx context.Context, id string) (*sessionEntry, error) {
	s.mu.Lock()
	if e, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		return e, nil
	}
	s.mu.Unlock()

	var sess types.ChatSession
	if err := s.store.Get(ctx, append(sessionsPrefix, id), &sess); err != nil {
		if err == storage.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		return e, nil
	}
	e := &sessionEntry{session: &sess}
	s.sessions[id] = e
	return e, nil
}

// mutate applies fn to the locked session, persists, and publishes. If fn or
// the write fails the in-memory copy is restored, so observers never see a
// half-applied mutation.
func (s *Service) mutate(ctx context.Context, id string, fn func(*types.ChatSession) error) (*types.ChatSession, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	backup := cloneSession(entry.session)
	if err := fn(entry.session); err != nil {
		entry.session = backup
		entry.mu.Unlock()
		return nil, err
	}
	entry.session.LastModified = nowMillis()

	if err := s.store.Put(ctx, append(sessionsPrefix, id), entry.session); err != nil {
		entry.session = backup
		entry.mu.Unlock()
		return nil, fmt.Errorf("persist session %s: %w", id, err)
	}

	snapshot := cloneSession(entry.session)
	// Publish outside the entry lock: list publication re-reads every entry.
	entry.mu.Unlock()

	s.publishSession(ctx, snapshot)
	s.publishSessionList(ctx)
	return snapshot, nil
}

func (s *Service) publishSession(ctx context.Context, sess *types.ChatSession) {
	s.bus.PublishRetained(event.TopicSessionUpdate(sess.ID), sess)
}

func (s *Service) publishSessionList(ctx context.Context) {
	summaries, err := s.ListSessions(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("publish session list")
		return
	}
	s.bus.PublishRetained(event.TopicSessionList, summaries)
}

func summarize(sess *types.ChatSession) SessionSummary {
	return SessionSummary{
		ID:           sess.ID,
		Name:         sess.Name,
		MessageCount: len(sess.History),
		CreatedAt:    sess.CreatedAt,
		LastModified: sess.LastModified,
	}
}

// cloneSession deep-copies through the JSON form; the content-part union
// round-trips via UiMessage's custom unmarshaler.
func cloneSession(sess *types.ChatSession) *types.ChatSession {
	data, err := json.Marshal(sess)
	if err != nil {
		logging.Error().Err(err).Msg("clone session: marshal")
		return sess
	}
	var out types.ChatSession
	if err := json.Unmarshal(data, &out); err != nil {
		logging.Error().Err(err).Msg("clone session: unmarshal")
		return sess
	}
	return &out
}
