package session

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
)

// StateTopic carries one event per published snapshot. Subscribers pull the
// snapshot themselves; the event only says that it changed.
const StateTopic = "state.changed"

type ChangeEvent struct {
	Revision uint64 `json:"revision"`
	Reason   string `json:"reason"`
}

// Store owns the session collection and the active-session pointer. Every
// mutation clones the current snapshot, transforms the clone, and publishes it
// atomically; no caller ever holds a mutable reference into a live session.
type Store struct {
	mu       sync.RWMutex
	state    State
	revision uint64

	pubsub *gochannel.GoChannel
	logger zerolog.Logger
}

func NewStore(initial State, logger zerolog.Logger) *Store {
	return &Store{
		state: initial.clone(),
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, watermill.NopLogger{}),
		logger: logger.With().Str("component", "store").Logger(),
	}
}

func (s *Store) Close() error {
	return s.pubsub.Close()
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// update runs fn against a clone of the state. fn reports whether anything
// changed; unchanged clones are discarded without publishing.
func (s *Store) update(reason string, fn func(st *State) bool) bool {
	s.mu.Lock()
	next := s.state.clone()
	if !fn(&next) {
		s.mu.Unlock()
		return false
	}
	s.state = next
	s.revision++
	rev := s.revision
	s.mu.Unlock()

	s.publish(rev, reason)
	return true
}

func (s *Store) publish(rev uint64, reason string) {
	payload, err := json.Marshal(ChangeEvent{Revision: rev, Reason: reason})
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal change event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.pubsub.Publish(StateTopic, msg); err != nil {
		s.logger.Warn().Err(err).Str("reason", reason).Msg("publish state change")
	}
}

// Subscribe returns the raw change stream. Most callers want OnChange.
func (s *Store) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return s.pubsub.Subscribe(ctx, StateTopic)
}

// OnChange invokes fn with a fresh snapshot after every state change, until
// ctx ends. Bursts are coalesced: fn sees the latest snapshot, not every
// intermediate one.
func (s *Store) OnChange(ctx context.Context, fn func(State)) error {
	ch, err := s.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			msg.Ack()
			for drained := false; !drained; {
				select {
				case extra, more := <-ch:
					if !more {
						drained = true
						break
					}
					extra.Ack()
				default:
					drained = true
				}
			}
			fn(s.Snapshot())
		}
	}
}

// -- Session collection ops --

// CreateSession inserts a new session at the head of the collection and makes
// it current.
func (s *Store) CreateSession(title string) Session {
	if title == "" {
		title = "New Chat"
	}
	sess := Session{
		ID:        NewSessionID(),
		Title:     title,
		Messages:  []Message{},
		CreatedAt: time.Now(),
	}
	s.update("session.create", func(st *State) bool {
		st.Sessions = append([]Session{sess.clone()}, st.Sessions...)
		st.CurrentSessionID = sess.ID
		return true
	})
	return sess
}

func (s *Store) SelectSession(id string) bool {
	return s.update("session.select", func(st *State) bool {
		if st.findSession(id) == nil {
			return false
		}
		st.CurrentSessionID = id
		return true
	})
}

// StartNewChat clears the active-session pointer; the next send creates a
// session.
func (s *Store) StartNewChat() {
	s.update("session.draft", func(st *State) bool {
		if st.CurrentSessionID == "" {
			return false
		}
		st.CurrentSessionID = ""
		return true
	})
}

// DeleteSession removes the session; deleting the current one reverts to the
// draft state.
func (s *Store) DeleteSession(id string) bool {
	return s.update("session.delete", func(st *State) bool {
		kept := st.Sessions[:0]
		found := false
		for _, sess := range st.Sessions {
			if sess.ID == id {
				found = true
				continue
			}
			kept = append(kept, sess)
		}
		if !found {
			return false
		}
		st.Sessions = kept
		if st.CurrentSessionID == id {
			st.CurrentSessionID = ""
		}
		return true
	})
}

func (s *Store) RenameSession(id, title string) bool {
	return s.update("session.rename", func(st *State) bool {
		sess := st.findSession(id)
		if sess == nil || sess.Title == title {
			return false
		}
		sess.Title = title
		return true
	})
}

func (s *Store) TogglePin(id string) bool {
	return s.update("session.pin", func(st *State) bool {
		sess := st.findSession(id)
		if sess == nil {
			return false
		}
		sess.Pinned = !sess.Pinned
		return true
	})
}

// SortedSessions is a pure view over the snapshot: pinned first (stable among
// themselves), then by creation time descending.
func (s *Store) SortedSessions() []Session {
	st := s.Snapshot()
	sorted := st.Sessions
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return sorted
}

// SearchSessions matches the query against titles and every stored version of
// every message, case-insensitively.
func (s *Store) SearchSessions(query string) []Session {
	query = strings.ToLower(strings.TrimSpace(query))
	sorted := s.SortedSessions()
	if query == "" {
		return sorted
	}
	var out []Session
	for _, sess := range sorted {
		if sessionMatches(sess, query) {
			out = append(out, sess)
		}
	}
	return out
}

func sessionMatches(sess Session, query string) bool {
	if strings.Contains(strings.ToLower(sess.Title), query) {
		return true
	}
	for _, m := range sess.Messages {
		for _, v := range m.Versions {
			if strings.Contains(strings.ToLower(v), query) {
				return true
			}
		}
	}
	return false
}

func (s *Store) CurrentSession() (Session, bool) {
	st := s.Snapshot()
	if st.CurrentSessionID == "" {
		return Session{}, false
	}
	sess := st.findSession(st.CurrentSessionID)
	if sess == nil {
		return Session{}, false
	}
	return *sess, true
}

// -- App-level flags persisted alongside the sessions --

func (s *Store) SetBaseURL(url string) {
	s.update("config.url", func(st *State) bool {
		st.BaseURL = strings.TrimSuffix(url, "/")
		return true
	})
}

func (s *Store) SetModel(model string) {
	s.update("config.model", func(st *State) bool {
		if model == "" || st.Model == model {
			return false
		}
		st.Model = model
		return true
	})
}

// ResetConfig clears the base URL and logs out; sessions are kept.
func (s *Store) ResetConfig() {
	s.update("config.reset", func(st *State) bool {
		st.BaseURL = ""
		st.IsLoggedIn = false
		return true
	})
}

func (s *Store) Login(username string) {
	s.update("auth.login", func(st *State) bool {
		st.Username = username
		st.IsLoggedIn = true
		return true
	})
}

func (s *Store) ToggleDarkMode() {
	s.update("theme.toggle", func(st *State) bool {
		st.IsDarkMode = !st.IsDarkMode
		return true
	})
}
