package session

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Direction string

const (
	DirectionPrev Direction = "prev"
	DirectionNext Direction = "next"
)

type FeedbackKind string

const (
	FeedbackLike    FeedbackKind = "like"
	FeedbackDislike FeedbackKind = "dislike"
)

// Message keeps an append-only ledger of content variants. Content is always
// the version at CurrentVersion; it is never stored separately, so the two
// cannot drift.
type Message struct {
	ID             string   `json:"id"`
	Role           Role     `json:"role"`
	Versions       []string `json:"versions"`
	CurrentVersion int      `json:"currentVersion"`

	// DisplayedContent is the reveal cursor: a prefix of Content while
	// IsTyping is true, equal to Content once typing completes.
	DisplayedContent string `json:"displayedContent"`
	IsTyping         bool   `json:"isTyping,omitempty"`
	Liked            bool   `json:"liked,omitempty"`
	Disliked         bool   `json:"disliked,omitempty"`
}

func (m *Message) Content() string {
	if m.CurrentVersion < 0 || m.CurrentVersion >= len(m.Versions) {
		return ""
	}
	return m.Versions[m.CurrentVersion]
}

func (m Message) clone() Message {
	m.Versions = append([]string(nil), m.Versions...)
	return m
}

type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	Pinned    bool      `json:"pinned,omitempty"`
}

func (s Session) clone() Session {
	msgs := make([]Message, len(s.Messages))
	for i := range s.Messages {
		msgs[i] = s.Messages[i].clone()
	}
	s.Messages = msgs
	return s
}

// State is the single shared snapshot every component reads and replaces as a
// whole. CurrentSessionID == "" is the draft state: the next send creates a
// session.
type State struct {
	BaseURL          string    `json:"baseUrl"`
	Model            string    `json:"model"`
	Sessions         []Session `json:"sessions"`
	CurrentSessionID string    `json:"currentSessionId"`
	Username         string    `json:"username"`
	IsLoggedIn       bool      `json:"isLoggedIn"`
	IsDarkMode       bool      `json:"isDarkMode"`
}

func (st State) clone() State {
	sessions := make([]Session, len(st.Sessions))
	for i := range st.Sessions {
		sessions[i] = st.Sessions[i].clone()
	}
	st.Sessions = sessions
	return st
}

func (st *State) findSession(id string) *Session {
	for i := range st.Sessions {
		if st.Sessions[i].ID == id {
			return &st.Sessions[i]
		}
	}
	return nil
}

// NewSessionID returns a 26-char ULID, sortable by creation time.
func NewSessionID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

func newMessageID() string {
	return uuid.NewString()
}
