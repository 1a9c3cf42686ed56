package session

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// RevealScheduler paces how fast a finalized assistant answer becomes visible.
// The content is already fully known when it runs; this is a UI-pacing device,
// not a network stream. It only ever touches the last message of the active
// session.
type RevealScheduler struct {
	store      *Store
	generating func(sessionID string) bool
	interval   time.Duration
	chunk      int
	logger     zerolog.Logger
}

func NewRevealScheduler(store *Store, generating func(string) bool, interval time.Duration, chunk int, logger zerolog.Logger) *RevealScheduler {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	if chunk <= 0 {
		chunk = 6
	}
	return &RevealScheduler{
		store:      store,
		generating: generating,
		interval:   interval,
		chunk:      chunk,
		logger:     logger.With().Str("component", "reveal").Logger(),
	}
}

// Run ticks until ctx ends. A stopped scheduler never mutates a stale session.
func (r *RevealScheduler) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			r.store.AdvanceReveal(r.chunk, r.generating)
		}
	}
}

// AdvanceReveal performs one reveal tick against the last message of the
// active session. While the message is an assistant message marked typing:
//
//   - behind the content: append the next chunk (bounded, rune-aware);
//   - caught up and no generation in flight for the session: typing ends,
//     terminally. Once IsTyping is false further ticks never mutate anything.
//
// A typing placeholder with zero buffered content simply has nothing to
// reveal until finalize writes the answer; that is the common case while the
// request is outstanding.
func (s *Store) AdvanceReveal(chunk int, generating func(sessionID string) bool) bool {
	return s.update("reveal.tick", func(st *State) bool {
		sess := st.findSession(st.CurrentSessionID)
		if sess == nil || len(sess.Messages) == 0 {
			return false
		}
		last := &sess.Messages[len(sess.Messages)-1]
		if last.Role != RoleAssistant || !last.IsTyping {
			return false
		}

		content := []rune(last.Content())
		shown := utf8.RuneCountInString(last.DisplayedContent)
		if shown < len(content) {
			next := shown + chunk
			if next > len(content) {
				next = len(content)
			}
			last.DisplayedContent = string(content[:next])
			return true
		}

		if generating != nil && generating(sess.ID) {
			return false
		}
		last.IsTyping = false
		last.DisplayedContent = last.Content()
		return true
	})
}
