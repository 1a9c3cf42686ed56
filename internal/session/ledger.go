package session

// Ledger operations: every message keeps an append-only list of content
// versions with one selected as current. Editing a user message and switching
// versions are coupled to the following assistant message, which holds the
// answer matching each user version.
//
// Validation failures (bad index, wrong role, out-of-bounds switch) are silent
// no-ops: the UI is expected to prevent them, and the state must stay
// untouched when it does not.

// AppendMessage adds a message with a single version. User messages are fully
// displayed immediately; assistant messages start as typing placeholders that
// the reveal scheduler catches up on.
func (s *Store) AppendMessage(sessionID string, role Role, content string) (Message, bool) {
	msg := Message{
		ID:             newMessageID(),
		Role:           role,
		Versions:       []string{content},
		CurrentVersion: 0,
	}
	switch role {
	case RoleAssistant:
		msg.IsTyping = true
		msg.DisplayedContent = ""
	default:
		msg.DisplayedContent = content
	}
	ok := s.update("message.append", func(st *State) bool {
		sess := st.findSession(sessionID)
		if sess == nil {
			return false
		}
		sess.Messages = append(sess.Messages, msg.clone())
		return true
	})
	return msg, ok
}

// EditUserMessage appends newContent as a new version of the user message at
// index and advances to it. If the next message is an assistant answer, a
// blank version is appended there in lockstep and marked typing, pending
// regeneration. Returns false without touching state when index is out of
// bounds or the message is not a user message.
func (s *Store) EditUserMessage(sessionID string, index int, newContent string) bool {
	return s.update("message.edit", func(st *State) bool {
		sess := st.findSession(sessionID)
		if sess == nil || index < 0 || index >= len(sess.Messages) {
			return false
		}
		msg := &sess.Messages[index]
		if msg.Role != RoleUser {
			return false
		}

		msg.Versions = append(msg.Versions, newContent)
		msg.CurrentVersion = len(msg.Versions) - 1
		msg.DisplayedContent = newContent

		if next := index + 1; next < len(sess.Messages) && sess.Messages[next].Role == RoleAssistant {
			ai := &sess.Messages[next]
			ai.Versions = append(ai.Versions, "")
			ai.CurrentVersion = len(ai.Versions) - 1
			ai.DisplayedContent = ""
			ai.IsTyping = true
		}
		return true
	})
}

// SwitchVersion moves the version pointer by one step; stepping past either
// end is a no-op. The assistant message at index+1 follows, clamped to its own
// version count, with typing cleared so the switched-to answer shows in full.
//
// Callers must not switch versions while a generation is in flight; the
// Controller front-end enforces that.
func (s *Store) SwitchVersion(sessionID string, index int, dir Direction) bool {
	return s.update("message.switch", func(st *State) bool {
		sess := st.findSession(sessionID)
		if sess == nil || index < 0 || index >= len(sess.Messages) {
			return false
		}
		msg := &sess.Messages[index]

		next := msg.CurrentVersion
		switch dir {
		case DirectionNext:
			next++
		case DirectionPrev:
			next--
		default:
			return false
		}
		if next < 0 || next >= len(msg.Versions) {
			return false
		}

		msg.CurrentVersion = next
		msg.DisplayedContent = msg.Versions[next]

		if ni := index + 1; ni < len(sess.Messages) && sess.Messages[ni].Role == RoleAssistant {
			ai := &sess.Messages[ni]
			av := next
			if av >= len(ai.Versions) {
				av = len(ai.Versions) - 1
			}
			ai.CurrentVersion = av
			ai.DisplayedContent = ai.Versions[av]
			ai.IsTyping = false
		}
		return true
	})
}

// ToggleFeedback flips like/dislike on a message; the two are mutually
// exclusive and re-toggling clears.
func (s *Store) ToggleFeedback(sessionID string, index int, kind FeedbackKind) bool {
	return s.update("message.feedback", func(st *State) bool {
		sess := st.findSession(sessionID)
		if sess == nil || index < 0 || index >= len(sess.Messages) {
			return false
		}
		msg := &sess.Messages[index]
		switch kind {
		case FeedbackLike:
			msg.Liked = !msg.Liked
			if msg.Liked {
				msg.Disliked = false
			}
		case FeedbackDislike:
			msg.Disliked = !msg.Disliked
			if msg.Disliked {
				msg.Liked = false
			}
		default:
			return false
		}
		return true
	})
}

// finalizeAssistant writes text into the current version slot of the assistant
// message still marked typing (fallback: the last message). It never appends a
// version: a regenerate overwrites the slot the edit created.
func (s *Store) finalizeAssistant(sessionID, text string) bool {
	return s.update("message.finalize", func(st *State) bool {
		sess := st.findSession(sessionID)
		if sess == nil || len(sess.Messages) == 0 {
			return false
		}
		target := -1
		for i := range sess.Messages {
			if sess.Messages[i].Role == RoleAssistant && sess.Messages[i].IsTyping {
				target = i
				break
			}
		}
		if target == -1 {
			target = len(sess.Messages) - 1
		}
		msg := &sess.Messages[target]
		if msg.Role != RoleAssistant {
			return false
		}
		msg.Versions[msg.CurrentVersion] = text
		return true
	})
}

// snapCancelled freezes the in-flight assistant message at whatever content it
// has: typing ends and the reveal is forfeited.
func (s *Store) snapCancelled(sessionID string) bool {
	return s.update("message.cancel", func(st *State) bool {
		sess := st.findSession(sessionID)
		if sess == nil || len(sess.Messages) == 0 {
			return false
		}
		target := -1
		for i := range sess.Messages {
			if sess.Messages[i].Role == RoleAssistant && sess.Messages[i].IsTyping {
				target = i
				break
			}
		}
		if target == -1 {
			target = len(sess.Messages) - 1
		}
		msg := &sess.Messages[target]
		if msg.Role != RoleAssistant {
			return false
		}
		msg.IsTyping = false
		msg.DisplayedContent = msg.Content()
		return true
	})
}
