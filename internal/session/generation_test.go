package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gen62/genchat/internal/ai"
)

// scriptedProvider answers from a fixed reply/error and records every request
// payload. When block is set, Chat waits for it (or the context) first.
type scriptedProvider struct {
	reply string
	err   error
	block chan struct{}

	mu    sync.Mutex
	calls [][]ai.Message
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, append([]ai.Message(nil), messages...))
	p.mu.Unlock()

	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return p.reply, p.err
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *scriptedProvider) lastCall(t *testing.T) []ai.Message {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.calls)
	return p.calls[len(p.calls)-1]
}

func newTestController(t *testing.T, prov ai.Provider) (*Store, *Controller) {
	t.Helper()
	store := newTestStore(t, State{BaseURL: "http://localhost:11434", Model: "test-model"})
	reg := ai.NewRegistry()
	reg.Register("ollama", func(context.Context, string) (ai.Provider, error) {
		return prov, nil
	})
	ctrl := NewController(store, reg, ControllerConfig{Timeout: 5 * time.Second}, zerolog.Nop())
	return store, ctrl
}

func waitIdle(t *testing.T, ctrl *Controller) {
	t.Helper()
	require.Eventually(t, func() bool { return !ctrl.IsGenerating() }, 2*time.Second, 5*time.Millisecond)
}

func TestSend_CreatesSessionAndFinalizesReply(t *testing.T) {
	prov := &scriptedProvider{reply: "Hi there"}
	store, ctrl := newTestController(t, prov)

	require.NoError(t, ctrl.Send("Hello"))
	waitIdle(t, ctrl)

	st := store.Snapshot()
	require.Len(t, st.Sessions, 1)
	sess := st.Sessions[0]
	require.Equal(t, sess.ID, st.CurrentSessionID)
	require.Equal(t, "Hello", sess.Title)

	require.Len(t, sess.Messages, 2)
	require.Equal(t, RoleUser, sess.Messages[0].Role)
	require.Equal(t, "Hello", sess.Messages[0].Content())
	require.Equal(t, RoleAssistant, sess.Messages[1].Role)
	require.Equal(t, []string{"Hi there"}, sess.Messages[1].Versions)
}

func TestSend_HistoryExcludesTypingPlaceholder(t *testing.T) {
	prov := &scriptedProvider{reply: "ans"}
	_, ctrl := newTestController(t, prov)

	require.NoError(t, ctrl.Send("Hello"))
	waitIdle(t, ctrl)

	call := prov.lastCall(t)
	require.Len(t, call, 1, "placeholder must not be sent to the model")
	require.Equal(t, ai.Message{Role: "user", Content: "Hello"}, call[0])
}

func TestSend_SecondTurnCarriesPriorReply(t *testing.T) {
	prov := &scriptedProvider{reply: "ans"}
	_, ctrl := newTestController(t, prov)

	require.NoError(t, ctrl.Send("first"))
	waitIdle(t, ctrl)
	require.NoError(t, ctrl.Send("second"))
	waitIdle(t, ctrl)

	call := prov.lastCall(t)
	require.Len(t, call, 3)
	require.Equal(t, "first", call[0].Content)
	require.Equal(t, "ans", call[1].Content)
	require.Equal(t, "second", call[2].Content)
}

func TestSend_UnconfiguredIsSilentNoOp(t *testing.T) {
	prov := &scriptedProvider{reply: "never"}
	store := newTestStore(t, State{})
	reg := ai.NewRegistry()
	reg.Register("ollama", func(context.Context, string) (ai.Provider, error) { return prov, nil })
	ctrl := NewController(store, reg, ControllerConfig{}, zerolog.Nop())

	require.NoError(t, ctrl.Send("Hello"))
	require.Empty(t, store.Snapshot().Sessions)
	require.False(t, ctrl.IsGenerating())
}

func TestSend_TitleTruncatedWithEllipsis(t *testing.T) {
	prov := &scriptedProvider{reply: "ans"}
	store, ctrl := newTestController(t, prov)

	long := "This message is clearly longer than thirty characters"
	require.NoError(t, ctrl.Send(long))
	waitIdle(t, ctrl)

	title := store.Snapshot().Sessions[0].Title
	require.Equal(t, string([]rune(long)[:30])+"...", title)
}

func TestSend_RejectsWhileGenerating(t *testing.T) {
	prov := &scriptedProvider{reply: "slow", block: make(chan struct{})}
	_, ctrl := newTestController(t, prov)

	require.NoError(t, ctrl.Send("first"))
	require.Eventually(t, ctrl.IsGenerating, time.Second, time.Millisecond)

	require.ErrorIs(t, ctrl.Send("second"), ErrGenerationBusy)

	close(prov.block)
	waitIdle(t, ctrl)
}

func TestEditMessage_RegeneratesInPlace(t *testing.T) {
	prov := &scriptedProvider{reply: "first answer"}
	store, ctrl := newTestController(t, prov)

	require.NoError(t, ctrl.Send("A"))
	waitIdle(t, ctrl)
	sessionID := store.Snapshot().CurrentSessionID

	prov.mu.Lock()
	prov.reply = "second answer"
	prov.mu.Unlock()

	require.NoError(t, ctrl.EditMessage(sessionID, 0, "B"))
	waitIdle(t, ctrl)

	sess := store.Snapshot().Sessions[0]
	require.Equal(t, []string{"A", "B"}, sess.Messages[0].Versions)
	// One edit, one regeneration: exactly two answer versions, never three.
	require.Equal(t, []string{"first answer", "second answer"}, sess.Messages[1].Versions)
	require.Equal(t, 1, sess.Messages[1].CurrentVersion)

	// The regeneration request used the edited text and no stale answer.
	call := prov.lastCall(t)
	require.Len(t, call, 1)
	require.Equal(t, "B", call[0].Content)
}

func TestEditMessage_InvalidTargetDoesNotTrigger(t *testing.T) {
	prov := &scriptedProvider{reply: "ans"}
	store, ctrl := newTestController(t, prov)

	require.NoError(t, ctrl.Send("A"))
	waitIdle(t, ctrl)
	sessionID := store.Snapshot().CurrentSessionID

	before := prov.callCount()
	require.NoError(t, ctrl.EditMessage(sessionID, 1, "x"), "editing the assistant is refused by the ledger")
	require.False(t, ctrl.IsGenerating())
	require.Equal(t, before, prov.callCount())
}

func TestSwitchVersion_FrozenWhileGenerating(t *testing.T) {
	prov := &scriptedProvider{reply: "slow", block: make(chan struct{})}
	store, ctrl := newTestController(t, prov)

	require.NoError(t, ctrl.Send("A"))
	require.Eventually(t, ctrl.IsGenerating, time.Second, time.Millisecond)
	sessionID := store.Snapshot().CurrentSessionID

	require.False(t, ctrl.SwitchVersion(sessionID, 0, DirectionPrev))

	close(prov.block)
	waitIdle(t, ctrl)
}

func TestStop_AbortsAndSnapsMessage(t *testing.T) {
	prov := &scriptedProvider{reply: "never delivered", block: make(chan struct{})}
	store, ctrl := newTestController(t, prov)

	require.NoError(t, ctrl.Send("A"))
	require.Eventually(t, ctrl.IsGenerating, time.Second, time.Millisecond)

	ctrl.Stop()
	require.False(t, ctrl.IsGenerating())

	sess := store.Snapshot().Sessions[0]
	assistant := sess.Messages[1]
	require.False(t, assistant.IsTyping)
	require.Empty(t, assistant.Content(), "no answer arrived before the abort")

	// Idempotent.
	ctrl.Stop()

	// The aborted request must not finalize late.
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, store.Snapshot().Sessions[0].Messages[1].Content())
}

func TestRun_ConnectionFailureWritesDiagnostic(t *testing.T) {
	prov := &scriptedProvider{err: errors.New("dial tcp: refused")}
	store, ctrl := newTestController(t, prov)

	require.NoError(t, ctrl.Send("A"))
	waitIdle(t, ctrl)

	assistant := store.Snapshot().Sessions[0].Messages[1]
	require.Equal(t, "Error: Connection failed.", assistant.Content())
}

func TestRun_InvalidResponseWritesDiagnostic(t *testing.T) {
	prov := &scriptedProvider{err: ai.ErrInvalidResponse}
	store, ctrl := newTestController(t, prov)

	require.NoError(t, ctrl.Send("A"))
	waitIdle(t, ctrl)

	assistant := store.Snapshot().Sessions[0].Messages[1]
	require.Equal(t, "Error: Invalid response format.", assistant.Content())
}

func TestGeneratingFor_ScopedToSession(t *testing.T) {
	prov := &scriptedProvider{reply: "slow", block: make(chan struct{})}
	store, ctrl := newTestController(t, prov)

	require.NoError(t, ctrl.Send("A"))
	require.Eventually(t, ctrl.IsGenerating, time.Second, time.Millisecond)
	sessionID := store.Snapshot().CurrentSessionID

	require.True(t, ctrl.GeneratingFor(sessionID))
	require.False(t, ctrl.GeneratingFor("other"))

	close(prov.block)
	waitIdle(t, ctrl)
	require.False(t, ctrl.GeneratingFor(sessionID))
}

func TestDeriveTitle(t *testing.T) {
	require.Equal(t, "short", deriveTitle("short", 30))
	require.Equal(t, "exactly-ten", deriveTitle("exactly-ten", 11))
	require.Equal(t, "0123456789...", deriveTitle("0123456789x", 10))
}
