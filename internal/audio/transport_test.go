package audio

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// manualNarrator records utterances and lets the test deliver the outcome by
// hand, the way a real speech engine would asynchronously.
type manualNarrator struct {
	mu     sync.Mutex
	spoken []string
	done   func()
	fail   func(error)
	stops  int
	reject error
}

func (n *manualNarrator) Speak(text string, done func(), fail func(error)) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.reject != nil {
		return n.reject
	}
	n.spoken = append(n.spoken, text)
	n.done = done
	n.fail = fail
	return nil
}

func (n *manualNarrator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stops++
	n.done = nil
	n.fail = nil
}

func (n *manualNarrator) finish(t *testing.T) {
	t.Helper()
	n.mu.Lock()
	done := n.done
	n.mu.Unlock()
	require.NotNil(t, done, "no utterance in flight")
	done()
}

func (n *manualNarrator) breakDown(t *testing.T, err error) {
	t.Helper()
	n.mu.Lock()
	fail := n.fail
	n.mu.Unlock()
	require.NotNil(t, fail, "no utterance in flight")
	fail(err)
}

func (n *manualNarrator) last(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.spoken)
	return n.spoken[len(n.spoken)-1]
}

func newTestTransport(narr Narrator) *Transport {
	return NewTransport(narr, Config{
		// A long tick keeps the timer out of the way; tests drive state
		// through the public surface and the narrator callbacks.
		TickInterval:   time.Hour,
		CharsPerSecond: 14,
		MinSeconds:     2,
		EndTolerance:   2,
	}, zerolog.Nop())
}

func TestPrepare_EstimatesTimeline(t *testing.T) {
	tr := newTestTransport(&manualNarrator{})

	tr.Prepare("hello world") // 11 chars -> ceil(11/14)=1, floored to 2
	st := tr.Status()
	require.Equal(t, "prepared", st.State)
	require.True(t, st.Visible)
	require.False(t, st.Playing)
	require.Equal(t, 2, st.TotalSeconds)
	require.Equal(t, 11, st.TextLength)
	require.Zero(t, st.ElapsedSeconds)
}

func TestPrepare_RoundsUp(t *testing.T) {
	tr := newTestTransport(&manualNarrator{})
	tr.Prepare(strings.Repeat("a", 29)) // ceil(29/14) = 3
	require.Equal(t, 3, tr.Status().TotalSeconds)
}

func TestPrepare_CleansBeforeEstimating(t *testing.T) {
	tr := newTestTransport(&manualNarrator{})
	tr.Prepare("**bold**")
	require.Equal(t, 4, tr.Status().TextLength)
}

func TestPlayPause_TogglesAndResumesFromPosition(t *testing.T) {
	narr := &manualNarrator{}
	tr := newTestTransport(narr)
	tr.Prepare("alpha beta gamma")

	tr.PlayPause()
	require.Equal(t, "playing", tr.Status().State)
	require.Equal(t, "alpha beta gamma", narr.last(t))

	tr.PlayPause()
	require.Equal(t, "paused", tr.Status().State)

	// Seek while paused, then resume: narration starts at the committed word,
	// not the beginning. Commit itself forces playing.
	tr.SeekCommit(50)
	require.Equal(t, "playing", tr.Status().State)
	require.Equal(t, "beta gamma", narr.last(t))
}

func TestSeekCommit_SnapsBackToWordStart(t *testing.T) {
	narr := &manualNarrator{}
	tr := newTestTransport(narr)
	tr.Prepare("alpha beta gamma") // 16 runes

	tr.SeekCommit(50) // target 8, mid "beta" -> snap to 6
	st := tr.Status()
	require.Equal(t, 6, st.CharIndex)
	require.Equal(t, "beta gamma", narr.last(t))
	require.Equal(t, st.TotalSeconds*50/100, st.ElapsedSeconds)
}

func TestSeekCommit_ZeroRestartsFromTop(t *testing.T) {
	narr := &manualNarrator{}
	tr := newTestTransport(narr)
	tr.Prepare("alpha beta gamma")

	tr.SeekCommit(75)
	tr.SeekCommit(0)
	st := tr.Status()
	require.Zero(t, st.CharIndex)
	require.Zero(t, st.ElapsedSeconds)
	require.Equal(t, "alpha beta gamma", narr.last(t))
}

func TestSeekCommit_FullPercentSpeaksLastWord(t *testing.T) {
	narr := &manualNarrator{}
	tr := newTestTransport(narr)
	tr.Prepare("alpha beta gamma")

	tr.SeekCommit(100)
	st := tr.Status()
	require.Equal(t, "playing", st.State)
	require.Equal(t, 11, st.CharIndex)
	require.Equal(t, "gamma", narr.last(t))
}

func TestSeekPreview_MovesTimelineOnly(t *testing.T) {
	narr := &manualNarrator{}
	tr := newTestTransport(narr)
	tr.Prepare(strings.Repeat("a", 140)) // total 10

	tr.SeekPreview(50)
	st := tr.Status()
	require.Equal(t, 5, st.ElapsedSeconds)
	require.Equal(t, "prepared", st.State)
	require.Empty(t, narr.spoken, "preview never speaks")
}

func TestSeekPercent_Clamped(t *testing.T) {
	tr := newTestTransport(&manualNarrator{})
	tr.Prepare(strings.Repeat("a", 140))

	tr.SeekPreview(-20)
	require.Zero(t, tr.Status().ElapsedSeconds)
	tr.SeekPreview(250)
	require.Equal(t, 10, tr.Status().ElapsedSeconds)
}

func TestOnDone_WithinToleranceFinishes(t *testing.T) {
	narr := &manualNarrator{}
	tr := newTestTransport(narr)
	tr.Prepare(strings.Repeat("a", 140)) // total 10

	tr.PlayPause()
	tr.SeekPreview(90) // elapsed 9 >= 10-2
	narr.finish(t)

	st := tr.Status()
	require.Equal(t, "finished", st.State)
	require.Equal(t, st.TotalSeconds, st.ElapsedSeconds)
	require.Equal(t, st.TextLength, st.CharIndex)
}

func TestOnDone_TooEarlyIsIgnored(t *testing.T) {
	narr := &manualNarrator{}
	tr := newTestTransport(narr)
	tr.Prepare(strings.Repeat("a", 140)) // total 10

	tr.PlayPause()
	narr.finish(t) // elapsed 0, far from the ceiling

	require.Equal(t, "playing", tr.Status().State)
}

func TestOnError_PausesAndKeepsPosition(t *testing.T) {
	narr := &manualNarrator{}
	tr := newTestTransport(narr)
	tr.Prepare("alpha beta gamma")

	tr.SeekCommit(50)
	narr.breakDown(t, errors.New("engine crashed"))

	st := tr.Status()
	require.Equal(t, "paused", st.State)
	require.Equal(t, 6, st.CharIndex, "retry resumes where it failed")
}

func TestSpeakRejected_Pauses(t *testing.T) {
	narr := &manualNarrator{reject: errors.New("no audio device")}
	tr := newTestTransport(narr)
	tr.Prepare("alpha beta gamma")

	tr.PlayPause()
	require.Equal(t, "paused", tr.Status().State)
}

func TestStaleCallback_Ignored(t *testing.T) {
	narr := &manualNarrator{}
	tr := newTestTransport(narr)
	tr.Prepare(strings.Repeat("a", 140))

	tr.PlayPause()
	narr.mu.Lock()
	staleDone := narr.done
	narr.mu.Unlock()

	tr.SeekCommit(90) // supersedes the first utterance
	staleDone()

	require.Equal(t, "playing", tr.Status().State)
}

func TestClose_ResetsTimeline(t *testing.T) {
	narr := &manualNarrator{}
	tr := newTestTransport(narr)
	tr.Prepare("alpha beta gamma")
	tr.PlayPause()

	tr.Close(false)
	st := tr.Status()
	require.Equal(t, "hidden", st.State)
	require.False(t, st.Visible)
	require.Zero(t, st.TextLength)
	require.Zero(t, st.ElapsedSeconds)
}

func TestClose_AnimatedKeepsVisibleUntilHide(t *testing.T) {
	narr := &manualNarrator{}
	tr := newTestTransport(narr)
	tr.Prepare("alpha beta gamma")

	tr.Close(true)
	require.True(t, tr.Status().Visible)

	tr.Hide()
	require.False(t, tr.Status().Visible)
}

func TestPlayPause_HiddenIsNoOp(t *testing.T) {
	narr := &manualNarrator{}
	tr := newTestTransport(narr)

	tr.PlayPause()
	require.Equal(t, "hidden", tr.Status().State)
	require.Empty(t, narr.spoken)
}

func TestTick_AdvancesAndRecomputesCharIndex(t *testing.T) {
	narr := &manualNarrator{}
	tr := NewTransport(narr, Config{
		TickInterval:   5 * time.Millisecond,
		CharsPerSecond: 14,
		MinSeconds:     2,
		EndTolerance:   2,
	}, zerolog.Nop())
	tr.Prepare(strings.Repeat("a", 140)) // total 10

	tr.PlayPause()
	require.Eventually(t, func() bool {
		st := tr.Status()
		return st.ElapsedSeconds >= 3 && st.CharIndex >= 42
	}, 2*time.Second, time.Millisecond)

	// The timeline never runs past the ceiling.
	require.Eventually(t, func() bool {
		return tr.Status().ElapsedSeconds == 10
	}, 2*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 10, tr.Status().ElapsedSeconds)

	tr.Close(false)
}

func TestSilentNarrator_CompletesAsync(t *testing.T) {
	done := make(chan struct{})
	require.NoError(t, SilentNarrator{}.Speak("x", func() { close(done) }, nil))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("done callback never fired")
	}
}
