package audio

import (
	"os/exec"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Narrator is the speech engine collaborator. Speak submits one utterance and
// returns immediately; exactly one of done or fail is delivered later, and
// never synchronously from inside Speak. Stop discards the current utterance;
// its callbacks must not fire afterwards.
type Narrator interface {
	Speak(text string, done func(), fail func(error)) error
	Stop()
}

// SilentNarrator completes every utterance instantly. It stands in when no
// speech engine is available so the timeline still works.
type SilentNarrator struct{}

func (SilentNarrator) Speak(_ string, done func(), _ func(error)) error {
	go done()
	return nil
}

func (SilentNarrator) Stop() {}

// ExecNarrator shells out to a local text-to-speech command (espeak, say).
// Rate, pitch and the voice preference order are configuration, not part of
// the transport contract.
type ExecNarrator struct {
	logger zerolog.Logger

	command string
	rateWPM int
	pitch   int
	voices  []string

	mu         sync.Mutex
	generation uint64
	current    *exec.Cmd
}

type ExecOption func(*ExecNarrator)

func WithVoices(voices ...string) ExecOption {
	return func(n *ExecNarrator) { n.voices = voices }
}

func WithRateWPM(wpm int) ExecOption {
	return func(n *ExecNarrator) { n.rateWPM = wpm }
}

func WithPitch(pitch int) ExecOption {
	return func(n *ExecNarrator) { n.pitch = pitch }
}

// NewExecNarrator picks the first available speech command. The error return
// lets callers fall back to SilentNarrator.
func NewExecNarrator(logger zerolog.Logger, opts ...ExecOption) (*ExecNarrator, error) {
	n := &ExecNarrator{
		logger:  logger.With().Str("component", "narrator").Logger(),
		rateWPM: 175,
		pitch:   70,
	}
	for _, o := range opts {
		o(n)
	}
	for _, candidate := range []string{"espeak-ng", "espeak", "say"} {
		if _, err := exec.LookPath(candidate); err == nil {
			n.command = candidate
			return n, nil
		}
	}
	return nil, errors.New("no text-to-speech command found")
}

func (n *ExecNarrator) args(text string) []string {
	if n.command == "say" {
		args := []string{}
		if len(n.voices) > 0 {
			args = append(args, "-v", n.voices[0])
		}
		return append(args, text)
	}
	args := []string{"-s", strconv.Itoa(n.rateWPM), "-p", strconv.Itoa(n.pitch)}
	if len(n.voices) > 0 {
		args = append(args, "-v", n.voices[0])
	}
	return append(args, text)
}

func (n *ExecNarrator) Speak(text string, done func(), fail func(error)) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.stopLocked()
	cmd := exec.Command(n.command, n.args(text)...)
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "start %s", n.command)
	}
	n.current = cmd
	n.generation++
	gen := n.generation

	go func() {
		err := cmd.Wait()
		n.mu.Lock()
		stale := gen != n.generation
		if !stale {
			n.current = nil
		}
		n.mu.Unlock()
		if stale {
			return
		}
		if err != nil {
			fail(errors.Wrapf(err, "%s exited", n.command))
			return
		}
		done()
	}()
	return nil
}

func (n *ExecNarrator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
}

func (n *ExecNarrator) stopLocked() {
	n.generation++
	if n.current != nil && n.current.Process != nil {
		if err := n.current.Process.Kill(); err != nil {
			n.logger.Debug().Err(err).Msg("kill narrator process")
		}
	}
	n.current = nil
}
