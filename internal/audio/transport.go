package audio

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type PlayState int

const (
	StateHidden PlayState = iota
	StatePrepared
	StatePlaying
	StatePaused
	StateFinished
)

func (s PlayState) String() string {
	switch s {
	case StateHidden:
		return "hidden"
	case StatePrepared:
		return "prepared"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	}
	return "unknown"
}

type Config struct {
	TickInterval   time.Duration
	CharsPerSecond int
	MinSeconds     int
	// EndTolerance absorbs the race between the narrator finishing and the
	// timer reaching the ceiling; they may differ by a tick or two.
	EndTolerance int
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.CharsPerSecond <= 0 {
		c.CharsPerSecond = 14
	}
	if c.MinSeconds <= 0 {
		c.MinSeconds = 2
	}
	if c.EndTolerance <= 0 {
		c.EndTolerance = 2
	}
	return c
}

// Status is the read-only view the UI polls.
type Status struct {
	State          string `json:"state"`
	Visible        bool   `json:"visible"`
	Playing        bool   `json:"playing"`
	ElapsedSeconds int    `json:"elapsedSeconds"`
	TotalSeconds   int    `json:"totalSeconds"`
	CharIndex      int    `json:"charIndex"`
	TextLength     int    `json:"textLength"`
}

// Transport converts message text into a narrated, seekable timeline. The
// char position is derived from elapsed/total each tick; it is only
// authoritative on its own immediately after a seek commit, until the next
// tick recomputes it.
type Transport struct {
	mu       sync.Mutex
	narrator Narrator
	cfg      Config
	logger   zerolog.Logger

	state   PlayState
	visible bool

	fullText       []rune
	totalSeconds   int
	elapsedSeconds int
	charIndex      int

	// utterance invalidates callbacks and ticker loops from superseded
	// play/seek cycles.
	utterance uint64
	tickStop  chan struct{}
}

func NewTransport(narrator Narrator, cfg Config, logger zerolog.Logger) *Transport {
	if narrator == nil {
		narrator = SilentNarrator{}
	}
	return &Transport{
		narrator: narrator,
		cfg:      cfg.withDefaults(),
		logger:   logger.With().Str("component", "audio").Logger(),
		state:    StateHidden,
	}
}

func (t *Transport) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{
		State:          t.state.String(),
		Visible:        t.visible,
		Playing:        t.state == StatePlaying,
		ElapsedSeconds: t.elapsedSeconds,
		TotalSeconds:   t.totalSeconds,
		CharIndex:      t.charIndex,
		TextLength:     len(t.fullText),
	}
}

// Prepare cleans the text, estimates the timeline from a fixed
// characters-per-second rate with a floor for very short text, and enters the
// Prepared (paused, visible) state.
func (t *Transport) Prepare(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.narrator.Stop()
	t.resetLocked()

	clean := CleanNarrationText(text)
	t.fullText = []rune(clean)

	total := (len(t.fullText) + t.cfg.CharsPerSecond - 1) / t.cfg.CharsPerSecond
	if total < t.cfg.MinSeconds {
		total = t.cfg.MinSeconds
	}
	t.totalSeconds = total
	t.state = StatePrepared
	t.visible = true
}

// PlayPause toggles narration. Resuming speaks from the current timeline
// position, including any mid-playback seek, never from the beginning.
func (t *Transport) PlayPause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.visible {
		return
	}
	if t.state == StatePlaying {
		t.narrator.Stop()
		t.stopTimerLocked()
		t.state = StatePaused
		return
	}
	t.speakFromLocked(t.charIndex)
}

// SeekPreview moves only the visual timeline while a scrub gesture is in
// progress; narration is untouched.
func (t *Transport) SeekPreview(percent int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.totalSeconds == 0 {
		return
	}
	t.elapsedSeconds = t.totalSeconds * clampPercent(percent) / 100
}

// SeekCommit restarts narration from the character offset matching the
// percentage, snapped backward to the nearest preceding word boundary so
// narration never starts mid-word, and forces Playing regardless of the prior
// paused state.
func (t *Transport) SeekCommit(percent int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.fullText) == 0 {
		return
	}
	t.narrator.Stop()
	t.stopTimerLocked()

	pct := clampPercent(percent)
	target := len(t.fullText) * pct / 100
	t.charIndex = snapToWordStart(t.fullText, target)
	t.elapsedSeconds = t.totalSeconds * pct / 100

	t.speakFromLocked(t.charIndex)
}

// Close stops narration and the timer and resets the timeline. The animated
// flag only controls whether visibility drops immediately; a delayed hide is
// the caller's concern, completed via Hide.
func (t *Transport) Close(animated bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.narrator.Stop()
	t.resetLocked()
	if !animated {
		t.visible = false
	}
}

// Hide completes a caller-driven delayed close.
func (t *Transport) Hide() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.visible = false
	t.state = StateHidden
}

func (t *Transport) resetLocked() {
	t.stopTimerLocked()
	t.utterance++
	t.state = StateHidden
	t.fullText = nil
	t.totalSeconds = 0
	t.elapsedSeconds = 0
	t.charIndex = 0
}

// speakFromLocked hands the remaining substring to the narrator as one
// utterance and starts the 1-second-granularity timer. Seeking at or past the
// end closes the player.
func (t *Transport) speakFromLocked(idx int) {
	if idx >= len(t.fullText) {
		t.narrator.Stop()
		t.resetLocked()
		return
	}
	remaining := string(t.fullText[idx:])

	t.utterance++
	id := t.utterance
	t.startTimerLocked(id)
	t.state = StatePlaying

	if err := t.narrator.Speak(remaining, func() { t.onDone(id) }, func(err error) { t.onError(id, err) }); err != nil {
		t.logger.Warn().Err(err).Msg("narrator rejected utterance")
		t.stopTimerLocked()
		t.state = StatePaused
	}
}

func (t *Transport) startTimerLocked(id uint64) {
	stop := make(chan struct{})
	t.tickStop = stop
	go func() {
		ticker := time.NewTicker(t.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.tick(id)
			}
		}
	}()
}

func (t *Transport) stopTimerLocked() {
	if t.tickStop != nil {
		close(t.tickStop)
		t.tickStop = nil
	}
}

// tick advances the timeline by one second up to the ceiling and recomputes
// the char position from the elapsed/total ratio.
func (t *Transport) tick(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id != t.utterance || t.state != StatePlaying {
		return
	}
	if t.elapsedSeconds < t.totalSeconds {
		t.elapsedSeconds++
	}
	t.recomputeCharIndexLocked()
}

func (t *Transport) recomputeCharIndexLocked() {
	if t.totalSeconds == 0 {
		t.charIndex = 0
		return
	}
	idx := len(t.fullText) * t.elapsedSeconds / t.totalSeconds
	if idx > len(t.fullText) {
		idx = len(t.fullText)
	}
	t.charIndex = idx
}

// onDone handles natural narration completion. Finishing and the timer
// reaching the ceiling are asynchronous; completion only counts when the
// timeline is within the end tolerance.
func (t *Transport) onDone(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id != t.utterance {
		return
	}
	if t.elapsedSeconds >= t.totalSeconds-t.cfg.EndTolerance {
		t.elapsedSeconds = t.totalSeconds
		t.recomputeCharIndexLocked()
		t.stopTimerLocked()
		t.state = StateFinished
	}
}

// onError pauses the timeline without treating the failure as completion; the
// position survives so a retry resumes from the same point.
func (t *Transport) onError(id uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id != t.utterance {
		return
	}
	t.logger.Warn().Err(err).Msg("narration error")
	t.stopTimerLocked()
	t.state = StatePaused
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// snapToWordStart returns the offset just after the nearest space at or
// before target, or 0 when no boundary precedes it.
func snapToWordStart(text []rune, target int) int {
	i := target
	if i >= len(text) {
		i = len(text) - 1
	}
	for ; i >= 0; i-- {
		if text[i] == ' ' {
			return i + 1
		}
	}
	return 0
}
