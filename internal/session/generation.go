package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gen62/genchat/internal/ai"
)

// Diagnostic strings written in place of an answer when the backend fails.
// They keep the conversation structurally valid; they are not error objects.
const (
	connectionFailedText = "Error: Connection failed."
	invalidResponseText  = "Error: Invalid response format."
)

// ErrGenerationBusy rejects a second send/regenerate while one request is
// outstanding. The lease is controller-global, not per session.
var ErrGenerationBusy = errors.New("generation already in progress")

const defaultProviderName = "ollama"

type ControllerConfig struct {
	Timeout     time.Duration
	TitleMaxLen int
}

// Controller drives one outstanding model request at a time: it owns the
// cancellation token and writes the result into the ledger. The state machine
// per cycle is Idle -> Requesting -> {Completed | Aborted | Failed} -> Idle.
type Controller struct {
	store    *Store
	registry *ai.Registry
	cfg      ControllerConfig
	logger   zerolog.Logger

	// httpClient serves model discovery on URL configuration.
	httpClient *http.Client

	mu       sync.Mutex
	cancel   context.CancelFunc
	inflight string // session id the outstanding request belongs to
	token    uint64
}

func NewController(store *Store, registry *ai.Registry, cfg ControllerConfig, logger zerolog.Logger) *Controller {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.TitleMaxLen <= 0 {
		cfg.TitleMaxLen = 30
	}
	return &Controller{
		store:      store,
		registry:   registry,
		cfg:        cfg,
		logger:     logger.With().Str("component", "generation").Logger(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Controller) IsGenerating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// GeneratingFor reports whether the outstanding request, if any, belongs to
// the given session. The reveal scheduler uses this to decide when a typing
// message may complete.
func (c *Controller) GeneratingFor(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil && c.inflight == sessionID
}

// Send appends a user message (creating a session from the draft state when
// needed, deriving its title from the first message) plus a typing assistant
// placeholder, then issues the model request.
func (c *Controller) Send(text string) error {
	st := c.store.Snapshot()
	if st.BaseURL == "" {
		// Not configured yet; the UI gates this, so ignore quietly.
		return nil
	}
	if c.IsGenerating() {
		return ErrGenerationBusy
	}

	sessionID := st.CurrentSessionID
	if sessionID == "" {
		sess := c.store.CreateSession(deriveTitle(text, c.cfg.TitleMaxLen))
		sessionID = sess.ID
	}
	c.store.AppendMessage(sessionID, RoleUser, text)
	return c.trigger(sessionID, false)
}

// EditMessage rewrites a user message and regenerates the paired assistant
// answer in place. Rejected while a generation is outstanding; a no-op when
// the ledger rejects the edit.
func (c *Controller) EditMessage(sessionID string, index int, newContent string) error {
	st := c.store.Snapshot()
	if st.BaseURL == "" {
		return nil
	}
	if c.IsGenerating() {
		return ErrGenerationBusy
	}
	if !c.store.EditUserMessage(sessionID, index, newContent) {
		return nil
	}
	return c.trigger(sessionID, true)
}

// SwitchVersion is the generation-aware front of Store.SwitchVersion: version
// navigation is frozen while a request is in flight.
func (c *Controller) SwitchVersion(sessionID string, index int, dir Direction) bool {
	if c.IsGenerating() {
		return false
	}
	return c.store.SwitchVersion(sessionID, index, dir)
}

// trigger acquires the single-flight lease and starts the request. When
// regenerate is false a fresh typing placeholder is appended first; a
// regenerate reuses the blank version the edit created.
func (c *Controller) trigger(sessionID string, regenerate bool) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return ErrGenerationBusy
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	c.cancel = cancel
	c.inflight = sessionID
	c.token++
	tok := c.token
	c.mu.Unlock()

	if !regenerate {
		c.store.AppendMessage(sessionID, RoleAssistant, "")
	}

	history := c.buildHistory(sessionID)

	c.logger.Debug().
		Str("session_id", sessionID).
		Bool("regenerate", regenerate).
		Int("history_len", len(history)).
		Msg("generation started")

	go c.run(ctx, tok, sessionID, history)
	return nil
}

// buildHistory assembles the request payload from the session history using
// each message's currently selected version, excluding the still-empty typing
// placeholder being generated.
func (c *Controller) buildHistory(sessionID string) []ai.Message {
	st := c.store.Snapshot()
	sess := st.findSession(sessionID)
	if sess == nil {
		return nil
	}
	out := make([]ai.Message, 0, len(sess.Messages))
	for i := range sess.Messages {
		m := &sess.Messages[i]
		if m.Role == RoleAssistant && m.IsTyping && m.Content() == "" {
			continue
		}
		out = append(out, ai.Message{Role: string(m.Role), Content: m.Content()})
	}
	return out
}

func (c *Controller) run(ctx context.Context, tok uint64, sessionID string, history []ai.Message) {
	defer c.release(tok)

	st := c.store.Snapshot()
	provider, err := c.registry.Get(ctx, defaultProviderName, st.Model)
	if err != nil {
		c.logger.Error().Err(err).Msg("provider lookup failed")
		c.store.finalizeAssistant(sessionID, connectionFailedText)
		return
	}

	reply, err := provider.Chat(ctx, history)
	switch {
	case err == nil:
		c.store.finalizeAssistant(sessionID, reply)
	case errors.Is(err, context.Canceled):
		// Aborted: the cancel path already froze the message.
		c.logger.Debug().Str("session_id", sessionID).Msg("generation aborted")
	case errors.Is(err, ai.ErrInvalidResponse):
		c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("invalid model response")
		c.store.finalizeAssistant(sessionID, invalidResponseText)
	default:
		c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("generation failed")
		c.store.finalizeAssistant(sessionID, connectionFailedText)
	}
}

// release drops the lease unless a newer request or an explicit cancel already
// replaced it.
func (c *Controller) release(tok uint64) {
	c.mu.Lock()
	if c.token == tok && c.cancel != nil {
		c.cancel()
		c.cancel = nil
		c.inflight = ""
	}
	c.mu.Unlock()
}

// Stop aborts the outstanding request, if any, and snaps the in-flight
// assistant message to a terminal display state: typing off, displayed
// content equal to whatever final content exists, possibly empty. Idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	sessionID := c.inflight
	c.cancel = nil
	c.inflight = ""
	c.mu.Unlock()

	cancel()
	c.store.snapCancelled(sessionID)
	c.logger.Info().Str("session_id", sessionID).Msg("generation cancelled")
}

// ConfigureURL commits a base URL and discovers the available models: the
// first model listed by /api/tags becomes active. Discovery failures are
// logged and ignored; the URL still sticks.
func (c *Controller) ConfigureURL(ctx context.Context, url string) {
	c.store.SetBaseURL(url)
	st := c.store.Snapshot()
	names, err := ai.ListModels(ctx, c.httpClient, st.BaseURL)
	if err != nil {
		c.logger.Warn().Err(err).Msg("could not fetch models")
		return
	}
	if len(names) > 0 {
		c.store.SetModel(names[0])
	}
}

// CheckConnection probes a candidate URL before the UI commits it.
func (c *Controller) CheckConnection(ctx context.Context, url string) bool {
	return ai.CheckConnection(ctx, c.httpClient, url)
}

func deriveTitle(content string, maxLen int) string {
	runes := []rune(content)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return content
}
