package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/sidekick-dev/sidekick/internal/event"
	"github.com/sidekick-dev/sidekick/internal/logging"
	"github.com/sidekick-dev/sidekick/internal/provider"
	"github.com/sidekick-dev/sidekick/internal/tool"
	"github.com/sidekick-dev/sidekick/pkg/types"
)

// Stream states published on the per-session stream-status topic.
const (
	StateIdle       = "idle"
	StateRequesting = "requesting"
	StateStreaming  = "streaming"
	StateFinalizing = "finalizing"
	StateAborted    = "aborted"
	StateFailed     = "failed"
)

// StreamStatus is the retained payload of the stream-status topic, so a
// late subscriber immediately learns whether a turn is in flight.
type StreamStatus struct {
	SessionID string `json:"sessionId"`
	State     string `json:"state"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// maxToolRounds bounds how many model turns a single send may chain
// through tool execution before the orchestrator gives up.
const maxToolRounds = 8

// Orchestrator drives model turns: one state machine per chat, at most one
// active stream per chat. A send while a stream runs aborts the current
// stream and starts the new turn once the old one has reconciled.
type Orchestrator struct {
	service   *Service
	providers *provider.Registry
	tools     *tool.Registry
	policy    func() *tool.Policy
	bus       *event.Bus

	mu     sync.Mutex
	active map[string]*activeStream
}

type activeStream struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOrchestrator wires the orchestrator to its collaborators. policy is
// re-evaluated per turn so config reloads take effect without restart.
func NewOrchestrator(service *Service, providers *provider.Registry, tools *tool.Registry, policy func() *tool.Policy, bus *event.Bus) *Orchestrator {
	return &Orchestrator{
		service:   service,
		providers: providers,
		tools:     tools,
		policy:    policy,
		bus:       bus,
		active:    make(map[string]*activeStream),
	}
}

// SendMessage appends the user message and starts an assistant turn.
// Provider or model resolution failures are reported synchronously and
// leave no assistant frame behind. The returned message is the assistant
// frame the stream will fill in; the turn itself runs in the background.
func (o *Orchestrator) SendMessage(ctx context.Context, sessionID, text string, images []*types.ImagePart) (*types.UiMessage, error) {
	streamCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	entry := &activeStream{cancel: cancel, done: done}

	// Abort-then-restart: preempt the running turn and claim the chat's
	// slot in the same critical section as the emptiness check, so two
	// concurrent sends cannot both observe an idle chat and both launch.
	for {
		o.mu.Lock()
		current, busy := o.active[sessionID]
		if !busy {
			o.active[sessionID] = entry
			o.mu.Unlock()
			break
		}
		o.mu.Unlock()
		current.cancel()
		<-current.done
	}

	// The slot is claimed but the turn may still fail to start; every
	// early return must free it or Wait would block forever.
	release := func() {
		o.clear(sessionID, done)
		cancel()
		close(done)
	}

	p, model, chatCfg, err := o.resolve(ctx, sessionID)
	if err != nil {
		release()
		return nil, err
	}

	if _, err := o.service.AddUserMessage(ctx, sessionID, text, images); err != nil {
		release()
		return nil, err
	}

	ref := types.ModelRef{ProviderID: model.ProviderID, ModelID: model.ID}
	frame, err := o.service.AddAssistantFrame(ctx, sessionID, ref)
	if err != nil {
		release()
		return nil, err
	}

	go func() {
		defer close(done)
		defer o.clear(sessionID, done)
		o.run(streamCtx, sessionID, frame.ID, p, model, chatCfg)
	}()

	return frame, nil
}

// Abort cancels the active stream for a chat, if any. Aborting an idle chat
// is a no-op. Reconciliation of the partial message happens on the stream
// goroutine before it exits.
func (o *Orchestrator) Abort(sessionID string) {
	o.mu.Lock()
	active, ok := o.active[sessionID]
	o.mu.Unlock()
	if ok {
		active.cancel()
	}
}

// IsStreaming reports whether a turn is in flight for the chat.
func (o *Orchestrator) IsStreaming(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[sessionID]
	return ok
}

// Wait blocks until the chat's active turn, if any, has finished.
func (o *Orchestrator) Wait(sessionID string) {
	o.wait(sessionID)
}

func (o *Orchestrator) wait(sessionID string) {
	o.mu.Lock()
	active, ok := o.active[sessionID]
	o.mu.Unlock()
	if ok {
		<-active.done
	}
}

func (o *Orchestrator) clear(sessionID string, done chan struct{}) {
	o.mu.Lock()
	if active, ok := o.active[sessionID]; ok && active.done == done {
		delete(o.active, sessionID)
	}
	o.mu.Unlock()
}

// resolve picks the provider and model for a chat: per-chat config first,
// app default second. Errors here are configuration errors, surfaced to the
// caller of SendMessage.
func (o *Orchestrator) resolve(ctx context.Context, sessionID string) (provider.Provider, *types.Model, types.ChatConfig, error) {
	sess, err := o.service.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, types.ChatConfig{}, err
	}
	cfg := sess.Config

	var model *types.Model
	if cfg.ProviderID != "" && cfg.ModelID != "" {
		model, err = o.providers.GetModel(cfg.ProviderID, cfg.ModelID)
	} else {
		model, err = o.providers.DefaultModel()
	}
	if err != nil {
		return nil, nil, cfg, fmt.Errorf("no usable model: %w", err)
	}

	p, err := o.providers.Get(model.ProviderID)
	if err != nil {
		return nil, nil, cfg, err
	}
	return p, model, cfg, nil
}

func (o *Orchestrator) publishState(sessionID, state, messageID, errMsg string) {
	o.bus.PublishRetained(event.TopicStreamStatus(sessionID), StreamStatus{
		SessionID: sessionID,
		State:     state,
		MessageID: messageID,
		Error:     errMsg,
	})
	logging.Debug().Str("session", sessionID).Str("state", state).Msg("stream state")
}
