package web

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/codefionn/geocopilot/internal/logger"
	"github.com/codefionn/geocopilot/internal/orchestrator"
	"github.com/codefionn/geocopilot/internal/progress"
)

// ErrEmptyUtterance is returned for blank turn requests.
var ErrEmptyUtterance = errors.New("utterance is empty")

// MessageBroker connects web clients to the orchestrator. The
// orchestrator serializes turns; the broker applies the per-turn deadline
// and translates progress updates into web messages.
type MessageBroker struct {
	orchestrator *orchestrator.Orchestrator
	turnTimeout  time.Duration
	log          *logger.Logger
}

// NewMessageBroker creates a new message broker
func NewMessageBroker(orch *orchestrator.Orchestrator, turnTimeout time.Duration) *MessageBroker {
	return &MessageBroker{
		orchestrator: orch,
		turnTimeout:  turnTimeout,
		log:          logger.Global().WithPrefix("web"),
	}
}

// ProcessUserMessage runs one turn. Progress messages are passed to send
// as they happen; the finished result is returned.
func (mb *MessageBroker) ProcessUserMessage(ctx context.Context, utterance string, send func(*WebMessage)) (*orchestrator.TurnResult, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil, ErrEmptyUtterance
	}

	if mb.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, mb.turnTimeout)
		defer cancel()
	}

	if send != nil {
		ctx = orchestrator.ContextWithProgress(ctx, func(u progress.Update) error {
			send(&WebMessage{
				Type:      MessageTypeProgress,
				Stage:     string(u.Stage),
				Content:   u.Message,
				Timestamp: time.Now(),
			})
			return nil
		})
	}

	mb.log.Debug("running turn: %q", utterance)
	return mb.orchestrator.RunTurn(ctx, utterance), nil
}

// Reset clears the session.
func (mb *MessageBroker) Reset() {
	mb.orchestrator.Reset()
}

// SessionView returns the current transcript and snapshot.
func (mb *MessageBroker) SessionView() *SessionView {
	return newSessionView(mb.orchestrator.Session(), mb.orchestrator.ModelName())
}
