package webchat

import (
	"context"
	"log/slog"

	"github.com/memohai/webchat/internal/conversations"
	"github.com/memohai/webchat/internal/logger"
)

// Orchestrator is the slice of the platform client the delegated strategy uses.
type Orchestrator interface {
	OrchestrateWebchat(ctx context.Context, addressSID, chatFriendlyName, customerFriendlyName, preEngagementData string) (conversations.WebchatOrchestration, error)
}

// DelegatedStrategy hands identity assignment and conversation creation to the
// platform's hosted webchat orchestration endpoint.
type DelegatedStrategy struct {
	api        Orchestrator
	addressSID string
	logger     *slog.Logger
}

// NewDelegatedStrategy creates a delegated strategy routing through the given
// address SID.
func NewDelegatedStrategy(log *slog.Logger, api Orchestrator, addressSID string) *DelegatedStrategy {
	return &DelegatedStrategy{
		api:        api,
		addressSID: addressSID,
		logger:     log.With(slog.String("strategy", "delegated")),
	}
}

// Orchestrate makes one orchestration call and returns its identity and
// conversation handle.
func (s *DelegatedStrategy) Orchestrate(ctx context.Context, form Form, friendlyName string) (Result, error) {
	s.logger.Info("calling webchat orchestrator", logger.Stage(logger.StageInterim))

	preEngagementData, err := form.PreEngagementData(friendlyName)
	if err != nil {
		return Result{}, orchestrationFailed("serialize pre-engagement data", err)
	}

	result, err := s.api.OrchestrateWebchat(ctx, s.addressSID, chatFriendlyName, friendlyName, preEngagementData)
	if err != nil {
		s.logger.Warn("orchestration call failed", slog.Any("error", err), logger.Stage(logger.StageInterim))
		return Result{}, orchestrationFailed("orchestrate webchat", err)
	}

	s.logger.Info("webchat orchestrator successfully called", logger.Stage(logger.StageInterim))
	return Result{
		ConversationSID: result.ConversationSID,
		Identity:        result.Identity,
	}, nil
}
