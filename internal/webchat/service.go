package webchat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/memohai/webchat/internal/conversations"
	"github.com/memohai/webchat/internal/logger"
	"github.com/memohai/webchat/internal/token"
)

// sendTimeout bounds the detached initial-message sends.
const sendTimeout = 30 * time.Second

// Messenger sends messages into an existing conversation.
type Messenger interface {
	SendMessage(ctx context.Context, conversationSID, author, body string, webhookEnabled bool) (conversations.Message, error)
}

// BootstrapResult packages a fresh session: credential, conversation handle,
// and credential expiry.
type BootstrapResult struct {
	Token           string
	ConversationSID string
	ExpiresAt       time.Time
}

// RefreshResult is a replacement credential and its expiry.
type RefreshResult struct {
	Token     string
	ExpiresAt time.Time
}

// Service runs the webchat session flows: bootstrap a conversation plus
// credential, and refresh a previously issued credential.
type Service struct {
	strategy  Strategy
	issuer    *token.Issuer
	verifier  *token.Verifier
	messenger Messenger
	welcome   bool
	logger    *slog.Logger
}

// NewService creates the session service. welcome enables the Concierge
// welcome message after the user's query message (delegated deployments).
func NewService(log *slog.Logger, strategy Strategy, issuer *token.Issuer, verifier *token.Verifier, messenger Messenger, welcome bool) *Service {
	return &Service{
		strategy:  strategy,
		issuer:    issuer,
		verifier:  verifier,
		messenger: messenger,
		welcome:   welcome,
		logger:    log.With(slog.String("service", "webchat")),
	}
}

// Bootstrap orchestrates a conversation for the intake form, issues a
// credential for the resolved identity, and fires the form's query as an
// authored first message.
func (s *Service) Bootstrap(ctx context.Context, form Form) (BootstrapResult, error) {
	s.logger.Info("initiating webchat", logger.Stage(logger.StageInitial))
	friendlyName := form.FriendlyNameOrDefault()

	result, err := s.strategy.Orchestrate(ctx, form, friendlyName)
	if err != nil {
		return BootstrapResult{}, err
	}

	signed, expiresAt, err := s.issuer.Issue(result.Identity)
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("issue credential: %w", err)
	}

	if query := strings.TrimSpace(form.Query); query != "" {
		// Detached on purpose: message delivery is best-effort and must not
		// hold up the HTTP response. The welcome message is sequenced after
		// the user message inside the goroutine; ordering relative to the
		// response itself is not guaranteed.
		go s.sendInitialMessages(result.ConversationSID, result.Identity, friendlyName, query)
	}

	s.logger.Info("webchat successfully initiated",
		slog.String("conversation_sid", result.ConversationSID),
		logger.Stage(logger.StageFinal),
	)
	return BootstrapResult{
		Token:           signed,
		ConversationSID: result.ConversationSID,
		ExpiresAt:       expiresAt,
	}, nil
}

// Refresh verifies the presented credential and mints a replacement for the
// same identity. An invalid credential never reaches issuance.
func (s *Service) Refresh(ctx context.Context, raw string) (RefreshResult, error) {
	s.logger.Info("refreshing token", logger.Stage(logger.StageInitial))

	identity, err := s.verifier.Verify(raw)
	if err != nil {
		s.logger.Info("invalid token provided", slog.Any("error", err), logger.Stage(logger.StageInterim))
		return RefreshResult{}, err
	}
	s.logger.Info("token is valid", slog.String("identity", identity), logger.Stage(logger.StageInterim))

	signed, expiresAt, err := s.issuer.Issue(identity)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("issue credential: %w", err)
	}

	s.logger.Info("token refreshed", logger.Stage(logger.StageFinal))
	return RefreshResult{Token: signed, ExpiresAt: expiresAt}, nil
}

func (s *Service) sendInitialMessages(conversationSID, identity, friendlyName, query string) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	s.logger.Info("sending user message", logger.Stage(logger.StageInterim))
	if _, err := s.messenger.SendMessage(ctx, conversationSID, identity, query, true); err != nil {
		s.logger.Warn("couldn't send user message", slog.Any("error", err), logger.Stage(logger.StageInterim))
	} else {
		s.logger.Info("user message sent", logger.Stage(logger.StageInterim))
	}

	if !s.welcome {
		return
	}

	s.logger.Info("sending welcome message", logger.Stage(logger.StageInterim))
	body := fmt.Sprintf("Welcome %s! An agent will be with you in just a moment.", friendlyName)
	if _, err := s.messenger.SendMessage(ctx, conversationSID, conciergeAuthor, body, false); err != nil {
		s.logger.Warn("couldn't send welcome message", slog.Any("error", err), logger.Stage(logger.StageInterim))
	} else {
		s.logger.Info("welcome message sent", logger.Stage(logger.StageInterim))
	}
}
