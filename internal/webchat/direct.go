package webchat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/memohai/webchat/internal/conversations"
	"github.com/memohai/webchat/internal/logger"
)

// compact timestamp suffix for conversation unique names.
const uniqueNameTimeLayout = "20060102150405"

// ConversationAPI is the slice of the platform client the direct strategy uses.
type ConversationAPI interface {
	CreateUser(ctx context.Context, identity, friendlyName string) (conversations.User, error)
	ListParticipantConversations(ctx context.Context, identity string) ([]conversations.ParticipantConversation, error)
	CreateConversation(ctx context.Context, uniqueName, friendlyName, attributes string) (conversations.Conversation, error)
	CreateWebhook(ctx context.Context, conversationSID, flowSID string, filters []string) (conversations.Webhook, error)
	AddParticipant(ctx context.Context, conversationSID, identity string) (conversations.Participant, error)
}

// DirectStrategy drives the conversation setup itself: create-or-reuse the
// user, reuse the identity's open conversation when one exists, otherwise
// create a conversation, attach the message webhook, and add the participant,
// strictly in that order.
type DirectStrategy struct {
	api     ConversationAPI
	flowSID string
	logger  *slog.Logger
	now     func() time.Time
}

// NewDirectStrategy creates a direct strategy wiring new-conversation webhooks
// to the given flow SID.
func NewDirectStrategy(log *slog.Logger, api ConversationAPI, flowSID string) *DirectStrategy {
	return &DirectStrategy{
		api:     api,
		flowSID: flowSID,
		logger:  log.With(slog.String("strategy", "direct")),
		now:     time.Now,
	}
}

// Orchestrate resolves the identity from the form's email and returns an open
// conversation for it, creating one when necessary. No compensation runs on
// partial failure: a conversation whose webhook attach or participant add
// failed is left behind and the error is surfaced.
func (s *DirectStrategy) Orchestrate(ctx context.Context, form Form, friendlyName string) (Result, error) {
	email := strings.TrimSpace(form.Email)
	if email == "" {
		return Result{}, ErrEmailRequired
	}
	identity := strings.ReplaceAll(email, "@", "")

	if _, err := s.api.CreateUser(ctx, identity, friendlyName); err != nil {
		if !conversations.IsDuplicate(err) {
			return Result{}, orchestrationFailed("create user", err)
		}
		s.logger.Info("user already exists", slog.String("identity", identity), logger.Stage(logger.StageInterim))
	}

	existing, err := s.api.ListParticipantConversations(ctx, identity)
	if err != nil {
		return Result{}, orchestrationFailed("list conversations", err)
	}
	for _, item := range existing {
		if item.ConversationState == conversations.StateActive {
			s.logger.Info("reusing open conversation",
				slog.String("conversation_sid", item.ConversationSID),
				logger.Stage(logger.StageInterim),
			)
			return Result{ConversationSID: item.ConversationSID, Identity: identity}, nil
		}
	}

	attributes, err := form.PreEngagementData(friendlyName)
	if err != nil {
		return Result{}, orchestrationFailed("serialize pre-engagement data", err)
	}

	uniqueName := identity + s.now().UTC().Format(uniqueNameTimeLayout)
	conv, err := s.api.CreateConversation(ctx, uniqueName, chatFriendlyName, attributes)
	if err != nil {
		return Result{}, orchestrationFailed("create conversation", err)
	}
	s.logger.Info("conversation created",
		slog.String("conversation_sid", conv.SID),
		logger.Stage(logger.StageInterim),
	)

	// A conversation without its webhook is an invalid end state.
	if _, err := s.api.CreateWebhook(ctx, conv.SID, s.flowSID, []string{conversations.FilterMessageAdded}); err != nil {
		return Result{}, orchestrationFailed("attach webhook", err)
	}

	if _, err := s.api.AddParticipant(ctx, conv.SID, identity); err != nil {
		return Result{}, orchestrationFailed("add participant", err)
	}

	return Result{ConversationSID: conv.SID, Identity: identity}, nil
}
