// Package webchat implements the webchat session flows: conversation
// orchestration against the conversations platform, credential issuance, and
// the best-effort initial messages.
package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultFriendlyName is used when the intake form carries no display name.
const DefaultFriendlyName = "Customer"

// chatFriendlyName labels conversations created for the chat widget.
const chatFriendlyName = "Webchat widget"

// conciergeAuthor is the fixed system persona for welcome messages.
const conciergeAuthor = "Concierge"

// ErrEmailRequired is returned by the direct strategy when the intake form
// carries no email to derive an identity from.
var ErrEmailRequired = errors.New("email is required to start a webchat")

// OrchestrationError is an unrecoverable failure while setting up the
// conversation. Its message is surfaced to the caller.
type OrchestrationError struct {
	Message string
	Err     error
}

func (e *OrchestrationError) Error() string { return e.Message }

func (e *OrchestrationError) Unwrap() error { return e.Err }

func orchestrationFailed(action string, err error) *OrchestrationError {
	return &OrchestrationError{
		Message: fmt.Sprintf("%s: %v", action, err),
		Err:     err,
	}
}

// Form is the intake payload submitted by the chat widget before a
// conversation starts. Unknown fields are kept verbatim and attached to the
// conversation as pre-engagement data.
type Form struct {
	FriendlyName string
	Email        string
	Query        string
	Extra        map[string]any
}

// UnmarshalJSON keeps every submitted field, known or not.
func (f *Form) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if value, ok := raw["friendlyName"].(string); ok {
		f.FriendlyName = value
	}
	if value, ok := raw["email"].(string); ok {
		f.Email = value
	}
	if value, ok := raw["query"].(string); ok {
		f.Query = value
	}
	f.Extra = raw
	return nil
}

// FriendlyNameOrDefault returns the submitted display name, or
// DefaultFriendlyName when absent.
func (f Form) FriendlyNameOrDefault() string {
	if name := strings.TrimSpace(f.FriendlyName); name != "" {
		return name
	}
	return DefaultFriendlyName
}

// PreEngagementData serializes the whole form with the resolved friendly name
// for attachment to the conversation.
func (f Form) PreEngagementData(friendlyName string) (string, error) {
	fields := make(map[string]any, len(f.Extra)+1)
	for key, value := range f.Extra {
		fields[key] = value
	}
	if f.Extra == nil {
		if f.Email != "" {
			fields["email"] = f.Email
		}
		if f.Query != "" {
			fields["query"] = f.Query
		}
	}
	fields["friendlyName"] = friendlyName

	data, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Result is the outcome of orchestration: the conversation to join and the
// identity it was set up for.
type Result struct {
	ConversationSID string
	Identity        string
}

// Strategy decides how a webchat conversation and its identity come to exist.
// Implementations are selected by configuration, not chained.
type Strategy interface {
	Orchestrate(ctx context.Context, form Form, friendlyName string) (Result, error)
}
