// Package conversations is a minimal REST client for the conversations
// platform: users, conversations, participants, webhooks, and messages, plus
// the hosted webchat orchestration endpoint.
package conversations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Conversation states reported by the platform. Anything other than active is
// treated as closed.
const StateActive = "active"

// Platform error code for a user resource that already exists.
const codeUserExists = 50201

// Webhook event filter for new messages.
const FilterMessageAdded = "onMessageAdded"

// APIError is the platform error envelope returned on non-2xx responses.
type APIError struct {
	Status  int    `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("conversations api error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("conversations api error (http %d): %s", e.Status, e.Message)
}

// IsDuplicate reports whether err is the platform's resource-already-exists
// error for user creation.
func IsDuplicate(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == codeUserExists || apiErr.Status == http.StatusConflict
}

// User is a platform user resource bound to an identity.
type User struct {
	SID      string `json:"sid"`
	Identity string `json:"identity"`
}

// Conversation is a conversation resource.
type Conversation struct {
	SID          string `json:"sid"`
	State        string `json:"state"`
	UniqueName   string `json:"unique_name"`
	FriendlyName string `json:"friendly_name"`
	Attributes   string `json:"attributes"`
}

// ParticipantConversation is one row of a user's conversation listing.
type ParticipantConversation struct {
	ConversationSID   string `json:"conversation_sid"`
	ConversationState string `json:"conversation_state"`
}

// Participant binds an identity to a conversation.
type Participant struct {
	SID      string `json:"sid"`
	Identity string `json:"identity"`
}

// Webhook is a conversation-scoped webhook subscription.
type Webhook struct {
	SID string `json:"sid"`
}

// Message is a message resource within a conversation.
type Message struct {
	SID    string `json:"sid"`
	Author string `json:"author"`
	Body   string `json:"body"`
}

// WebchatOrchestration is the response of the hosted orchestration endpoint.
type WebchatOrchestration struct {
	Identity        string `json:"identity"`
	ConversationSID string `json:"conversation_sid"`
}

// Client talks to the conversations REST API using basic auth. Timeouts come
// from the underlying HTTP client; the service layer adds no retries.
type Client struct {
	baseURL         string
	orchestratorURL string
	accountSID      string
	authToken       string
	logger          *slog.Logger
	http            *http.Client
}

// NewClient builds a conversations client. baseURL and orchestratorURL fall
// back to the public platform endpoints when empty.
func NewClient(log *slog.Logger, baseURL, orchestratorURL, accountSID, authToken string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://conversations.twilio.com"
	}
	if orchestratorURL == "" {
		orchestratorURL = "https://flex-api.twilio.com/v2/WebChats"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		orchestratorURL: orchestratorURL,
		accountSID:      accountSID,
		authToken:       authToken,
		logger:          log.With(slog.String("client", "conversations")),
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateUser creates a user resource for identity. A duplicate identity
// surfaces as an APIError for which IsDuplicate returns true.
func (c *Client) CreateUser(ctx context.Context, identity, friendlyName string) (User, error) {
	form := url.Values{}
	form.Set("Identity", identity)
	if friendlyName != "" {
		form.Set("FriendlyName", friendlyName)
	}

	var user User
	if err := c.postForm(ctx, c.baseURL+"/v1/Users", form, nil, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// ListParticipantConversations returns the conversations the identity
// participates in, with their states.
func (c *Client) ListParticipantConversations(ctx context.Context, identity string) ([]ParticipantConversation, error) {
	query := url.Values{}
	query.Set("Identity", identity)

	var page struct {
		Conversations []ParticipantConversation `json:"conversations"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/v1/ParticipantConversations?"+query.Encode(), &page); err != nil {
		return nil, err
	}
	return page.Conversations, nil
}

// CreateConversation creates a conversation with the given unique name,
// friendly name, and serialized attributes.
func (c *Client) CreateConversation(ctx context.Context, uniqueName, friendlyName, attributes string) (Conversation, error) {
	form := url.Values{}
	form.Set("UniqueName", uniqueName)
	form.Set("FriendlyName", friendlyName)
	if attributes != "" {
		form.Set("Attributes", attributes)
	}

	var conv Conversation
	if err := c.postForm(ctx, c.baseURL+"/v1/Conversations", form, nil, &conv); err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

// CreateWebhook attaches a studio-flow webhook to the conversation for the
// given event filters.
func (c *Client) CreateWebhook(ctx context.Context, conversationSID, flowSID string, filters []string) (Webhook, error) {
	form := url.Values{}
	form.Set("Target", "studio")
	form.Set("Configuration.FlowSid", flowSID)
	for _, filter := range filters {
		form.Add("Configuration.Filters", filter)
	}

	var webhook Webhook
	endpoint := fmt.Sprintf("%s/v1/Conversations/%s/Webhooks", c.baseURL, conversationSID)
	if err := c.postForm(ctx, endpoint, form, nil, &webhook); err != nil {
		return Webhook{}, err
	}
	return webhook, nil
}

// AddParticipant adds the identity as a participant of the conversation.
func (c *Client) AddParticipant(ctx context.Context, conversationSID, identity string) (Participant, error) {
	form := url.Values{}
	form.Set("Identity", identity)

	var participant Participant
	endpoint := fmt.Sprintf("%s/v1/Conversations/%s/Participants", c.baseURL, conversationSID)
	if err := c.postForm(ctx, endpoint, form, nil, &participant); err != nil {
		return Participant{}, err
	}
	return participant, nil
}

// SendMessage posts an authored message into the conversation. When
// webhookEnabled is set, the platform also fires the conversation's webhook
// for this message.
func (c *Client) SendMessage(ctx context.Context, conversationSID, author, body string, webhookEnabled bool) (Message, error) {
	form := url.Values{}
	form.Set("Author", author)
	form.Set("Body", body)

	var header http.Header
	if webhookEnabled {
		header = http.Header{"X-Twilio-Webhook-Enabled": []string{"true"}}
	}

	var message Message
	endpoint := fmt.Sprintf("%s/v1/Conversations/%s/Messages", c.baseURL, conversationSID)
	if err := c.postForm(ctx, endpoint, form, header, &message); err != nil {
		return Message{}, err
	}
	return message, nil
}

// OrchestrateWebchat calls the hosted webchat orchestration endpoint, which
// assigns the identity and creates the conversation on the platform side.
func (c *Client) OrchestrateWebchat(ctx context.Context, addressSID, chatFriendlyName, customerFriendlyName, preEngagementData string) (WebchatOrchestration, error) {
	form := url.Values{}
	form.Set("AddressSid", addressSID)
	form.Set("ChatFriendlyName", chatFriendlyName)
	form.Set("CustomerFriendlyName", customerFriendlyName)
	form.Set("PreEngagementData", preEngagementData)

	var result WebchatOrchestration
	if err := c.postForm(ctx, c.orchestratorURL, form, nil, &result); err != nil {
		return WebchatOrchestration{}, err
	}
	return result, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("conversations: close response body failed", slog.Any("error", err))
		}
	}()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("conversations: decode response: %w", err)
	}
	return nil
}
