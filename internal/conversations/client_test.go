package conversations

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(slog.Default(), srv.URL, srv.URL+"/v2/WebChats", "AC123", "auth-token", time.Second)
	return client, srv
}

func TestCreateUser(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/Users", r.URL.Path)

		username, password, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC123", username)
		assert.Equal(t, "auth-token", password)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "customer123", r.PostForm.Get("Identity"))
		assert.Equal(t, "Jane", r.PostForm.Get("FriendlyName"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sid":"US123","identity":"customer123"}`))
	}))

	user, err := client.CreateUser(context.Background(), "customer123", "Jane")
	require.NoError(t, err)
	assert.Equal(t, "US123", user.SID)
	assert.Equal(t, "customer123", user.Identity)
}

func TestCreateUserDuplicate(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"status":409,"code":50201,"message":"User already exists"}`))
	}))

	_, err := client.CreateUser(context.Background(), "customer123", "")
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))
	assert.Contains(t, err.Error(), "User already exists")
}

func TestIsDuplicateOtherError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":400,"code":20001,"message":"Invalid parameter"}`))
	}))

	_, err := client.CreateUser(context.Background(), "customer123", "")
	require.Error(t, err)
	assert.False(t, IsDuplicate(err))
}

func TestListParticipantConversations(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/ParticipantConversations", r.URL.Path)
		assert.Equal(t, "customer123", r.URL.Query().Get("Identity"))

		_, _ = w.Write([]byte(`{"conversations":[
			{"conversation_sid":"CH1","conversation_state":"closed"},
			{"conversation_sid":"CH2","conversation_state":"active"}
		]}`))
	}))

	items, err := client.ListParticipantConversations(context.Background(), "customer123")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "CH2", items[1].ConversationSID)
	assert.Equal(t, StateActive, items[1].ConversationState)
}

func TestCreateWebhook(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/Conversations/CH123/Webhooks", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "studio", r.PostForm.Get("Target"))
		assert.Equal(t, "FW123", r.PostForm.Get("Configuration.FlowSid"))
		assert.Equal(t, []string{FilterMessageAdded}, r.PostForm["Configuration.Filters"])

		_, _ = w.Write([]byte(`{"sid":"WH123"}`))
	}))

	webhook, err := client.CreateWebhook(context.Background(), "CH123", "FW123", []string{FilterMessageAdded})
	require.NoError(t, err)
	assert.Equal(t, "WH123", webhook.SID)
}

func TestSendMessageWebhookEnabled(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/Conversations/CH123/Messages", r.URL.Path)
		assert.Equal(t, "true", r.Header.Get("X-Twilio-Webhook-Enabled"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "customer123", r.PostForm.Get("Author"))
		assert.Equal(t, "Hi, I need help", r.PostForm.Get("Body"))

		_, _ = w.Write([]byte(`{"sid":"IM123","author":"customer123","body":"Hi, I need help"}`))
	}))

	msg, err := client.SendMessage(context.Background(), "CH123", "customer123", "Hi, I need help", true)
	require.NoError(t, err)
	assert.Equal(t, "IM123", msg.SID)
}

func TestSendMessageWithoutWebhookHeader(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-Twilio-Webhook-Enabled"))
		_, _ = w.Write([]byte(`{"sid":"IM124"}`))
	}))

	_, err := client.SendMessage(context.Background(), "CH123", "Concierge", "Welcome!", false)
	require.NoError(t, err)
}

func TestOrchestrateWebchat(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/WebChats", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "IG123", r.PostForm.Get("AddressSid"))
		assert.Equal(t, "Webchat widget", r.PostForm.Get("ChatFriendlyName"))
		assert.Equal(t, "Jane", r.PostForm.Get("CustomerFriendlyName"))
		assert.JSONEq(t, `{"friendlyName":"Jane"}`, r.PostForm.Get("PreEngagementData"))

		_, _ = w.Write([]byte(`{"identity":"customer123","conversation_sid":"CH123"}`))
	}))

	result, err := client.OrchestrateWebchat(context.Background(), "IG123", "Webchat widget", "Jane", `{"friendlyName":"Jane"}`)
	require.NoError(t, err)
	assert.Equal(t, "customer123", result.Identity)
	assert.Equal(t, "CH123", result.ConversationSID)
}

func TestNonJSONErrorBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))

	_, err := client.CreateConversation(context.Background(), "name", "friendly", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream unavailable")
}
