package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/webchat/internal/conversations"
)

type fakeOrchestrator struct {
	addressSID           string
	customerFriendlyName string
	preEngagementData    string
	result               conversations.WebchatOrchestration
	err                  error
}

func (f *fakeOrchestrator) OrchestrateWebchat(_ context.Context, addressSID, chatFriendlyName, customerFriendlyName, preEngagementData string) (conversations.WebchatOrchestration, error) {
	f.addressSID = addressSID
	f.customerFriendlyName = customerFriendlyName
	f.preEngagementData = preEngagementData
	return f.result, f.err
}

func TestDelegatedOrchestrate(t *testing.T) {
	api := &fakeOrchestrator{
		result: conversations.WebchatOrchestration{Identity: "customer123", ConversationSID: "CH123"},
	}
	strategy := NewDelegatedStrategy(slog.Default(), api, "IG123")

	var form Form
	require.NoError(t, json.Unmarshal([]byte(`{"friendlyName":"Jane","query":"hi","topic":"billing"}`), &form))

	result, err := strategy.Orchestrate(context.Background(), form, "Jane")
	require.NoError(t, err)
	assert.Equal(t, "CH123", result.ConversationSID)
	assert.Equal(t, "customer123", result.Identity)
	assert.Equal(t, "IG123", api.addressSID)
	assert.Equal(t, "Jane", api.customerFriendlyName)

	// The whole form passes through as pre-engagement data.
	var pre map[string]any
	require.NoError(t, json.Unmarshal([]byte(api.preEngagementData), &pre))
	assert.Equal(t, "Jane", pre["friendlyName"])
	assert.Equal(t, "hi", pre["query"])
	assert.Equal(t, "billing", pre["topic"])
}

func TestDelegatedOrchestrateFailure(t *testing.T) {
	api := &fakeOrchestrator{err: errors.New("address not found")}
	strategy := NewDelegatedStrategy(slog.Default(), api, "IG123")

	_, err := strategy.Orchestrate(context.Background(), Form{}, "Customer")
	var orchErr *OrchestrationError
	require.ErrorAs(t, err, &orchErr)
	assert.Contains(t, orchErr.Message, "address not found")
}
