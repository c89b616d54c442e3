package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/staffops/internal/config"
)

func TestSendTextMessage(t *testing.T) {
	var mu sync.Mutex
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	client := NewClient(config.WhatsAppConfig{BaseURL: srv.URL + "/", APIVersion: "v20.0", AccessToken: "secret", PhoneNumberID: "42"})
	resp, err := client.SendTextMessage(context.Background(), SendTextMessageRequest{To: "15550001111", Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "wamid.1", resp.MessageID())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/v20.0/42/messages", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "15550001111", gotBody["to"])
	assert.Equal(t, "hello", gotBody["text"].(map[string]any)["body"])
}

func TestSendTextMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid parameter","code":100}}`))
	}))
	defer srv.Close()

	client := NewClient(config.WhatsAppConfig{BaseURL: srv.URL, APIVersion: "v20.0", PhoneNumberID: "42"})
	_, err := client.SendTextMessage(context.Background(), SendTextMessageRequest{To: "1", Body: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code=100")
	assert.Contains(t, err.Error(), "Invalid parameter")
}
