package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendPostsToEveryWhitelistedRecipient(t *testing.T) {
	var gotChatIDs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			ChatID string `json:"chat_id"`
		}
		_ = json.Unmarshal(body, &payload)
		gotChatIDs = append(gotChatIDs, payload.ChatID)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewTelegramSink("test-token", []string{"100", "200"})
	sink.baseURL = server.URL

	for _, recipient := range sink.Whitelist() {
		err := sink.Send(recipient, "hello")
		assert.NoError(t, err)
	}
	assert.ElementsMatch(t, []string{"100", "200"}, gotChatIDs)
}

func TestSendFailsWithoutToken(t *testing.T) {
	sink := NewTelegramSink("", []string{"100"})
	err := sink.Send("100", "hello")
	assert.Error(t, err)
}

func TestSendReturnsErrorOnNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := NewTelegramSink("test-token", []string{"100"})
	sink.baseURL = server.URL

	err := sink.Send("100", "hello")
	assert.Error(t, err)
}
