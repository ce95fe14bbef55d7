package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waste-bot/api/internal/classify"
)

func TestEngine_Predict(t *testing.T) {
	t.Run("parses chat completion", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "gpt-4o-mini", body["model"])

			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"predictions\":[{\"className\":\"styrofoam\",\"probability\":0.96}]}"}}]}`))
		}))
		defer server.Close()

		e := New("sk-test", "gpt-4o-mini")
		e.BaseURL = server.URL

		preds, err := e.Predict(context.Background(), []byte{0xFF, 0xD8}, "")

		require.NoError(t, err)
		assert.Equal(t, classify.Styrofoam, classify.Dispatch(preds).Label)
	})

	t.Run("server error returns error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("rate limited"))
		}))
		defer server.Close()

		e := New("sk-test", "gpt-4o-mini")
		e.BaseURL = server.URL

		_, err := e.Predict(context.Background(), []byte{1}, "image/jpeg")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("with model keeps the original", func(t *testing.T) {
		e := New("sk-test", "gpt-4o-mini")

		cp := e.WithModel("gpt-4o")

		assert.Equal(t, "gpt-4o", cp.GetModel())
		assert.Equal(t, "gpt-4o-mini", e.GetModel())
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := New("", "m").Predict(context.Background(), nil, "")
		assert.Error(t, err)
	})
}
