package execution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	var gotPath, gotQuery string
	var gotBody submission
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"stdout":"42\n","stderr":null,"compile_output":null,"status":{"id":3,"description":"Accepted"},"time":"0.02","memory":3456.0}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.Run(context.Background(), Request{
		Language: "python",
		Code:     "print(42)",
		Stdin:    "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, "/submissions", gotPath)
	assert.Equal(t, "base64_encoded=false&wait=true", gotQuery)
	assert.Equal(t, 71, gotBody.LanguageId)
	assert.Equal(t, "print(42)", gotBody.SourceCode)
	assert.Equal(t, "ignored", gotBody.Stdin)

	require.NotNil(t, result.Stdout)
	assert.Equal(t, "42\n", *result.Stdout)
	assert.Nil(t, result.Stderr)
	assert.Nil(t, result.CompileOutput)
	require.NotNil(t, result.Status)
	assert.Equal(t, 3, result.Status.Id)
	assert.Equal(t, "Accepted", result.Status.Description)
}

func TestRunUnsupportedLanguage(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	_, err := client.Run(context.Background(), Request{Language: "cobol", Code: "x"})
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestRunServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Run(context.Background(), Request{Language: "javascript", Code: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
