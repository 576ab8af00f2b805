package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTEIServer mimics a Text Embeddings Inference server. It returns the
// same unit-direction vector for every input, so any stored document scores
// 1.0 against any query.
func fakeTEIServer(t *testing.T) *httptest.Server {
	t.Helper()

	vector := make([]float32, 384)
	for i := range vector {
		vector[i] = 0.05
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)

		var req struct {
			Inputs any `json:"inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		count := 1
		if inputs, ok := req.Inputs.([]any); ok {
			count = len(inputs)
		}

		vectors := make([][]float32, count)
		for i := range vectors {
			vectors[i] = vector
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(vectors)
	}))
	t.Cleanup(server.Close)
	return server
}

func waitForHealthy(t *testing.T, url string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server at %s did not become healthy", url)
}

func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	tei := fakeTEIServer(t)

	// Point the pipeline at a throwaway home directory so the chromem store
	// and config paths stay inside the test sandbox.
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SERVER_HTTP_PORT", "18415")
	t.Setenv("EMBEDDINGS_PROVIDER", "tei")
	t.Setenv("EMBEDDINGS_BASE_URL", tei.URL)
	t.Setenv("COMPLETION_PROVIDER", "disabled")
	t.Setenv("LOGGING_LEVEL", "error")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, "")
	}()

	base := "http://localhost:18415"
	waitForHealthy(t, base+"/health")

	addBody, err := json.Marshal(map[string]string{
		"id":      "go-intro",
		"content": "Go is a compiled language designed at Google.",
	})
	require.NoError(t, err)

	resp, err := http.Post(base+"/api/v1/documents", "application/json", bytes.NewReader(addBody))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// The only document scores 1.0, and with completion disabled the mock
	// answer must quote it.
	askBody, err := json.Marshal(map[string]string{"question": "What is Go?"})
	require.NoError(t, err)

	resp, err = http.Post(base+"/api/v1/ask", "application/json", bytes.NewReader(askBody))
	require.NoError(t, err)
	var ask struct {
		Answer string `json:"answer"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ask))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, ask.Answer, "Go is a compiled language designed at Google.")
	assert.Contains(t, ask.Answer, "mock response")

	resp, err = http.Get(base + "/api/v1/status")
	require.NoError(t, err)
	var status struct {
		DocumentCount       int64   `json:"document_count"`
		CompletionAvailable bool    `json:"completion_available"`
		TopK                int     `json:"top_k"`
		SimilarityThreshold float32 `json:"similarity_threshold"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, int64(1), status.DocumentCount)
	assert.False(t, status.CompletionAvailable)
	assert.Equal(t, 3, status.TopK)
	assert.InDelta(t, 0.7, status.SimilarityThreshold, 1e-6)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}
