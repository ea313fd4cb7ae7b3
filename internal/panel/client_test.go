package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creamcroissant/panelmirror/internal/config"
	"github.com/creamcroissant/panelmirror/internal/support/logging"
)

func newTestClient(t *testing.T, handler http.Handler, retry config.RetryConfig) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.PanelConfig{
		URL:              srv.URL + "/",
		ApplicationToken: "app-token",
		ClientToken:      "client-token",
		Retry:            retry,
	}, logging.Discard())
}

func writeServerPage(w http.ResponseWriter, page, total int, servers ...Server) {
	data := make([]map[string]any, len(servers))
	for i, s := range servers {
		data[i] = map[string]any{"object": "server", "attributes": s}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": data,
		"meta": map[string]any{"pagination": map[string]any{"current_page": page, "total_pages": total}},
	})
}

func TestFindServerByUUIDWalksPages(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Bearer app-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/application/servers", r.URL.Path)
		switch r.URL.Query().Get("page") {
		case "1":
			writeServerPage(w, 1, 2, Server{ID: 1, UUID: "aaa"})
		default:
			writeServerPage(w, 2, 2, Server{ID: 2, UUID: "bbb"})
		}
	}), config.RetryConfig{})

	server, err := client.FindServerByUUID(context.Background(), "bbb")
	require.NoError(t, err)
	assert.Equal(t, int64(2), server.ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	_, err = client.FindServerByUUID(context.Background(), "zzz")
	assert.ErrorIs(t, err, ErrServerNotFound)
}

func TestNonSuccessBecomesAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"errors":[{"code":"ValidationException","status":"422","detail":"The email has already been taken."}]}`)
	}), config.RetryConfig{})

	_, err := client.CreateUser(context.Background(), CreateUserRequest{Email: "a@b.c", Username: "a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteAPI)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "The email has already been taken.", apiErr.Detail)
	assert.False(t, apiErr.Retryable())
}

func TestDeleteServerNoRetryByDefault(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/application/servers/42", r.URL.Path)
		w.WriteHeader(http.StatusBadGateway)
	}), config.RetryConfig{})

	err := client.DeleteServer(context.Background(), 42)
	assert.ErrorIs(t, err, ErrRemoteAPI)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}), config.RetryConfig{Enabled: true, MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond})

	require.NoError(t, client.DeleteServer(context.Background(), 7))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestServerResourcesUsesClientToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer client-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/client/servers/abc/resources", r.URL.Path)
		fmt.Fprint(w, `{"object":"stats","attributes":{"current_state":"running","is_suspended":false}}`)
	}), config.RetryConfig{})

	res, err := client.ServerResources(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "running", res.CurrentState)
}

func TestFetchEggExportNormalisesShapes(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"name":"Paper","docker_images":["ghcr.io/java:21"],"variables":[
			{"name":"Version","env_variable":"MC_VERSION","default_value":"latest","rules":["required","string"]}]}`)
	}), config.RetryConfig{})

	egg, err := client.FetchEggExport(context.Background(), client.baseURL+"/egg.json")
	require.NoError(t, err)
	assert.Equal(t, DockerImages{"ghcr.io/java:21": "ghcr.io/java:21"}, egg.DockerImages)
	require.Len(t, egg.Variables, 1)
	assert.Equal(t, Rules("required|string"), egg.Variables[0].Rules)
}

func TestTransportErrorIsRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(config.PanelConfig{URL: srv.URL, ConnectTimeout: time.Second}, logging.Discard())

	_, err := client.ListNodes(context.Background())
	assert.ErrorIs(t, err, ErrRemoteAPI)
	assert.True(t, IsRetryable(err))
}
