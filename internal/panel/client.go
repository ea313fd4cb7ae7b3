// Package panel is the HTTP client for the remote game-server panel API.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/creamcroissant/panelmirror/internal/config"
)

const (
	defaultPerPage = 100
	maxErrorBody   = 4 << 10
	maxPages       = 1000
)

// Client talks to the application API with the application token and to the
// client API with the client token.
type Client struct {
	baseURL     string
	appToken    string
	clientToken string
	retry       RetryConfig
	client      *http.Client
	logger      *slog.Logger
}

// NewClient builds a Client from panel configuration.
func NewClient(cfg config.PanelConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		appToken:    cfg.ApplicationToken,
		clientToken: cfg.ClientToken,
		retry: RetryConfig{
			Enabled:         cfg.Retry.Enabled,
			MaxRetries:      cfg.Retry.MaxRetries,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
		},
		client: &http.Client{Transport: transport, Timeout: timeout},
		logger: logger,
	}
}

// ListServers returns every server visible to the application token.
func (c *Client) ListServers(ctx context.Context) ([]Server, error) {
	return listAll[Server](ctx, c, "/api/application/servers")
}

// FindServerByUUID walks the server list looking for uuid.
func (c *Client) FindServerByUUID(ctx context.Context, uuid string) (*Server, error) {
	var found *Server
	err := eachPage[Server](ctx, c, "/api/application/servers", func(batch []Server) bool {
		for i := range batch {
			if batch[i].UUID == uuid {
				found = &batch[i]
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrServerNotFound
	}
	return found, nil
}

// DeleteServer removes a server by its remote numeric id.
func (c *Client) DeleteServer(ctx context.Context, id int64) error {
	path := "/api/application/servers/" + strconv.FormatInt(id, 10)
	return c.do(ctx, http.MethodDelete, path, c.appToken, nil, nil)
}

// CreateServer provisions a server remotely.
func (c *Client) CreateServer(ctx context.Context, req CreateServerRequest) (*Server, error) {
	var out singleEnvelope[Server]
	if err := c.do(ctx, http.MethodPost, "/api/application/servers", c.appToken, req, &out); err != nil {
		return nil, err
	}
	return &out.Attributes, nil
}

// ServerResources reads live usage through the client API.
func (c *Client) ServerResources(ctx context.Context, uuid string) (*Resources, error) {
	var out singleEnvelope[Resources]
	path := "/api/client/servers/" + url.PathEscape(uuid) + "/resources"
	if err := c.do(ctx, http.MethodGet, path, c.clientToken, nil, &out); err != nil {
		return nil, err
	}
	return &out.Attributes, nil
}

// ListNodes returns every remote node.
func (c *Client) ListNodes(ctx context.Context) ([]Node, error) {
	return listAll[Node](ctx, c, "/api/application/nodes")
}

// ListAllocations returns the allocations of one node.
func (c *Client) ListAllocations(ctx context.Context, nodeID int64) ([]Allocation, error) {
	return listAll[Allocation](ctx, c, "/api/application/nodes/"+strconv.FormatInt(nodeID, 10)+"/allocations")
}

// ListEggs returns every remote egg.
func (c *Client) ListEggs(ctx context.Context) ([]Egg, error) {
	return listAll[Egg](ctx, c, "/api/application/eggs")
}

// ListUsers returns every remote user.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	return listAll[User](ctx, c, "/api/application/users")
}

// CreateUser registers a user remotely.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	var out singleEnvelope[User]
	if err := c.do(ctx, http.MethodPost, "/api/application/users", c.appToken, req, &out); err != nil {
		return nil, err
	}
	return &out.Attributes, nil
}

// FetchEggExport downloads an egg export document from an arbitrary URL without credentials.
func (c *Client) FetchEggExport(ctx context.Context, rawURL string) (*EggExport, error) {
	var out EggExport
	if err := c.doURL(ctx, http.MethodGet, rawURL, rawURL, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func listAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T
	err := eachPage[T](ctx, c, path, func(batch []T) bool {
		all = append(all, batch...)
		return true
	})
	return all, err
}

// eachPage feeds every page of a list endpoint to fn until fn returns false.
func eachPage[T any](ctx context.Context, c *Client, path string, fn func([]T) bool) error {
	for page := 1; page <= maxPages; page++ {
		var env listEnvelope[T]
		paged := fmt.Sprintf("%s?page=%d&per_page=%d", path, page, defaultPerPage)
		if err := c.do(ctx, http.MethodGet, paged, c.appToken, nil, &env); err != nil {
			return err
		}
		batch := make([]T, len(env.Data))
		for i, item := range env.Data {
			batch[i] = item.Attributes
		}
		if !fn(batch) {
			return nil
		}
		p := env.Meta.Pagination
		if len(env.Data) == 0 || p.TotalPages == 0 || p.CurrentPage >= p.TotalPages {
			return nil
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	return c.doURL(ctx, method, path, c.baseURL+path, token, body, out)
}

func (c *Client) doURL(ctx context.Context, method, label, target, token string, body, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = encoded
	}

	attempt := 0
	return doWithRetry(ctx, c.retry, func(ctx context.Context) error {
		attempt++
		err := c.send(ctx, method, label, target, token, payload, out)
		if err != nil && attempt > 1 {
			c.logger.Debug("panel request retry failed", "method", method, "path", label, "attempt", attempt, "error", err)
		}
		return err
	})
}

func (c *Client) send(ctx context.Context, method, label, target, token string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &APIError{Method: method, Path: label, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Method: method, Path: label, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil && len(env.Errors) > 0 {
			apiErr.Detail = env.Errors[0].Detail
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &APIError{Method: method, Path: label, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
