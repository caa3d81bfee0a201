package legacy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	application "rentbridge/contexts/legacy-integration/sync-queue-service/application"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	domainerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/services"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

const (
	defaultTimeout   = 15 * time.Second
	maxErrorBodySize = 512
	maxBodySize      = 4 << 20
)

type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the legacy platform's REST surface. Entity endpoints come
// from the sync config: POST {endpoint} creates, PATCH and DELETE
// {endpoint}/{id} update and delete, GET {endpoint}/{id} reads back.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(cfg ClientConfig, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("legacy base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("legacy base url: %w", err)
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		http:    httpClient,
		logger:  application.ResolveLogger(logger),
	}, nil
}

type createResponse struct {
	ID json.RawMessage `json:"id"`
}

func (c *Client) Push(ctx context.Context, req ports.PushRequest) (ports.PushResult, error) {
	var (
		method string
		target string
		err    error
	)
	switch req.Operation {
	case entities.OperationCreate:
		method = http.MethodPost
		target, err = c.endpointURL(req.Mapping.Endpoint, "")
	case entities.OperationUpdate:
		method = http.MethodPatch
		target, err = c.endpointURL(req.Mapping.Endpoint, req.LegacyID)
	case entities.OperationDelete:
		method = http.MethodDelete
		target, err = c.endpointURL(req.Mapping.Endpoint, req.LegacyID)
	default:
		return ports.PushResult{}, domainerrors.NewValidationError("operation", "unsupported operation %q", req.Operation)
	}
	if err != nil {
		return ports.PushResult{}, err
	}

	var body io.Reader
	if req.Operation != entities.OperationDelete && req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return ports.PushResult{}, domainerrors.NewValidationError("payload", "encode push body: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return ports.PushResult{}, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.IdempotencyToken != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyToken)
	}

	op := "push " + string(req.Operation) + " " + req.Mapping.LegacyType
	resp, err := c.do(httpReq, op)
	if err != nil {
		return ports.PushResult{}, err
	}
	defer resp.Body.Close()

	if req.Operation == entities.OperationDelete && resp.StatusCode == http.StatusNotFound {
		// Already gone, which is the state a delete asks for.
		return ports.PushResult{LegacyID: req.LegacyID}, nil
	}
	if err := checkStatus(resp, op); err != nil {
		return ports.PushResult{}, err
	}
	if req.Operation != entities.OperationCreate {
		return ports.PushResult{LegacyID: req.LegacyID}, nil
	}

	var created createResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&created); err != nil {
		return ports.PushResult{}, &domainerrors.LegacyAPIError{Op: op, StatusCode: http.StatusBadGateway, Body: "undecodable create response: " + err.Error()}
	}
	legacyID, err := identifierString(created.ID)
	if err != nil {
		return ports.PushResult{}, &domainerrors.LegacyAPIError{Op: op, StatusCode: http.StatusBadGateway, Body: err.Error()}
	}

	c.logger.Debug("legacy create accepted",
		"event", "legacy_client_create_accepted",
		"module", application.ModuleName,
		"layer", "adapter",
		"legacy_type", req.Mapping.LegacyType,
		"legacy_id", legacyID,
	)
	return ports.PushResult{LegacyID: legacyID}, nil
}

func (c *Client) ReadBack(ctx context.Context, mapping entities.EntityMapping, legacyID string) (map[string]any, error) {
	target, err := c.endpointURL(mapping.Endpoint, legacyID)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	op := "read back " + mapping.LegacyType
	resp, err := c.do(httpReq, op)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, fmt.Errorf("%s %s: %w", mapping.LegacyType, legacyID, domainerrors.ErrLegacyObjectNotFound)
	}
	if err := checkStatus(resp, op); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &domainerrors.TransientNetworkError{Op: op, Err: err}
	}
	object, err := services.DecodeObject(raw)
	if err != nil || object == nil {
		return nil, &domainerrors.LegacyAPIError{Op: op, StatusCode: http.StatusBadGateway, Body: "read-back is not a json object"}
	}
	return object, nil
}

func (c *Client) do(req *http.Request, op string) (*http.Response, error) {
	req.Header.Set("User-Agent", "rentbridge-sync/1")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("legacy request failed",
			"event", "legacy_client_request_failed",
			"module", application.ModuleName,
			"layer", "adapter",
			"op", op,
			"error", err.Error(),
		)
		return nil, &domainerrors.TransientNetworkError{Op: op, Err: err}
	}
	c.logger.Debug("legacy request completed",
		"event", "legacy_client_request_completed",
		"module", application.ModuleName,
		"layer", "adapter",
		"op", op,
		"status", resp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return resp, nil
}

func (c *Client) endpointURL(endpoint string, legacyID string) (string, error) {
	elems := []string{strings.Trim(endpoint, "/")}
	if legacyID != "" {
		elems = append(elems, url.PathEscape(legacyID))
	} else if endpoint == "" {
		return "", errors.New("legacy endpoint is empty")
	}
	return url.JoinPath(c.baseURL, elems...)
}

func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	return &domainerrors.LegacyAPIError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// identifierString accepts string or numeric identifiers.
func identifierString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", errors.New("create response has no id")
	}
	var asString string
	if err := json.Unmarshal(trimmed, &asString); err == nil {
		if asString == "" {
			return "", errors.New("create response has an empty id")
		}
		return asString, nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(trimmed, &asNumber); err == nil {
		if _, err := strconv.ParseInt(asNumber.String(), 10, 64); err == nil {
			return asNumber.String(), nil
		}
	}
	return "", fmt.Errorf("create response id %s is not a string or integer", string(trimmed))
}

var _ ports.LegacyPlatform = (*Client)(nil)
