package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"channel_pulse/internal/domain"
)

// BridgeConfig configures the HTTP MTProto bridge sidecar.
type BridgeConfig struct {
	BaseURL string
	Timeout time.Duration
}

// BridgeDialer connects users through an MTProto bridge sidecar that
// owns the actual wire protocol. The bridge speaks JSON over HTTP and
// reports protocol failures as RPC error codes, which are mapped onto
// the typed taxonomy here.
type BridgeDialer struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewBridgeDialer creates a dialer against the configured bridge.
func NewBridgeDialer(cfg BridgeConfig, logger *slog.Logger) *BridgeDialer {
	return &BridgeDialer{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		logger:  logger.With("component", "bridge"),
	}
}

type connectRequest struct {
	UserID    string `json:"user_id"`
	AuthState string `json:"auth_state,omitempty"`
	DCID      int    `json:"dc_id,omitempty"`
}

type connectResponse struct {
	AuthState string `json:"auth_state"`
	DCID      int    `json:"dc_id"`
}

type invokeRequest struct {
	UserID string         `json:"user_id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

type bridgeEnvelope struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Dial establishes (or resumes) a session on the bridge and returns a
// client bound to it.
func (d *BridgeDialer) Dial(ctx context.Context, userID string, sess *domain.Session) (Client, error) {
	req := connectRequest{UserID: userID}
	if sess != nil {
		req.AuthState = sess.AuthState
		req.DCID = sess.DCID
	}

	var resp connectResponse
	if err := d.post(ctx, "/sessions/connect", req, &resp); err != nil {
		return nil, fmt.Errorf("connect %s: %w", userID, err)
	}

	d.logger.Debug("session connected", "user_id", userID, "dc_id", resp.DCID)

	return &bridgeClient{
		dialer:    d,
		userID:    userID,
		authState: resp.AuthState,
		dcID:      resp.DCID,
	}, nil
}

func (d *BridgeDialer) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return &TransientError{Err: fmt.Errorf("bridge status %d", resp.StatusCode)}
	}

	var envelope bridgeEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &TransientError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if envelope.Error != "" {
		return MapRPCError(envelope.Error)
	}

	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return &TransientError{Err: fmt.Errorf("decode result: %w", err)}
		}
	}
	return nil
}

// bridgeClient is one user's session on the bridge.
type bridgeClient struct {
	dialer    *BridgeDialer
	userID    string
	authState string
	dcID      int
}

func (c *bridgeClient) Me(ctx context.Context) (*UserInfo, error) {
	var resp Response
	err := c.dialer.post(ctx, "/sessions/me", connectRequest{UserID: c.userID}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, &TransientError{Err: fmt.Errorf("empty identity response")}
	}
	return resp.User, nil
}

func (c *bridgeClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	var resp Response
	err := c.dialer.post(ctx, "/sessions/invoke", invokeRequest{
		UserID: c.userID,
		Method: req.Method,
		Params: req.Params,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *bridgeClient) ExportSession() (string, int) {
	return c.authState, c.dcID
}

func (c *bridgeClient) Disconnect(ctx context.Context) error {
	return c.dialer.post(ctx, "/sessions/disconnect", connectRequest{UserID: c.userID}, nil)
}
