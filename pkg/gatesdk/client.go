package gatesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a client for the authentication gateway. It covers the
// unauthenticated login flow and the session-scoped operations.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a gateway client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// url builds a complete URL by appending the path to the base URL.
func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// doRequest performs an HTTP request. A non-empty sessionToken is attached as
// the bearer credential.
func (c *Client) doRequest(
	ctx context.Context,
	method, path, sessionToken string,
	body io.Reader,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+sessionToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	return resp, nil
}

func (c *Client) doJSON(
	ctx context.Context,
	method, path, sessionToken string,
	payload any,
) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	return c.doRequest(ctx, method, path, sessionToken, body)
}

// decodeJSON decodes a JSON response into the target. Non-2xx responses are
// returned as a typed *APIError.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp, bodyBytes)
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// checkStatusNoContent returns a typed error if the response status is not
// 204 No Content.
func checkStatusNoContent(resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return parseErrorResponse(resp, bodyBytes)
	}

	return nil
}

// parseErrorResponse rebuilds the gateway's APIError from an error body so
// callers can branch on the code with errors.As.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code == "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        CodeServerError,
			Description: fmt.Sprintf("unexpected response (status %d)", resp.StatusCode),
		}
	}
	apiErr.StatusCode = resp.StatusCode
	return &apiErr
}

// BeginLogin asks the gateway to start an authorization-code flow. The caller
// should send the browser to AuthorizeURL and hold State for correlation.
func (c *Client) BeginLogin(ctx context.Context) (*LoginResponse, error) {
	return c.beginLogin(ctx, "/v1/auth/login")
}

// BeginLoginWithState is BeginLogin with a caller-chosen state nonce. The
// gateway replaces it when it carries too little entropy, so callers must use
// the State from the response rather than the one they sent.
func (c *Client) BeginLoginWithState(ctx context.Context, state string) (*LoginResponse, error) {
	return c.beginLogin(ctx, "/v1/auth/login?state="+url.QueryEscape(state))
}

func (c *Client) beginLogin(ctx context.Context, path string) (*LoginResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}

	var login LoginResponse
	if err := decodeJSON(resp, &login, http.StatusOK); err != nil {
		return nil, err
	}

	return &login, nil
}

// ExchangeCode redeems an authorization code using the state from BeginLogin.
func (c *Client) ExchangeCode(ctx context.Context, code, state string) (*SessionResponse, error) {
	return c.exchange(ctx, TokenRequest{Code: code, State: state})
}

// ExchangeCodeWithVerifier redeems an authorization code with a caller-held
// PKCE verifier, for flows where the gateway never stored the correlation.
func (c *Client) ExchangeCodeWithVerifier(ctx context.Context, code, verifier string) (*SessionResponse, error) {
	return c.exchange(ctx, TokenRequest{Code: code, CodeVerifier: verifier})
}

func (c *Client) exchange(ctx context.Context, req TokenRequest) (*SessionResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/token", "", req)
	if err != nil {
		return nil, err
	}

	var session SessionResponse
	if err := decodeJSON(resp, &session, http.StatusOK); err != nil {
		return nil, err
	}

	return &session, nil
}

// Refresh asks the gateway for a new session token, refreshing the upstream
// access token first if it is close to expiry.
func (c *Client) Refresh(ctx context.Context, sessionToken string, req RefreshRequest) (*SessionResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/refresh", sessionToken, req)
	if err != nil {
		return nil, err
	}

	var session SessionResponse
	if err := decodeJSON(resp, &session, http.StatusOK); err != nil {
		return nil, err
	}

	return &session, nil
}

// Logout evicts the caller's cached upstream tokens.
func (c *Client) Logout(ctx context.Context, sessionToken string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/logout", sessionToken, LogoutRequest{})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Status reports the principal behind sessionToken. A missing or invalid
// token produces an *APIError carrying the specific 401 code.
func (c *Client) Status(ctx context.Context, sessionToken string) (*StatusResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/auth/status", sessionToken, nil)
	if err != nil {
		return nil, err
	}

	var status StatusResponse
	if err := decodeJSON(resp, &status, http.StatusOK); err != nil {
		return nil, err
	}

	return &status, nil
}

// AuditQuery narrows the admin audit listing.
type AuditQuery struct {
	Category string
	ActorID  string
	Since    time.Time
	Limit    int
}

// ListAudit fetches recent audit events. Requires a session holding the admin
// role.
func (c *Client) ListAudit(ctx context.Context, sessionToken string, q AuditQuery) (*AuditListResponse, error) {
	params := url.Values{}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	if q.ActorID != "" {
		params.Set("actor_id", q.ActorID)
	}
	if !q.Since.IsZero() {
		params.Set("since", q.Since.Format(time.RFC3339))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	path := "/v1/admin/audit"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, sessionToken, nil)
	if err != nil {
		return nil, err
	}

	var list AuditListResponse
	if err := decodeJSON(resp, &list, http.StatusOK); err != nil {
		return nil, err
	}

	return &list, nil
}

// GetLiveness checks if the gateway is alive.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/livez", "", nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}

	return &health, nil
}

// GetReadiness checks if the gateway is ready to serve.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/readyz", "", nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}

	return &health, nil
}
