// Package client is the Go SDK for an encodex server.
//
// # Quick start
//
//	c := client.New("http://localhost:8080")
//
//	// Encode with the default substitution cipher
//	msg, err := c.Encode(ctx, "meet me at noon")
//
//	// Caesar, password protected, single view
//	msg, err := c.Encode(ctx, "meet me at noon",
//	    client.WithMethod(client.MethodCaesar),
//	    client.WithShift(7),
//	    client.WithPassword("hunter2"),
//	    client.WithSelfDestruct())
//
//	// Decode
//	out, err := c.Decode(ctx, msg.Envelope, client.DecodeWithPassword("hunter2"))
//	switch {
//	case client.IsPasswordRequired(err):
//	    // ask the user
//	case client.IsDestructed(err):
//	    // already gone
//	}
//
// # Sessions
//
// The server tracks which self-destructing messages each decoder session has
// displayed. A Client adopts the session id the server hands back on its
// first Decode and reuses it for every later call, so one Client behaves like
// one browser tab. Use WithSessionID to resume a known session.
//
// # Error handling
//
// All methods return an *APIError when the server responds with a non-2xx
// status code.
//
// Client is safe for concurrent use.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// sessionHeader must match the server's header name.
const sessionHeader = "X-Session-Id"

// Wire names of the four methods.
const (
	MethodSubstitution = "simple"
	MethodCaesar       = "caesar"
	MethodBase64       = "base64"
	MethodEmoji        = "emoji"
)

// ─── Error type ───────────────────────────────────────────────────────────────

// APIError is returned when the server responds with a non-2xx status.
type APIError struct {
	StatusCode int    // HTTP status code
	Message    string // "error" field from the JSON response body
	Kind       string // error kind, e.g. "wrong_secret"
	Required   string // "password" or "customKey" for input_required errors
}

func (e *APIError) Error() string {
	return fmt.Sprintf("encodex: server returned %d: %s", e.StatusCode, e.Message)
}

func asAPIError(err error) (*APIError, bool) {
	var ae *APIError
	ok := errors.As(err, &ae)
	return ae, ok
}

// IsPasswordRequired reports whether the message needs a password that was
// not supplied.
func IsPasswordRequired(err error) bool {
	ae, ok := asAPIError(err)
	return ok && ae.Kind == "input_required" && ae.Required == "password"
}

// IsCustomKeyRequired reports whether the message needs a custom key that was
// not supplied.
func IsCustomKeyRequired(err error) bool {
	ae, ok := asAPIError(err)
	return ok && ae.Kind == "input_required" && ae.Required == "customKey"
}

// IsIncorrectPassword reports whether the supplied password was rejected.
func IsIncorrectPassword(err error) bool {
	ae, ok := asAPIError(err)
	return ok && ae.StatusCode == http.StatusForbidden
}

// IsDestructed reports whether the message has already self-destructed.
func IsDestructed(err error) bool {
	ae, ok := asAPIError(err)
	return ok && ae.StatusCode == http.StatusGone
}

// IsUndecodable reports whether no method produced readable text.
func IsUndecodable(err error) bool {
	ae, ok := asAPIError(err)
	return ok && ae.Kind == "undecodable"
}

// ─── Client options ───────────────────────────────────────────────────────────

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key sent in every request as the X-Api-Key header.
// Required when the server has auth.enabled = true.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout. The default is 30 seconds.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithSessionID resumes an existing decoder session.
func WithSessionID(id string) ClientOption {
	return func(c *Client) { c.sessionID = id }
}

// ─── Client ───────────────────────────────────────────────────────────────────

// Client is the encodex API client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	mu        sync.Mutex
	sessionID string
}

// New creates a Client for the server at baseURL.
//
//	c := client.New("http://localhost:8080")
//	c := client.New("https://encodex.example.com", client.WithAPIKey("secret"))
func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SessionID returns the decoder session id in use, or "" before the first
// Decode.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// ─── Result types ─────────────────────────────────────────────────────────────

// Metadata mirrors the envelope header.
type Metadata struct {
	Type              string `json:"type"`
	PasswordProtected bool   `json:"passwordProtected"`
	SelfDestruct      bool   `json:"selfDestruct"`
	Shift             *int   `json:"shift,omitempty"`
	MessageID         string `json:"messageId,omitempty"`
	CustomEncryption  bool   `json:"customEncryption,omitempty"`
}

// Encoded is an encoded message in every shareable form.
type Encoded struct {
	Envelope  string   `json:"envelope"`
	Metadata  Metadata `json:"metadata"`
	ShareURL  string   `json:"shareUrl"`
	QRPayload string   `json:"qrPayload"`
	MessageID string   `json:"messageId"`
}

// Decoded is a decoded message.
type Decoded struct {
	Text      string
	Method    string
	Shift     int
	Detected  bool
	Recovered bool
	Metadata  *Metadata

	// SelfDestruct is set for single-view messages; the text should be
	// hidden once DestructAfter has elapsed.
	SelfDestruct  bool
	MessageID     string
	DestructAfter time.Duration
}

// Candidate is one ranked decoding returned by Detect.
type Candidate struct {
	Method     string  `json:"method"`
	Shift      int     `json:"shift"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Detection is the server's guess about how a text was encoded.
type Detection struct {
	Method         string      `json:"method"`
	Reason         string      `json:"reason"`
	PasswordLikely bool        `json:"passwordLikely"`
	Metadata       *Metadata   `json:"metadata"`
	Candidates     []Candidate `json:"candidates"`
}

// MethodInfo describes one available method.
type MethodInfo struct {
	Method      string `json:"method"`
	Description string `json:"description"`
	TakesShift  bool   `json:"takesShift"`
}

// HealthInfo is the server's /health response.
type HealthInfo struct {
	Status   string
	Ledger   string
	Sessions int
	Uptime   time.Duration
	Version  string
}

// ─── Encode options ───────────────────────────────────────────────────────────

// EncodeOption configures a single Encode call.
type EncodeOption func(*encodePayload)

// WithMethod selects the transform. The default is substitution.
func WithMethod(m string) EncodeOption {
	return func(p *encodePayload) { p.Method = m }
}

// WithShift sets the Caesar shift (1–25). Zero means the default of 3.
func WithShift(n int) EncodeOption {
	return func(p *encodePayload) { p.Shift = n }
}

// WithPassword masks the payload with a password.
func WithPassword(pw string) EncodeOption {
	return func(p *encodePayload) { p.Password = pw }
}

// WithCustomKey rotates the payload by a key-derived shift.
func WithCustomKey(key string) EncodeOption {
	return func(p *encodePayload) { p.CustomKey = key }
}

// WithSelfDestruct makes the message single-view.
func WithSelfDestruct() EncodeOption {
	return func(p *encodePayload) { p.SelfDestruct = true }
}

// ─── Decode options ───────────────────────────────────────────────────────────

// DecodeOption configures a single Decode call.
type DecodeOption func(*decodePayload)

// DecodeWithPassword supplies the password for a protected message.
func DecodeWithPassword(pw string) DecodeOption {
	return func(p *decodePayload) { p.Password = pw }
}

// DecodeWithCustomKey supplies the custom key. For messages without metadata
// the key is applied regardless.
func DecodeWithCustomKey(key string) DecodeOption {
	return func(p *decodePayload) {
		p.CustomKey = key
		p.UseCustomKey = true
	}
}

// DecodeAs hints the method and shift for text that carries no metadata.
func DecodeAs(method string, shift int) DecodeOption {
	return func(p *decodePayload) {
		p.Method = method
		p.Shift = shift
	}
}

// ─── Operations ───────────────────────────────────────────────────────────────

// Encode encodes text and returns the finished envelope.
func (c *Client) Encode(ctx context.Context, text string, opts ...EncodeOption) (*Encoded, error) {
	p := &encodePayload{Text: text}
	for _, o := range opts {
		o(p)
	}
	var resp Encoded
	if err := c.do(ctx, http.MethodPost, "/encode", p, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Decode decodes an envelope, bare payload or scanned QR string.
func (c *Client) Decode(ctx context.Context, text string, opts ...DecodeOption) (*Decoded, error) {
	p := &decodePayload{Text: text}
	for _, o := range opts {
		o(p)
	}
	var resp struct {
		Text            string    `json:"text"`
		Method          string    `json:"method"`
		Shift           int       `json:"shift"`
		Detected        bool      `json:"detected"`
		Recovered       bool      `json:"recovered"`
		Metadata        *Metadata `json:"metadata"`
		SelfDestruct    bool      `json:"selfDestruct"`
		MessageID       string    `json:"messageId"`
		DestructAfterMs int64     `json:"destructAfterMs"`
	}
	if err := c.do(ctx, http.MethodPost, "/decode", p, &resp); err != nil {
		return nil, err
	}
	return &Decoded{
		Text:          resp.Text,
		Method:        resp.Method,
		Shift:         resp.Shift,
		Detected:      resp.Detected,
		Recovered:     resp.Recovered,
		Metadata:      resp.Metadata,
		SelfDestruct:  resp.SelfDestruct,
		MessageID:     resp.MessageID,
		DestructAfter: time.Duration(resp.DestructAfterMs) * time.Millisecond,
	}, nil
}

// Detect asks the server how text was probably encoded.
func (c *Client) Detect(ctx context.Context, text string) (*Detection, error) {
	var resp Detection
	if err := c.do(ctx, http.MethodPost, "/detect", map[string]string{"text": text}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Methods lists the methods the server supports.
func (c *Client) Methods(ctx context.Context) ([]MethodInfo, error) {
	var resp struct {
		Methods []MethodInfo `json:"methods"`
	}
	if err := c.do(ctx, http.MethodGet, "/methods", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Methods, nil
}

// QRCode fetches a PNG QR code for envelope. size 0 uses the server default.
func (c *Client) QRCode(ctx context.Context, envelope string, size int) ([]byte, error) {
	q := url.Values{"data": {envelope}}
	if size > 0 {
		q.Set("size", strconv.Itoa(size))
	}
	path := "/qr?" + q.Encode()
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/png")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("encodex: request GET /qr: %w", err)
	}
	defer httpResp.Body.Close()
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("encodex: read response body: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, apiError(httpResp.StatusCode, body)
	}
	return body, nil
}

// Health checks the server's /health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthInfo, error) {
	var resp struct {
		Status   string `json:"status"`
		Ledger   string `json:"ledger"`
		Sessions int    `json:"sessions"`
		UptimeMs int64  `json:"uptime_ms"`
		Version  string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &HealthInfo{
		Status:   resp.Status,
		Ledger:   resp.Ledger,
		Sessions: resp.Sessions,
		Uptime:   time.Duration(resp.UptimeMs) * time.Millisecond,
		Version:  resp.Version,
	}, nil
}

// ─── HTTP helpers ─────────────────────────────────────────────────────────────

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("encodex: build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	if id := c.SessionID(); id != "" {
		req.Header.Set(sessionHeader, id)
	}
	return req, nil
}

// do sends a JSON request and decodes a JSON response into resp.
func (c *Client) do(ctx context.Context, method, path string, body, resp any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encodex: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("encodex: request %s %s: %w", method, path, err)
	}
	defer httpResp.Body.Close()

	if id := httpResp.Header.Get(sessionHeader); id != "" {
		c.mu.Lock()
		c.sessionID = id
		c.mu.Unlock()
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("encodex: read response body: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return apiError(httpResp.StatusCode, respBody)
	}

	if resp != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, resp); err != nil {
			return fmt.Errorf("encodex: decode response: %w", err)
		}
	}
	return nil
}

func apiError(status int, body []byte) *APIError {
	var errResp struct {
		Error    string `json:"error"`
		Kind     string `json:"kind"`
		Required string `json:"required"`
	}
	_ = json.Unmarshal(body, &errResp)
	msg := errResp.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg, Kind: errResp.Kind, Required: errResp.Required}
}

// ─── Internal wire types ──────────────────────────────────────────────────────

type encodePayload struct {
	Text         string `json:"text"`
	Method       string `json:"method,omitempty"`
	Shift        int    `json:"shift,omitempty"`
	CustomKey    string `json:"customKey,omitempty"`
	Password     string `json:"password,omitempty"`
	SelfDestruct bool   `json:"selfDestruct,omitempty"`
}

type decodePayload struct {
	Text         string `json:"text"`
	Password     string `json:"password,omitempty"`
	CustomKey    string `json:"customKey,omitempty"`
	UseCustomKey bool   `json:"useCustomKey,omitempty"`
	Method       string `json:"method,omitempty"`
	Shift        int    `json:"shift,omitempty"`
}
