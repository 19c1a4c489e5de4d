package zhmc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultPort is the HMC Web Services API port.
	DefaultPort = 6794

	// SessionHeader carries the API session token on every request.
	SessionHeader = "X-API-Session"

	// reasonSessionExpired is the 403 reason code for an invalid or expired
	// API session.
	reasonSessionExpired = 5

	defaultTimeout         = 30 * time.Second
	defaultJobPollInterval = time.Second
	defaultJobTimeout      = 15 * time.Minute
)

// Session performs the HTTP requests against the HMC on behalf of managers
// and resources. All URIs are absolute paths such as "/api/cpcs".
type Session interface {
	Get(ctx context.Context, uri string) (map[string]any, error)
	Post(ctx context.Context, uri string, body any, waitForCompletion bool) (map[string]any, error)
	Delete(ctx context.Context, uri string) error
}

// RawBody is a non-JSON request body, used for binary uploads.
type RawBody struct {
	ContentType string
	Data        []byte
}

// SessionOptions configures an HTTPSession.
type SessionOptions struct {
	// Host is the HMC host name or IP address. A value with a scheme
	// ("https://hmc:6794") is used as the base URL unchanged.
	Host     string
	Port     int
	UserID   string
	Password string

	// Insecure disables verification of the HMC certificate.
	Insecure bool
	Timeout  time.Duration

	JobPollInterval time.Duration
	JobTimeout      time.Duration

	// HTTPClient overrides the client built from Insecure and Timeout.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// HTTPSession is a Session talking to a real (or faked) HMC over HTTPS.
// It logs on lazily and renews an expired API session once per request.
type HTTPSession struct {
	opts    SessionOptions
	baseURL string
	client  *http.Client
	log     *zap.Logger

	mu    sync.Mutex
	token string
}

// NewSession returns an HTTPSession for opts. No request is made until the
// first operation or an explicit Logon.
func NewSession(opts SessionOptions) *HTTPSession {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.JobPollInterval <= 0 {
		opts.JobPollInterval = defaultJobPollInterval
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = defaultJobTimeout
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.Insecure}, //nolint:gosec
				Proxy:           http.ProxyFromEnvironment,
			},
		}
	}
	return &HTTPSession{
		opts:    opts,
		baseURL: baseURL(opts.Host, opts.Port),
		client:  client,
		log:     log,
	}
}

func baseURL(host string, port int) string {
	if strings.Contains(host, "://") {
		return strings.TrimRight(host, "/")
	}
	return "https://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// BaseURL returns the URL all request URIs are resolved against.
func (s *HTTPSession) BaseURL() string { return s.baseURL }

// IsLoggedOn reports whether the session currently holds an API session token.
func (s *HTTPSession) IsLoggedOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

// Logon creates a new API session, replacing any token currently held.
func (s *HTTPSession) Logon(ctx context.Context) error {
	body := map[string]string{"userid": s.opts.UserID, "password": s.opts.Password}
	resp, err := s.send(ctx, http.MethodPost, "/api/sessions", body, "")
	if err != nil {
		return err
	}
	if resp.status >= 400 {
		herr := newHTTPError(http.MethodPost, "/api/sessions", resp)
		if resp.status == http.StatusBadRequest || resp.status == http.StatusForbidden {
			return &AuthError{Message: fmt.Sprintf("logon as %q rejected", s.opts.UserID), Cause: herr}
		}
		return herr
	}
	out, err := decodeObject(resp.body)
	if err != nil {
		return err
	}
	token, _ := out["api-session"].(string)
	if token == "" {
		return &ParseError{Message: "logon response has no api-session"}
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	s.log.Debug("hmc logon", zap.String("url", s.baseURL), zap.String("userid", s.opts.UserID))
	return nil
}

// Logoff deletes the current API session. It is a no-op when not logged on.
func (s *HTTPSession) Logoff(ctx context.Context) error {
	token := s.currentToken()
	if token == "" {
		return nil
	}
	resp, err := s.send(ctx, http.MethodDelete, "/api/sessions/this-session", nil, token)
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	if err != nil {
		return err
	}
	// An already expired session needs no logoff.
	if resp.status >= 400 && !(resp.status == http.StatusForbidden && responseReason(resp) == reasonSessionExpired) {
		return newHTTPError(http.MethodDelete, "/api/sessions/this-session", resp)
	}
	s.log.Debug("hmc logoff", zap.String("url", s.baseURL))
	return nil
}

// Get performs a GET and returns the decoded JSON object, or nil for an
// empty response.
func (s *HTTPSession) Get(ctx context.Context, uri string) (map[string]any, error) {
	resp, err := s.request(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	return decodeObject(resp.body)
}

// Post performs a POST. An asynchronous operation (202 with a job-uri) is
// waited for when waitForCompletion is set, in which case the completed job
// status is returned; otherwise the response holding the job-uri is returned.
func (s *HTTPSession) Post(ctx context.Context, uri string, body any, waitForCompletion bool) (map[string]any, error) {
	resp, err := s.request(ctx, http.MethodPost, uri, body)
	if err != nil {
		return nil, err
	}
	result, err := decodeObject(resp.body)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusAccepted {
		return result, nil
	}

	jobURI, _ := result["job-uri"].(string)
	if jobURI == "" {
		return nil, &ParseError{Message: fmt.Sprintf("asynchronous POST %s returned no job-uri", uri)}
	}
	if !waitForCompletion {
		return result, nil
	}
	job := NewJob(s, jobURI, http.MethodPost, uri)
	job.log = s.log
	return job.WaitForCompletion(ctx, s.opts.JobPollInterval, s.opts.JobTimeout)
}

// Delete performs a DELETE.
func (s *HTTPSession) Delete(ctx context.Context, uri string) error {
	_, err := s.request(ctx, http.MethodDelete, uri, nil)
	return err
}

type response struct {
	status int
	body   []byte
}

// request logs on if needed, sends the request, renews the session once
// when the HMC reports it expired, and converts error statuses to HTTPError.
func (s *HTTPSession) request(ctx context.Context, method, uri string, body any) (*response, error) {
	token := s.currentToken()
	if token == "" {
		if err := s.Logon(ctx); err != nil {
			return nil, err
		}
		token = s.currentToken()
	}

	resp, err := s.send(ctx, method, uri, body, token)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusForbidden && responseReason(resp) == reasonSessionExpired {
		s.log.Debug("hmc session expired, logging on again", zap.String("uri", uri))
		if err := s.Logon(ctx); err != nil {
			return nil, err
		}
		if resp, err = s.send(ctx, method, uri, body, s.currentToken()); err != nil {
			return nil, err
		}
	}
	if resp.status >= 400 {
		return nil, newHTTPError(method, uri, resp)
	}
	return resp, nil
}

func (s *HTTPSession) send(ctx context.Context, method, uri string, body any, token string) (*response, error) {
	reader, contentType, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+uri, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, uri, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set(SessionHeader, token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ConnectionError{Message: fmt.Sprintf("%s %s", method, s.baseURL+uri), Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectionError{Message: fmt.Sprintf("read response of %s %s", method, uri), Cause: err}
	}
	s.log.Debug("hmc request",
		zap.String("method", method),
		zap.String("uri", uri),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))
	return &response{status: resp.StatusCode, body: data}, nil
}

func (s *HTTPSession) currentToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case RawBody:
		ct := b.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		return bytes.NewReader(b.Data), ct, nil
	case *RawBody:
		return encodeBody(*b)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// decodeObject decodes a JSON object. An empty body yields a nil map.
func decodeObject(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &ParseError{Message: "response body is not a JSON object", Cause: err}
	}
	return out, nil
}

func newHTTPError(method, uri string, resp *response) *HTTPError {
	herr := &HTTPError{}
	if err := json.Unmarshal(resp.body, herr); err != nil || herr.HTTPStatus == 0 {
		herr = &HTTPError{Message: strings.TrimSpace(string(resp.body))}
	}
	herr.HTTPStatus = resp.status
	if herr.RequestMethod == "" {
		herr.RequestMethod = method
	}
	if herr.RequestURI == "" {
		herr.RequestURI = uri
	}
	if herr.Message == "" {
		herr.Message = http.StatusText(resp.status)
	}
	return herr
}

func responseReason(resp *response) int {
	var body struct {
		Reason int `json:"reason"`
	}
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return -1
	}
	return body.Reason
}

// asInt converts a decoded JSON number to int.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}
