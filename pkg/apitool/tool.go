// Package apitool turns declarative HTTP API descriptions into uniform,
// model-callable tools. Every call returns an Envelope; transport failures
// are retried with exponential backoff, HTTP errors are reported without
// retrying, and credentials are checked before any request is sent.
package apitool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kenton-research/kenton/internal/logger"
	"github.com/kenton-research/kenton/pkg/observability"
	"github.com/kenton-research/kenton/pkg/security"
)

const userAgent = "kenton/1.0"

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Tool is a callable HTTP API. It is safe for concurrent use.
type Tool struct {
	desc       Descriptor
	endpoint   *url.URL
	pathParams []string
	credential string
	client     HTTPDoer
	formatter  Formatter
	limiter    *security.ToolRateLimiter
}

// Option configures a Tool.
type Option func(*toolOptions)

type toolOptions struct {
	client     HTTPDoer
	lookupEnv  func(string) (string, bool)
	credential *string
	formatter  Formatter
	policy     *security.EndpointPolicy
	limiter    *security.ToolRateLimiter
}

// WithHTTPClient sets the HTTP client (default: a plain *http.Client; the
// per-attempt timeout comes from the descriptor).
func WithHTTPClient(c HTTPDoer) Option {
	return func(o *toolOptions) { o.client = c }
}

// WithLookupEnv replaces os.LookupEnv for credential resolution.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(o *toolOptions) { o.lookupEnv = fn }
}

// WithCredential supplies the key directly instead of reading CredentialEnv.
func WithCredential(key string) Option {
	return func(o *toolOptions) { o.credential = &key }
}

// WithFormatter overrides the descriptor's display formatter.
func WithFormatter(f Formatter) Option {
	return func(o *toolOptions) { o.formatter = f }
}

// WithEndpointPolicy sets the endpoint policy (default: security.DefaultEndpointPolicy).
func WithEndpointPolicy(p security.EndpointPolicy) Option {
	return func(o *toolOptions) { o.policy = &p }
}

// WithRateLimiter shares a limiter across tools. The descriptor's RateLimit
// is registered on it.
func WithRateLimiter(l *security.ToolRateLimiter) Option {
	return func(o *toolOptions) { o.limiter = l }
}

// New builds a Tool from a descriptor. Invalid names, endpoints, auth
// schemes and formatter names are configuration errors. A missing
// credential is only logged: the tool is built and its calls fail with an
// authentication error.
func New(desc Descriptor, opts ...Option) (*Tool, error) {
	o := toolOptions{lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}

	desc = desc.withDefaults()
	desc.Name = strings.TrimSpace(desc.Name)
	if desc.Name == "" {
		return nil, errors.New("tool name is required")
	}
	auth, err := ParseAuthScheme(string(desc.Auth))
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", desc.Name, err)
	}
	desc.Auth = auth

	policy := security.DefaultEndpointPolicy()
	if o.policy != nil {
		policy = *o.policy
	}
	endpoint, err := policy.ValidateEndpoint(desc.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", desc.Name, err)
	}

	t := &Tool{
		desc:       desc,
		endpoint:   endpoint,
		pathParams: desc.pathParams(),
		client:     o.client,
		limiter:    o.limiter,
	}
	if t.client == nil {
		t.client = &http.Client{}
	}

	switch {
	case o.formatter != nil:
		t.formatter = o.formatter
	case desc.Formatter != "":
		f, ok := LookupFormatter(desc.Formatter)
		if !ok {
			return nil, fmt.Errorf("tool %s: unknown formatter %q", desc.Name, desc.Formatter)
		}
		t.formatter = f
	}

	if desc.Auth.RequiresKey() {
		switch {
		case o.credential != nil:
			t.credential = *o.credential
		case desc.CredentialEnv == "":
			return nil, fmt.Errorf("tool %s: auth scheme %s requires credential_env", desc.Name, desc.Auth)
		default:
			t.credential, _ = o.lookupEnv(desc.CredentialEnv)
		}
		if t.credential == "" {
			logger.Warn("API credential not set; calls will fail until it is configured",
				zap.String("tool", desc.Name),
				zap.String("env", desc.CredentialEnv),
			)
		}
	}

	if t.limiter != nil && desc.RateLimit > 0 {
		t.limiter.SetToolLimit(desc.Name, desc.RateLimit, desc.Burst)
	}

	logger.Debug("API tool ready",
		zap.String("tool", desc.Name),
		zap.String("endpoint", endpoint.Redacted()),
		zap.String("auth", string(desc.Auth)),
		zap.String("credential", security.MaskSecret(t.credential)),
	)
	return t, nil
}

// Name returns the logical tool name.
func (t *Tool) Name() string { return t.desc.Name }

// Description returns the model-facing description.
func (t *Tool) Description() string { return t.desc.Description }

// Descriptor returns a copy of the effective descriptor.
func (t *Tool) Descriptor() Descriptor { return t.desc }

// HasCredential reports whether a usable credential was resolved.
func (t *Tool) HasCredential() bool {
	if !t.desc.Auth.RequiresKey() {
		return true
	}
	return security.CheckCredential(t.credential, t.desc.MinKeyLength) == nil
}

// FunctionName is the name exposed to the model: lower case with anything
// outside [a-z0-9_-] replaced by '_'.
func (t *Tool) FunctionName() string {
	return functionName(t.desc.Name)
}

func functionName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}

// Definition describes the tool to a model.
func (t *Tool) Definition() Definition {
	schema := t.desc.Params
	if len(t.pathParams) > 0 {
		schema = make(Schema, len(t.desc.Params)+len(t.pathParams))
		for k, v := range t.desc.Params {
			schema[k] = v
		}
		for _, p := range t.pathParams {
			if _, ok := schema[p]; !ok {
				schema[p] = Param{Type: "string", Required: true}
			}
		}
	}
	return Definition{
		Name:         t.desc.Name,
		FunctionName: t.FunctionName(),
		Description:  t.desc.Description,
		Parameters:   schema.JSONSchema(),
	}
}

// Definition is the model-facing shape of a tool.
type Definition struct {
	Name         string
	FunctionName string
	Description  string
	Parameters   map[string]any
}

// Call performs one logical invocation.
func (t *Tool) Call(ctx context.Context, params map[string]any) Envelope {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "apitool.call", attribute.String("tool.name", t.desc.Name))
	defer span.End()

	env := t.call(ctx, params)

	span.SetAttributes(
		attribute.String("tool.status", string(env.Status)),
		attribute.Int("tool.attempts", env.Attempts),
	)
	label := string(env.Status)
	if !env.OK() {
		span.SetStatus(codes.Error, env.Error)
		label = string(env.Kind)
	} else if env.Degraded {
		label = "degraded"
	}
	observability.RecordToolCall(t.desc.Name, label, time.Since(start))
	return env
}

func (t *Tool) call(ctx context.Context, params map[string]any) Envelope {
	name := t.desc.Name
	if params == nil {
		params = map[string]any{}
	}

	if err := t.desc.Params.Validate(params); err != nil {
		return failure(KindValidation, CodeValidation,
			fmt.Sprintf("%s: %v", name, err), "supply every required parameter with a non-empty value")
	}
	params = t.desc.Params.WithDefaults(params)

	if t.desc.Auth.RequiresKey() {
		if err := security.CheckCredential(t.credential, t.desc.MinKeyLength); err != nil {
			hint := "provide a valid API key"
			if t.desc.CredentialEnv != "" {
				hint = "set " + t.desc.CredentialEnv + " to a valid API key"
			}
			return failure(KindAuth, CodeAuth, fmt.Sprintf("%s credential unavailable: %v", name, err), hint)
		}
	}

	target, err := t.buildURL(params)
	if err != nil {
		return failure(KindValidation, CodeValidation, fmt.Sprintf("%s: %v", name, err), "")
	}

	if t.limiter != nil && !t.limiter.Allow(name) {
		logger.Debug("API tool throttled, waiting for rate limit", zap.String("tool", name))
		if err := t.limiter.Wait(ctx, name); err != nil {
			return failure(KindRateLimited, CodeRateLimited,
				fmt.Sprintf("%s: rate limit wait aborted: %v", name, err), "retry later")
		}
	}

	headers := http.Header{}
	headers.Set("Accept", "application/json")
	headers.Set("User-Agent", userAgent)
	query := target.Query()
	t.desc.Auth.apply(headers, query, t.endpoint, t.credential, t.desc.Header)
	target.RawQuery = query.Encode()

	resp, attempts, err := t.send(ctx, target.String(), headers)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			env := t.httpFailure(se)
			env.Attempts = attempts
			return env
		}

		msg := security.RedactSecrets(err.Error(), t.credential, url.QueryEscape(t.credential))
		logger.Error("API request failed",
			zap.String("tool", name),
			zap.Int("attempts", attempts),
			zap.String("error", msg),
		)
		env := failure(KindNetwork, CodeNetwork,
			fmt.Sprintf("%s request failed after %d attempts: %s", name, attempts, msg),
			"check network connectivity and the endpoint")
		env.Attempts = attempts
		return env
	}

	var data any
	if err := json.Unmarshal(resp.body, &data); err != nil {
		logger.Warn("API returned a non-JSON body",
			zap.String("tool", name),
			zap.Int("status", resp.status),
			zap.Error(err),
		)
		data = map[string]any{"response": string(resp.body)}
		env := success(data, DefaultDisplay(data))
		env.Degraded = true
		env.Kind = KindMalformed
		env.Code = CodeMalformed
		env.Attempts = attempts
		return env
	}

	env := success(data, t.display(data))
	env.Attempts = attempts
	return env
}

func (t *Tool) display(data any) string {
	if t.formatter == nil {
		return DefaultDisplay(data)
	}
	text, err := t.formatter(data)
	if err != nil || text == "" {
		logger.Warn("display formatter failed, using default display",
			zap.String("tool", t.desc.Name),
			zap.Error(err),
		)
		return DefaultDisplay(data)
	}
	return text
}

// buildURL fills path placeholders and merges the remaining params into the
// query string. Endpoint query parameters are kept.
func (t *Tool) buildURL(params map[string]any) (*url.URL, error) {
	raw := t.desc.Endpoint
	consumed := make(map[string]bool, len(t.pathParams))
	for _, p := range t.pathParams {
		val, ok := params[p]
		s := ""
		if ok && val != nil {
			s = strings.TrimSpace(queryValue(val))
		}
		if s == "" {
			return nil, fmt.Errorf("missing required path parameter: %s", p)
		}
		raw = strings.ReplaceAll(raw, "{"+p+"}", url.PathEscape(s))
		consumed[p] = true
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("build URL: %w", err)
	}

	q := u.Query()
	for k, v := range params {
		if consumed[k] || v == nil {
			continue
		}
		q.Set(k, queryValue(v))
	}
	u.RawQuery = q.Encode()
	return u, nil
}

type response struct {
	status int
	body   []byte
}

// statusError is a non-2xx response. It is never retried.
type statusError struct {
	status int
	body   []byte
}

func (e *statusError) Error() string {
	return "HTTP " + strconv.Itoa(e.status)
}

// send runs the request with retries. Timeouts and connection failures are
// retried up to MaxRetries times, sleeping RetryBase*2^n between attempts.
// The try cap is the only budget; there is no total elapsed-time limit.
func (t *Tool) send(ctx context.Context, target string, headers http.Header) (*response, int, error) {
	retries := *t.desc.MaxRetries
	if retries < 0 {
		retries = 0
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.desc.RetryBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = max(5*time.Minute, t.desc.RetryBase)

	attempts := 0
	op := func() (*response, error) {
		attempts++
		return t.attempt(ctx, target, headers)
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(retries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			observability.RecordToolRetry(t.desc.Name)
			logger.Warn("API request failed, retrying",
				zap.String("tool", t.desc.Name),
				zap.Int("attempt", attempts),
				zap.Int("max_retries", retries),
				zap.Duration("delay", next),
				zap.String("error", security.RedactSecrets(err.Error(), t.credential, url.QueryEscape(t.credential))),
			)
		}),
	)
	return resp, attempts, err
}

func (t *Tool) attempt(ctx context.Context, target string, headers http.Header) (*response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, t.desc.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header = headers.Clone()

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, backoff.Permanent(&statusError{status: resp.StatusCode, body: body})
	}
	return &response{status: resp.StatusCode, body: body}, nil
}

func (t *Tool) httpFailure(se *statusError) Envelope {
	msg, parsed := errorMessage(se.body, se.status)
	logger.Warn("API returned an error status",
		zap.String("tool", t.desc.Name),
		zap.Int("status", se.status),
		zap.String("message", msg),
	)

	env := failure(KindHTTP, "HTTP"+strconv.Itoa(se.status),
		fmt.Sprintf("%s error: HTTP %d: %s", t.desc.Name, se.status, msg), statusHint(se.status, t.desc.CredentialEnv))
	env.StatusCode = se.status
	env.Data = parsed
	return env
}

// errorMessage extracts a readable message from an error body.
func errorMessage(body []byte, status int) (string, any) {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err == nil {
		if m, ok := parsed.(map[string]any); ok {
			switch e := m["error"].(type) {
			case map[string]any:
				if msg := str(e, "message"); msg != "" {
					return msg, parsed
				}
			case string:
				if e != "" {
					return e, parsed
				}
			}
			for _, k := range []string{"message", "error_message", "detail", "Error Message"} {
				if msg := str(m, k); msg != "" {
					return msg, parsed
				}
			}
		}
	}

	text := strings.TrimSpace(string(body))
	if text != "" {
		if r := []rune(text); len(r) > 500 {
			text = string(r[:500]) + "..."
		}
		if parsed == nil {
			parsed = text
		}
		return text, parsed
	}
	return http.StatusText(status), parsed
}

func statusHint(status int, credentialEnv string) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if credentialEnv != "" {
			return "the provider rejected the credential in " + credentialEnv
		}
		return "the provider rejected the request credentials"
	case status == http.StatusNotFound:
		return "check the request parameters"
	case status == http.StatusTooManyRequests:
		return "the provider is rate limiting; retry later"
	case status >= 500:
		return "the provider failed; retry later"
	}
	return ""
}
