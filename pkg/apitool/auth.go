package apitool

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"
)

// AuthScheme selects where a tool's credential is placed on the request.
type AuthScheme string

const (
	// AuthNone sends no credential.
	AuthNone AuthScheme = "none"
	// AuthBearer sends "Authorization: Bearer <key>".
	AuthBearer AuthScheme = "bearer"
	// AuthHeaderKey sends the key in X-API-Key or the descriptor's Header.
	AuthHeaderKey AuthScheme = "api-key"
	// AuthQueryKey sends the key as the "key" query parameter.
	AuthQueryKey AuthScheme = "query-key"
	// AuthQueryAPIKey sends the key as the "apikey" query parameter.
	AuthQueryAPIKey AuthScheme = "query-apikey"
	// AuthQueryAPIKeyUnderscore sends the key as the "api_key" query parameter.
	AuthQueryAPIKeyUnderscore AuthScheme = "query-api_key"
	// AuthRapidAPI sends X-RapidAPI-Key plus X-RapidAPI-Host.
	AuthRapidAPI AuthScheme = "rapidapi"
)

// DefaultKeyHeader is the header used by AuthHeaderKey.
const DefaultKeyHeader = "X-API-Key"

var authAliases = map[string]AuthScheme{
	"":                    AuthNone,
	"none":                AuthNone,
	"bearer":              AuthBearer,
	"api-key":             AuthHeaderKey,
	"x-api-key":           AuthHeaderKey,
	"header":              AuthHeaderKey,
	"query-key":           AuthQueryKey,
	"query-apikey":        AuthQueryAPIKey,
	"query-param-apikey":  AuthQueryAPIKey,
	"query-api_key":       AuthQueryAPIKeyUnderscore,
	"query-param-api_key": AuthQueryAPIKeyUnderscore,
	"rapidapi":            AuthRapidAPI,
	"x-rapidapi-key":      AuthRapidAPI,
}

// ParseAuthScheme maps a scheme tag, including the legacy spellings used in
// tool catalogs, to an AuthScheme.
func ParseAuthScheme(s string) (AuthScheme, error) {
	scheme, ok := authAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown auth scheme %q", s)
	}
	return scheme, nil
}

// UnmarshalYAML accepts any spelling ParseAuthScheme understands.
func (s *AuthScheme) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseAuthScheme(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// RequiresKey reports whether the scheme needs a credential.
func (s AuthScheme) RequiresKey() bool {
	return s != AuthNone && s != ""
}

// QueryParam returns the query parameter name for query schemes.
func (s AuthScheme) QueryParam() string {
	switch s {
	case AuthQueryKey:
		return "key"
	case AuthQueryAPIKey:
		return "apikey"
	case AuthQueryAPIKeyUnderscore:
		return "api_key"
	}
	return ""
}

// apply places key on the outgoing request.
func (s AuthScheme) apply(h http.Header, q url.Values, endpoint *url.URL, key, header string) {
	switch s {
	case AuthBearer:
		h.Set("Authorization", "Bearer "+key)
	case AuthHeaderKey:
		if header == "" {
			header = DefaultKeyHeader
		}
		h.Set(header, key)
	case AuthQueryKey, AuthQueryAPIKey, AuthQueryAPIKeyUnderscore:
		q.Set(s.QueryParam(), key)
	case AuthRapidAPI:
		h.Set("X-RapidAPI-Key", key)
		h.Set("X-RapidAPI-Host", endpoint.Hostname())
	}
}
