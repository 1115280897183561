package apitool

import (
	"regexp"
	"time"
)

// Defaults applied when a Descriptor leaves a field unset.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryBase  = time.Second
	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 10 << 20
)

// Descriptor declares an HTTP API tool. It is immutable once a Tool is
// built from it.
type Descriptor struct {
	// Name is the logical tool name, e.g. "WeatherAPI".
	Name string `yaml:"name"`
	// Endpoint is the base URL. Path segments like {symbol} are filled from
	// parameters of the same name.
	Endpoint string `yaml:"endpoint"`
	// CredentialEnv names the environment variable holding the API key.
	CredentialEnv string `yaml:"credential_env,omitempty"`
	// Auth selects where the key goes.
	Auth AuthScheme `yaml:"auth,omitempty"`
	// Header overrides the header name for the api-key scheme.
	Header string `yaml:"header,omitempty"`
	// Description is shown to the model.
	Description string `yaml:"description,omitempty"`
	// Params declares accepted inputs.
	Params Schema `yaml:"params,omitempty"`
	// Formatter names a built-in display formatter.
	Formatter string `yaml:"formatter,omitempty"`

	// Timeout bounds each attempt (default 30s).
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// MaxRetries is the number of retries after the first attempt for
	// timeouts and connection failures (default 2; 0 disables retries).
	MaxRetries *int `yaml:"max_retries,omitempty"`
	// RetryBase is the first retry delay; later delays double (default 1s).
	RetryBase time.Duration `yaml:"retry_base,omitempty"`
	// MinKeyLength rejects shorter credentials before any request (default 0).
	MinKeyLength int `yaml:"min_key_length,omitempty"`

	// RateLimit caps requests per second; Burst allows short spikes.
	RateLimit float64 `yaml:"rate_limit,omitempty"`
	Burst     int     `yaml:"burst,omitempty"`
}

// Retries returns a pointer for Descriptor.MaxRetries.
func Retries(n int) *int { return &n }

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// pathParams lists the {name} placeholders in the endpoint.
func (d Descriptor) pathParams() []string {
	matches := placeholderRe.FindAllStringSubmatch(d.Endpoint, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

func (d Descriptor) withDefaults() Descriptor {
	if d.Auth == "" {
		d.Auth = AuthNone
	}
	if d.Timeout <= 0 {
		d.Timeout = DefaultTimeout
	}
	if d.MaxRetries == nil {
		d.MaxRetries = Retries(DefaultMaxRetries)
	}
	if d.RetryBase <= 0 {
		d.RetryBase = DefaultRetryBase
	}
	return d
}
