package apitool

import (
	"fmt"
	"os"

	"github.com/kenton-research/kenton/pkg/security"
)

// Catalog is the on-disk form of a tool list:
//
//	apis:
//	  - name: WeatherAPI
//	    endpoint: https://api.weatherapi.com/v1/current.json
//	    credential_env: WEATHER_API_KEY
//	    auth: query-key
type Catalog struct {
	APIs []Descriptor `yaml:"apis"`
}

// LoadCatalog reads descriptors from a YAML file.
func LoadCatalog(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes descriptors from YAML. Unknown keys are rejected.
func ParseCatalog(data []byte) ([]Descriptor, error) {
	var c Catalog
	if err := security.DecodeYAML(data, &c, security.DefaultYAMLLimits()); err != nil {
		return nil, fmt.Errorf("parse tool catalog: %w", err)
	}
	if len(c.APIs) == 0 {
		return nil, fmt.Errorf("parse tool catalog: no apis defined")
	}
	return c.APIs, nil
}

// BuildRegistry constructs every descriptor and registers the tools. The
// first invalid descriptor aborts the build.
func BuildRegistry(descs []Descriptor, opts ...Option) (*Registry, error) {
	tools := make([]*Tool, 0, len(descs))
	for i, d := range descs {
		t, err := New(d, opts...)
		if err != nil {
			name := d.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("build tool %s: %w", name, err)
		}
		tools = append(tools, t)
	}

	reg := NewRegistry()
	if err := reg.Register(tools...); err != nil {
		return nil, err
	}
	return reg, nil
}

const fmpBase = "https://financialmodelingprep.com/api/v3"

// DefaultCatalog returns the built-in research tools.
func DefaultCatalog() []Descriptor {
	return []Descriptor{
		{
			Name:          "WeatherAPI",
			Endpoint:      "https://api.weatherapi.com/v1/current.json",
			CredentialEnv: "WEATHER_API_KEY",
			Auth:          AuthQueryKey,
			Description:   "Get current weather conditions for any location. Always use this for weather queries.",
			Formatter:     FormatterWeather,
			Params: Schema{
				"q": {Type: "string", Description: "City name, postcode or lat,lon", Required: true},
			},
		},
		{
			Name:          "NewsAPI",
			Endpoint:      "https://newsapi.org/v2/everything",
			CredentialEnv: "NEWS_API_KEY",
			Auth:          AuthBearer,
			Description:   "Fetch recent news articles on a topic. Use for news-related queries.",
			Formatter:     FormatterNewsDigest,
			Params: Schema{
				"q":        {Type: "string", Description: "Keywords or phrase to search for", Required: true},
				"pageSize": {Type: "integer", Description: "Number of articles", Default: 5},
				"sortBy":   {Type: "string", Description: "Sort order", Enum: []any{"relevancy", "popularity", "publishedAt"}},
			},
		},
		{
			Name:          "MarketDataAPI",
			Endpoint:      fmpBase + "/quote/{symbol}",
			CredentialEnv: "MARKET_DATA_KEY",
			Auth:          AuthQueryAPIKey,
			Description:   "Get real-time stock quotes and market indicators for a ticker symbol.",
			Formatter:     FormatterStockQuote,
			Params: Schema{
				"symbol": {Type: "string", Description: "Ticker symbol, e.g. AAPL", Required: true, MaxLength: 16},
			},
		},
		{
			Name:          "CompanyProfile",
			Endpoint:      fmpBase + "/profile/{symbol}",
			CredentialEnv: "MARKET_DATA_KEY",
			Auth:          AuthQueryAPIKey,
			Description:   "Get a company's profile: industry, sector, CEO, market cap and description.",
			Formatter:     FormatterCompanyProfile,
			Params: Schema{
				"symbol": {Type: "string", Description: "Ticker symbol, e.g. MSFT", Required: true, MaxLength: 16},
			},
		},
		{
			Name:          "MarketNews",
			Endpoint:      fmpBase + "/stock_news",
			CredentialEnv: "MARKET_DATA_KEY",
			Auth:          AuthQueryAPIKey,
			Description:   "Get news articles about specific stocks.",
			Formatter:     FormatterNewsDigest,
			Params: Schema{
				"tickers": {Type: "string", Description: "Comma-separated ticker symbols, e.g. AAPL,MSFT"},
				"limit":   {Type: "integer", Description: "Maximum number of articles", Default: 10},
			},
		},
		{
			Name:          "FredAPI",
			Endpoint:      "https://api.stlouisfed.org/fred/series/observations",
			CredentialEnv: "FRED_KEY",
			Auth:          AuthQueryAPIKeyUnderscore,
			Description:   "Access Federal Reserve Economic Data for U.S. macroeconomic indicators.",
			Params: Schema{
				"series_id":  {Type: "string", Description: "FRED series id, e.g. GDP or UNRATE", Required: true},
				"file_type":  {Type: "string", Default: "json", Enum: []any{"json"}},
				"limit":      {Type: "integer", Description: "Maximum observations", Default: 10},
				"sort_order": {Type: "string", Default: "desc", Enum: []any{"asc", "desc"}},
			},
		},
		{
			Name:        "GDELTAPI",
			Endpoint:    "https://api.gdeltproject.org/api/v2/doc/doc",
			Auth:        AuthNone,
			Description: "Global news and event monitoring for trends and events. Do not use for weather queries.",
			Params: Schema{
				"query":      {Type: "string", Description: "Search query", Required: true},
				"mode":       {Type: "string", Default: "artlist"},
				"format":     {Type: "string", Default: "json"},
				"maxrecords": {Type: "integer", Default: 10},
			},
		},
	}
}
