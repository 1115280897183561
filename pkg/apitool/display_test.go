package apitool

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestDefaultDisplay(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"flat object sorted", `{"b":2,"a":"x","c":true}`, "a: x\nb: 2\nc: true"},
		{"nested values as json", `{"loc":{"lat":1.5},"tags":["a","b"]}`, "loc: {\"lat\":1.5}\ntags: [\"a\",\"b\"]"},
		{"raw_data skipped", `{"raw_data":{"big":1},"summary":"ok"}`, "summary: ok"},
		{"display wins", `{"display":"Ready","x":1}`, "Ready"},
		{"null value", `{"x":null}`, "x: null"},
		{"empty object", `{}`, "No data returned"},
		{"list", `[1,2,3]`, "Retrieved 3 items"},
		{"empty list", `[]`, "No items returned"},
		{"null", `null`, "No data returned"},
		{"scalar", `"plain"`, "plain"},
		{"number", `3.25`, "3.25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultDisplay(decode(t, tt.data)))
		})
	}
}

func TestFormatWeather(t *testing.T) {
	out, err := FormatWeather(decode(t, `{
		"location": {"name": "Paris", "country": "France"},
		"current": {"temp_c": 21.5, "condition": {"text": "Sunny"}, "humidity": 40}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "Weather for Paris, France:\n- Temperature: 21.5°C\n- Conditions: Sunny\n- Humidity: 40%", out)

	_, err = FormatWeather(decode(t, `{"current": {}}`))
	assert.ErrorIs(t, err, errUnexpectedShape)
	_, err = FormatWeather(decode(t, `[1]`))
	assert.ErrorIs(t, err, errUnexpectedShape)
}

func TestFormatStockQuote(t *testing.T) {
	out, err := FormatStockQuote(decode(t, `[{
		"symbol": "MSFT", "price": 410, "change": 3.5, "changesPercentage": 0.861,
		"previousClose": 406.5, "dayLow": 405, "dayHigh": 412.25, "volume": 1234567
	}]`))
	require.NoError(t, err)
	assert.Equal(t, "Stock Data for MSFT (Unknown):\n"+
		"- Price: $410.00\n"+
		"- Change: $3.50 (0.86%)\n"+
		"- Previous Close: $406.50\n"+
		"- Day Range: $405.00 - $412.25\n"+
		"- Volume: 1,234,567", out)

	_, err = FormatStockQuote(decode(t, `[]`))
	assert.ErrorIs(t, err, errUnexpectedShape)
	_, err = FormatStockQuote(decode(t, `[{"price": 1}]`))
	assert.ErrorIs(t, err, errUnexpectedShape)
}

func TestFormatCompanyProfile(t *testing.T) {
	out, err := FormatCompanyProfile(decode(t, `[{
		"companyName": "Apple Inc.", "symbol": "AAPL", "industry": "Consumer Electronics",
		"ceo": "Tim Cook", "mktCap": 3000000000000, "city": "Cupertino", "state": "CA"
	}]`))
	require.NoError(t, err)
	assert.Equal(t, "Company Profile: Apple Inc. (AAPL)\n"+
		"- Industry: Consumer Electronics\n"+
		"- CEO: Tim Cook\n"+
		"- Market Cap: $3,000,000,000,000\n"+
		"- Address: Cupertino, CA", out)
}

func TestFormatNewsDigest(t *testing.T) {
	out, err := FormatNewsDigest(decode(t, `{"articles": [
		{"title": "Rates hold", "publishedAt": "2024-05-01", "source": {"name": "Reuters"}, "url": "https://r.example/1"},
		{"publishedDate": "2024-05-02", "site": "FMP", "symbol": "AAPL"}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, "1. Rates hold\n   Published: 2024-05-01\n   Source: Reuters\n   URL: https://r.example/1\n\n"+
		"2. No Title\n   Published: 2024-05-02\n   Symbol: AAPL\n   Source: FMP\n   URL: #", out)

	_, err = FormatNewsDigest(decode(t, `{"articles": []}`))
	assert.ErrorIs(t, err, errUnexpectedShape)
}

func TestFormatNewsDigest_CapsAtFive(t *testing.T) {
	items := make([]any, 8)
	for i := range items {
		items[i] = map[string]any{"title": "t"}
	}
	out, err := FormatNewsDigest(items)
	require.NoError(t, err)
	assert.Contains(t, out, "5. t")
	assert.NotContains(t, out, "6. t")
}

func TestLookupFormatter(t *testing.T) {
	for _, name := range []string{FormatterWeather, FormatterStockQuote, FormatterCompanyProfile, FormatterNewsDigest} {
		f, ok := LookupFormatter(name)
		assert.True(t, ok, name)
		assert.NotNil(t, f)
	}
	_, ok := LookupFormatter("horoscope")
	assert.False(t, ok)
}

func TestSchemaValidate(t *testing.T) {
	s := Schema{
		"units": {Type: "string", Enum: []any{"metric", "imperial"}},
		"days":  {Type: "integer", Default: 1},
		"q":     {Type: "string", Required: true, MaxLength: 5},
	}
	assert.NoError(t, s.Validate(map[string]any{"q": "Oslo", "units": "metric", "days": float64(3)}))
	assert.ErrorContains(t, s.Validate(map[string]any{"q": "Oslo", "units": "kelvin"}), "not in allowed list")
	assert.ErrorContains(t, s.Validate(map[string]any{"q": "Reykjavik"}), "too long")
	assert.ErrorContains(t, s.Validate(map[string]any{"units": "metric"}), "missing required parameter: q")

	filled := s.WithDefaults(map[string]any{"q": "Oslo"})
	assert.Equal(t, 1, filled["days"])
	_, hasUnits := filled["units"]
	assert.False(t, hasUnits)
}

func TestParseAuthScheme(t *testing.T) {
	tests := map[string]AuthScheme{
		"":                    AuthNone,
		"None":                AuthNone,
		"Bearer":              AuthBearer,
		"api-key":             AuthHeaderKey,
		"X-API-Key":           AuthHeaderKey,
		"Query-Key":           AuthQueryKey,
		"Query-Param-apikey":  AuthQueryAPIKey,
		"query-param-api_key": AuthQueryAPIKeyUnderscore,
		"RapidAPI":            AuthRapidAPI,
	}
	for in, want := range tests {
		got, err := ParseAuthScheme(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseAuthScheme("oauth2")
	assert.Error(t, err)
}

func TestEnvelopeText(t *testing.T) {
	ok := success(map[string]any{}, "fine")
	assert.Equal(t, "fine", ok.Text())

	bad := failure(KindAuth, CodeAuth, "no key", "set KEY")
	assert.Equal(t, "no key (set KEY)", bad.Text())
	assert.Contains(t, bad.JSON(), `"code":"AUTH001"`)
}
