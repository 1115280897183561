package apitool

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Formatter renders decoded response data as human-readable text. An error
// means the data did not have the expected shape; callers fall back to
// DefaultDisplay.
type Formatter func(data any) (string, error)

// Built-in formatter names usable in tool catalogs.
const (
	FormatterWeather        = "weather"
	FormatterStockQuote     = "stock_quote"
	FormatterCompanyProfile = "company_profile"
	FormatterNewsDigest     = "news_digest"
)

var formatters = map[string]Formatter{
	FormatterWeather:        FormatWeather,
	FormatterStockQuote:     FormatStockQuote,
	FormatterCompanyProfile: FormatCompanyProfile,
	FormatterNewsDigest:     FormatNewsDigest,
}

// LookupFormatter returns a built-in formatter by name.
func LookupFormatter(name string) (Formatter, bool) {
	f, ok := formatters[name]
	return f, ok
}

// DefaultDisplay renders data without domain knowledge. Objects become one
// "key: value" line per top-level key in key order, lists are counted, and
// anything else is printed as is. An object's own "display" string wins.
func DefaultDisplay(data any) string {
	switch v := data.(type) {
	case map[string]any:
		if d, ok := v["display"].(string); ok && d != "" {
			return d
		}
		if len(v) == 0 {
			return "No data returned"
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			if k == "raw_data" {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, k+": "+displayValue(v[k]))
		}
		return strings.Join(lines, "\n")

	case []any:
		if len(v) == 0 {
			return "No items returned"
		}
		return fmt.Sprintf("Retrieved %d items", len(v))

	case nil:
		return "No data returned"
	}
	return displayValue(data)
}

func displayValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return "null"
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
	return queryValue(v)
}
