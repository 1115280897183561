package apitool

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errUnexpectedShape = errors.New("unexpected response shape")

// FormatWeather renders a current-conditions payload with "location" and
// "current" objects. Missing fields are skipped.
func FormatWeather(data any) (string, error) {
	root, ok := data.(map[string]any)
	if !ok {
		return "", errUnexpectedShape
	}
	loc, okLoc := root["location"].(map[string]any)
	cur, okCur := root["current"].(map[string]any)
	if !okLoc || !okCur {
		return "", fmt.Errorf("%w: missing location or current", errUnexpectedShape)
	}

	place := joinNonEmpty(", ", str(loc, "name"), str(loc, "region"), str(loc, "country"))
	var b strings.Builder
	fmt.Fprintf(&b, "Weather for %s:", place)

	if t := pair(cur, "temp_c", "°C", "temp_f", "°F"); t != "" {
		b.WriteString("\n- Temperature: " + t)
	}
	if c, ok := cur["condition"].(map[string]any); ok && str(c, "text") != "" {
		b.WriteString("\n- Conditions: " + str(c, "text"))
	}
	if w := num(cur, "wind_kph"); w != "" {
		line := "\n- Wind: " + w + " kph"
		if dir := str(cur, "wind_dir"); dir != "" {
			line += " (" + dir + ")"
		}
		b.WriteString(line)
	}
	if h := num(cur, "humidity"); h != "" {
		b.WriteString("\n- Humidity: " + h + "%")
	}
	if f := pair(cur, "feelslike_c", "°C", "feelslike_f", "°F"); f != "" {
		b.WriteString("\n- Feels like: " + f)
	}
	return b.String(), nil
}

// FormatStockQuote renders the first quote of a quote list.
func FormatStockQuote(data any) (string, error) {
	q, err := firstObject(data)
	if err != nil {
		return "", err
	}
	symbol := str(q, "symbol")
	if symbol == "" {
		return "", fmt.Errorf("%w: quote without symbol", errUnexpectedShape)
	}

	name := str(q, "name")
	if name == "" {
		name = "Unknown"
	}

	lines := []string{fmt.Sprintf("Stock Data for %s (%s):", symbol, name)}
	lines = appendIf(lines, "- Price: $", money(q, "price"))
	if ch := money(q, "change"); ch != "" {
		line := "- Change: $" + ch
		if pct := fixed(q, "changesPercentage", 2); pct != "" {
			line += " (" + pct + "%)"
		}
		lines = append(lines, line)
	}
	lines = appendIf(lines, "- Previous Close: $", money(q, "previousClose"))
	if lo, hi := money(q, "dayLow"), money(q, "dayHigh"); lo != "" && hi != "" {
		lines = append(lines, "- Day Range: $"+lo+" - $"+hi)
	}
	if lo, hi := money(q, "yearLow"), money(q, "yearHigh"); lo != "" && hi != "" {
		lines = append(lines, "- 52 Week Range: $"+lo+" - $"+hi)
	}
	lines = appendIf(lines, "- Market Cap: $", grouped(q, "marketCap"))
	lines = appendIf(lines, "- Volume: ", grouped(q, "volume"))
	lines = appendIf(lines, "- Average Volume: ", grouped(q, "avgVolume"))
	lines = appendIf(lines, "- Exchange: ", str(q, "exchange"))
	return strings.Join(lines, "\n"), nil
}

// FormatCompanyProfile renders the first profile of a profile list.
func FormatCompanyProfile(data any) (string, error) {
	p, err := firstObject(data)
	if err != nil {
		return "", err
	}
	company := str(p, "companyName")
	if company == "" {
		return "", fmt.Errorf("%w: profile without companyName", errUnexpectedShape)
	}

	desc := str(p, "description")
	if r := []rune(desc); len(r) > 300 {
		desc = string(r[:300]) + "..."
	}

	lines := []string{fmt.Sprintf("Company Profile: %s (%s)", company, str(p, "symbol"))}
	lines = appendIf(lines, "- Industry: ", str(p, "industry"))
	lines = appendIf(lines, "- Sector: ", str(p, "sector"))
	lines = appendIf(lines, "- CEO: ", str(p, "ceo"))
	lines = appendIf(lines, "- Website: ", str(p, "website"))
	lines = appendIf(lines, "- Description: ", desc)
	lines = appendIf(lines, "- Employees: ", str(p, "fullTimeEmployees"))
	lines = appendIf(lines, "- Market Cap: $", grouped(p, "mktCap"))
	lines = appendIf(lines, "- Price: $", money(p, "price"))
	lines = appendIf(lines, "- Exchange: ", str(p, "exchange"))
	lines = appendIf(lines, "- Currency: ", str(p, "currency"))
	lines = appendIf(lines, "- Country: ", str(p, "country"))
	lines = appendIf(lines, "- Address: ", joinNonEmpty(", ", str(p, "address"), str(p, "city"), str(p, "state")))
	lines = appendIf(lines, "- IPO Date: ", str(p, "ipoDate"))
	return strings.Join(lines, "\n"), nil
}

// FormatNewsDigest renders up to five articles from a list, or from the
// "articles" field of an object.
func FormatNewsDigest(data any) (string, error) {
	var items []any
	switch v := data.(type) {
	case []any:
		items = v
	case map[string]any:
		items, _ = v["articles"].([]any)
	}
	if len(items) == 0 {
		return "", fmt.Errorf("%w: no articles", errUnexpectedShape)
	}
	if len(items) > 5 {
		items = items[:5]
	}

	var blocks []string
	for i, it := range items {
		a, ok := it.(map[string]any)
		if !ok {
			continue
		}
		title := orDefault(str(a, "title"), "No Title")
		published := orDefault(firstNonEmpty(str(a, "publishedDate"), str(a, "publishedAt")), "Unknown date")
		source := str(a, "site")
		if src, ok := a["source"].(map[string]any); ok && source == "" {
			source = str(src, "name")
		}

		lines := []string{
			fmt.Sprintf("%d. %s", i+1, title),
			"   Published: " + published,
		}
		if sym := str(a, "symbol"); sym != "" {
			lines = append(lines, "   Symbol: "+sym)
		}
		lines = append(lines,
			"   Source: "+orDefault(source, "Unknown source"),
			"   URL: "+orDefault(str(a, "url"), "#"),
		)
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	if len(blocks) == 0 {
		return "", fmt.Errorf("%w: no readable articles", errUnexpectedShape)
	}
	return strings.Join(blocks, "\n\n"), nil
}

func firstObject(data any) (map[string]any, error) {
	switch v := data.(type) {
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty list", errUnexpectedShape)
		}
		if m, ok := v[0].(map[string]any); ok {
			return m, nil
		}
	case map[string]any:
		return v, nil
	}
	return nil, errUnexpectedShape
}

func str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return queryValue(v)
	}
}

func num(m map[string]any, key string) string {
	if f, ok := toFloat(m[key]); ok {
		return queryValue(f)
	}
	return ""
}

func fixed(m map[string]any, key string, prec int) string {
	if f, ok := toFloat(m[key]); ok {
		return strconv.FormatFloat(f, 'f', prec, 64)
	}
	return ""
}

func money(m map[string]any, key string) string { return fixed(m, key, 2) }

// grouped formats an integral amount with thousands separators.
func grouped(m map[string]any, key string) string {
	f, ok := toFloat(m[key])
	if !ok {
		return ""
	}
	digits := strconv.FormatFloat(f, 'f', 0, 64)
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func pair(m map[string]any, k1, u1, k2, u2 string) string {
	a, b := num(m, k1), num(m, k2)
	switch {
	case a != "" && b != "":
		return a + u1 + " / " + b + u2
	case a != "":
		return a + u1
	case b != "":
		return b + u2
	}
	return ""
}

func appendIf(lines []string, prefix, value string) []string {
	if value == "" {
		return lines
	}
	return append(lines, prefix+value)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
