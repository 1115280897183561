package session

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxTopics = 5

// FormatHistory renders entries as prompt context. Each exchange becomes a
// "User: <query>" line followed by an "Assistant: <response>" line, with the
// response cut to budget runes and suffixed with "..." when cut.
func FormatHistory(entries []ConversationEntry, budget int) string {
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("User: ")
		b.WriteString(singleLine(e.Query))
		b.WriteString("\nAssistant: ")
		b.WriteString(truncate(singleLine(e.Response), budget))
	}
	return b.String()
}

// singleLine folds embedded newlines so each turn stays on one line.
func singleLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, budget int) string {
	if budget <= 0 || utf8.RuneCountInString(s) <= budget {
		return s
	}
	runes := []rune(s)
	return string(runes[:budget]) + "..."
}

// Summarize builds a Summary from a session's entries.
func Summarize(sessionID string, entries []ConversationEntry) Summary {
	sum := Summary{
		SessionID:      sessionID,
		TotalExchanges: len(entries),
		ModelsUsed:     []string{},
		Topics:         []string{},
	}
	if len(entries) == 0 {
		return sum
	}

	start := entries[0].Timestamp
	last := entries[len(entries)-1].Timestamp
	sum.StartTime = &start
	sum.LastActivity = &last
	sum.DurationMinutes = last.Sub(start).Minutes()

	seenModel := make(map[string]bool)
	for _, e := range entries {
		if e.Model != "" && !seenModel[e.Model] {
			seenModel[e.Model] = true
			sum.ModelsUsed = append(sum.ModelsUsed, e.Model)
		}
	}

	queries := make([]string, len(entries))
	for i, e := range entries {
		queries[i] = e.Query
	}
	sum.Topics = ExtractTopics(queries, maxTopics)
	return sum
}

// ExtractTopics picks capitalized words longer than three characters and
// capitalized two-word phrases from queries, in first-seen order. The
// heuristic is advisory and capped at limit results.
func ExtractTopics(queries []string, limit int) []string {
	topics := []string{}
	seen := make(map[string]bool)
	add := func(t string) bool {
		if seen[t] {
			return false
		}
		seen[t] = true
		topics = append(topics, t)
		return len(topics) >= limit
	}

	for _, q := range queries {
		words := strings.Fields(q)
		for i := range words {
			w := trimPunct(words[i])
			if !isCapitalized(w) || utf8.RuneCountInString(w) <= 3 {
				continue
			}
			if add(w) {
				return topics
			}
			if i+1 < len(words) {
				next := trimPunct(words[i+1])
				if isCapitalized(next) && add(w+" "+next) {
					return topics
				}
			}
		}
	}
	return topics
}

func trimPunct(w string) string {
	return strings.TrimFunc(w, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

func isCapitalized(w string) bool {
	r, _ := utf8.DecodeRuneInString(w)
	return r != utf8.RuneError && unicode.IsUpper(r)
}
