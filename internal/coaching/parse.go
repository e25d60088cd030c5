package coaching

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnparseable is returned when a model answer cannot be coerced into the
// expected shape.
var ErrUnparseable = errors.New("unparseable llm response")

// extractJSONObject pulls the JSON object out of a model answer. Models
// often wrap it in Markdown fences or add a sentence before and after.
func extractJSONObject(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		s = rest
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object found", ErrUnparseable)
	}
	return s[start : end+1], nil
}

func decodeObject(raw string) (map[string]any, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}
	return m, nil
}

// ParseEpisode coerces a model answer into an Episode. List fields accept a
// string or an array, score accepts a number or numeric string and is
// clamped to 1..10. Title and summary are required.
func ParseEpisode(raw string) (Episode, error) {
	m, err := decodeObject(raw)
	if err != nil {
		return Episode{}, err
	}

	ep := Episode{
		Title:          stringField(m, "title"),
		Summary:        stringField(m, "summary"),
		Strengths:      stringList(m["strengths"]),
		FocusAreas:     focusAreas(firstPresent(m, "focus_areas", "focusAreas")),
		PracticeScript: joinedText(firstPresent(m, "practice_script", "practiceScript")),
		Score:          score(m["score"]),
		RawResponse:    raw,
	}
	if ep.Title == "" || ep.Summary == "" {
		return Episode{}, fmt.Errorf("%w: episode needs title and summary", ErrUnparseable)
	}
	return ep, nil
}

// ParseTeamEmail coerces a model answer into a TeamEmail. Subject is required.
func ParseTeamEmail(raw string) (TeamEmail, error) {
	m, err := decodeObject(raw)
	if err != nil {
		return TeamEmail{}, err
	}

	email := TeamEmail{
		Subject:         stringField(m, "subject"),
		Headline:        stringField(m, "headline"),
		Highlights:      stringList(m["highlights"]),
		Shoutouts:       shoutouts(m["shoutouts"]),
		Recommendations: stringList(m["recommendations"]),
	}
	if email.Subject == "" {
		return TeamEmail{}, fmt.Errorf("%w: team email needs a subject", ErrUnparseable)
	}
	return email, nil
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	return scalarString(m[key])
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// stringList accepts a single string (split on newlines, bullets removed) or
// an array of scalars.
func stringList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case string:
		for _, line := range strings.Split(t, "\n") {
			line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•"))
			if line != "" {
				out = append(out, line)
			}
		}
	case []any:
		for _, item := range t {
			if s := scalarString(item); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func joinedText(v any) string {
	switch t := v.(type) {
	case []any:
		return strings.Join(stringList(t), "\n")
	default:
		return scalarString(t)
	}
}

func focusAreas(v any) []FocusArea {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any, string:
		items = []any{t}
	}

	out := []FocusArea{}
	for _, item := range items {
		switch t := item.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, FocusArea{Observation: s})
			}
		case map[string]any:
			fa := FocusArea{
				Metric:      scalarString(firstPresent(t, "metric", "area")),
				Observation: scalarString(firstPresent(t, "observation", "insight")),
				Action:      scalarString(firstPresent(t, "action", "recommendation")),
			}
			if fa != (FocusArea{}) {
				out = append(out, fa)
			}
		}
	}
	return out
}

func shoutouts(v any) []Shoutout {
	items, _ := v.([]any)
	out := []Shoutout{}
	for _, item := range items {
		switch t := item.(type) {
		case string:
			name, reason, ok := strings.Cut(t, ":")
			if !ok {
				reason, name = name, ""
			}
			if s := (Shoutout{Producer: strings.TrimSpace(name), Reason: strings.TrimSpace(reason)}); s.Reason != "" {
				out = append(out, s)
			}
		case map[string]any:
			s := Shoutout{
				Producer: scalarString(firstPresent(t, "producer", "name")),
				Reason:   scalarString(t["reason"]),
			}
			if s != (Shoutout{}) {
				out = append(out, s)
			}
		}
	}
	return out
}

// score returns 0 when absent, unparseable or NaN, else the value rounded
// and clamped to 1..10.
func score(v any) int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "/10")), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	switch {
	case math.IsNaN(f):
		return 0
	case math.IsInf(f, 1), f > 10:
		return 10
	case math.IsInf(f, -1), f < 1:
		return 1
	}
	n := int(math.Round(f))
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}
