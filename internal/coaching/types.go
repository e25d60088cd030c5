// Package coaching turns daily activity into derived sales metrics and uses
// an LLM to write coaching episodes for producers and weekly team emails.
//
// Everything up to the LLM call is deterministic: metrics are computed by
// [Summarize], bound into Liquid prompt templates, and the model's loosely
// structured JSON answer is coerced into typed values by [ParseEpisode] and
// [ParseTeamEmail].
package coaching

import (
	"context"
	"encoding/json"
	"time"

	"github.com/JonMunkholm/salesops/internal/core"
)

// FocusArea is one improvement point in a coaching episode.
type FocusArea struct {
	Metric      string `json:"metric"`
	Observation string `json:"observation"`
	Action      string `json:"action"`
}

// Episode is a coaching write-up for one producer and week.
type Episode struct {
	ID             string          `json:"id"`
	ProducerEmail  string          `json:"producer_email"`
	WeekStart      time.Time       `json:"week_start"`
	Title          string          `json:"title"`
	Summary        string          `json:"summary"`
	Strengths      []string        `json:"strengths"`
	FocusAreas     []FocusArea     `json:"focus_areas"`
	PracticeScript string          `json:"practice_script,omitempty"`
	Score          int             `json:"score,omitempty"`
	Metrics        json.RawMessage `json:"metrics,omitempty"`
	RawResponse    string          `json:"-"`
	ModelID        string          `json:"model_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Shoutout recognises one producer in the team email.
type Shoutout struct {
	Producer string `json:"producer"`
	Reason   string `json:"reason"`
}

// TeamEmail is the weekly team performance email.
type TeamEmail struct {
	Subject         string     `json:"subject"`
	Headline        string     `json:"headline"`
	Highlights      []string   `json:"highlights"`
	Shoutouts       []Shoutout `json:"shoutouts"`
	Recommendations []string   `json:"recommendations"`

	WeekStart time.Time `json:"week_start"`
	HTML      string    `json:"html,omitempty"`
	Text      string    `json:"text,omitempty"`
}

// TeamReport records a team email that was sent.
type TeamReport struct {
	ID         string
	WeekStart  time.Time
	Subject    string
	HTMLBody   string
	TextBody   string
	Recipients []string
	MessageID  string
	SentAt     time.Time
}

// Store is the persistence the coaching features need.
type Store interface {
	ListProducers(ctx context.Context) ([]core.Producer, error)
	ListEntries(ctx context.Context, from, to time.Time) ([]core.CanonicalEntry, error)
	SaveEpisode(ctx context.Context, ep Episode) error
	ListEpisodes(ctx context.Context, producerEmail string, limit int) ([]Episode, error)
	HasTeamReport(ctx context.Context, weekStart time.Time) (bool, error)
	SaveTeamReport(ctx context.Context, r TeamReport) error
}

// Completer sends one system + user prompt pair to an LLM and returns the
// text of its answer.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
