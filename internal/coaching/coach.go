package coaching

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/salesops/internal/core"
	"github.com/JonMunkholm/salesops/internal/logging"
	"github.com/JonMunkholm/salesops/internal/mailer"
)

//go:embed templates/team_email.html
var teamEmailHTML string

//go:embed templates/team_email.txt
var teamEmailText string

// ErrNoActivity is returned when there is nothing to coach on.
var ErrNoActivity = errors.New("no activity logged for the week")

// ErrCoachingDisabled is returned by generators when no model is configured.
var ErrCoachingDisabled = fmt.Errorf("%w: coaching is disabled", ErrLLMRequest)

// Coach generates coaching episodes and team emails.
type Coach struct {
	store   Store
	llm     Completer
	sender  mailer.Sender
	prompts *Prompts
	targets Targets
	modelID string
	now     func() time.Time
}

// NewCoach wires the coaching collaborators. llm may be nil, in which case
// only metrics are available; sender may be nil when team emails are never
// sent.
func NewCoach(store Store, llm Completer, sender mailer.Sender, prompts *Prompts, targets Targets, modelID string) *Coach {
	return &Coach{
		store:   store,
		llm:     llm,
		sender:  sender,
		prompts: prompts,
		targets: targets,
		modelID: modelID,
		now:     time.Now,
	}
}

// TeamMetrics loads entries and summarizes the week containing weekStart.
func (c *Coach) TeamMetrics(ctx context.Context, weekStart time.Time) (TeamMetrics, error) {
	m, _, err := c.summarize(ctx, weekStart)
	return m, err
}

func (c *Coach) summarize(ctx context.Context, weekStart time.Time) (TeamMetrics, []core.Producer, error) {
	weekStart = WeekStart(weekStart)
	now := c.now()

	producers, err := c.store.ListProducers(ctx)
	if err != nil {
		return TeamMetrics{}, nil, fmt.Errorf("list producers: %w", err)
	}
	from, to := Window(weekStart, now)
	entries, err := c.store.ListEntries(ctx, from, to)
	if err != nil {
		return TeamMetrics{}, nil, fmt.Errorf("list entries: %w", err)
	}
	return Summarize(entries, producers, weekStart, c.targets, now), producers, nil
}

// GenerateEpisode writes and stores a coaching episode for one producer.
func (c *Coach) GenerateEpisode(ctx context.Context, producerEmail string, weekStart time.Time) (Episode, error) {
	if c.llm == nil {
		return Episode{}, ErrCoachingDisabled
	}
	weekStart = WeekStart(weekStart)
	logger := logging.WithFields(ctx, "producer_email", producerEmail, "week_start", weekStart.Format(core.DateLayout))

	metrics, producers, err := c.summarize(ctx, weekStart)
	if err != nil {
		return Episode{}, err
	}
	if !knownProducer(producers, producerEmail) {
		return Episode{}, fmt.Errorf("%w %s", core.ErrUnknownProducer, producerEmail)
	}
	pm, ok := metrics.Producer(producerEmail)
	if !ok {
		return Episode{}, fmt.Errorf("%w: %s", ErrNoActivity, producerEmail)
	}

	vars, err := c.vars(metrics)
	if err != nil {
		return Episode{}, err
	}
	if vars["producer"], err = bindings(pm); err != nil {
		return Episode{}, err
	}

	system, user, err := c.prompts.Render(c.prompts.Episode, vars)
	if err != nil {
		return Episode{}, err
	}

	start := time.Now()
	raw, err := c.llm.Complete(ctx, system, user)
	if err != nil {
		logger.Error("episode generation failed", "error", err)
		return Episode{}, err
	}

	ep, err := ParseEpisode(raw)
	if err != nil {
		logger.Warn("episode response rejected", "error", err, "response_bytes", len(raw))
		return Episode{}, err
	}

	snapshot, err := json.Marshal(pm)
	if err != nil {
		return Episode{}, fmt.Errorf("marshal metrics: %w", err)
	}
	ep.ID = uuid.NewString()
	ep.ProducerEmail = pm.Email
	ep.WeekStart = weekStart
	ep.Metrics = snapshot
	ep.ModelID = c.modelID
	ep.CreatedAt = c.now().UTC()

	if err := c.store.SaveEpisode(ctx, ep); err != nil {
		return Episode{}, fmt.Errorf("save episode: %w", err)
	}

	logger.Info("episode generated",
		"episode_id", ep.ID,
		"score", ep.Score,
		"focus_areas", len(ep.FocusAreas),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ep, nil
}

// Episodes lists stored episodes for a producer, newest first.
func (c *Coach) Episodes(ctx context.Context, producerEmail string, limit int) ([]Episode, error) {
	if limit <= 0 {
		limit = 20
	}
	return c.store.ListEpisodes(ctx, strings.ToLower(strings.TrimSpace(producerEmail)), limit)
}

// GenerateTeamEmail writes the team email for a week and renders its HTML
// and text bodies.
func (c *Coach) GenerateTeamEmail(ctx context.Context, weekStart time.Time) (TeamEmail, error) {
	if c.llm == nil {
		return TeamEmail{}, ErrCoachingDisabled
	}
	weekStart = WeekStart(weekStart)

	metrics, err := c.TeamMetrics(ctx, weekStart)
	if err != nil {
		return TeamEmail{}, err
	}
	if len(metrics.Producers) == 0 {
		return TeamEmail{}, ErrNoActivity
	}

	vars, err := c.vars(metrics)
	if err != nil {
		return TeamEmail{}, err
	}

	system, user, err := c.prompts.Render(c.prompts.TeamEmail, vars)
	if err != nil {
		return TeamEmail{}, err
	}
	raw, err := c.llm.Complete(ctx, system, user)
	if err != nil {
		return TeamEmail{}, err
	}
	email, err := ParseTeamEmail(raw)
	if err != nil {
		logging.FromContext(ctx).Warn("team email response rejected", "error", err, "response_bytes", len(raw))
		return TeamEmail{}, err
	}
	email.WeekStart = weekStart

	if vars["email"], err = bindings(email); err != nil {
		return TeamEmail{}, err
	}
	if email.HTML, err = c.prompts.engine.ParseAndRenderString(teamEmailHTML, vars); err != nil {
		return TeamEmail{}, fmt.Errorf("render email html: %w", err)
	}
	if email.Text, err = c.prompts.engine.ParseAndRenderString(teamEmailText, vars); err != nil {
		return TeamEmail{}, fmt.Errorf("render email text: %w", err)
	}
	return email, nil
}

// SendTeamEmail generates the team email, sends it and records the report.
func (c *Coach) SendTeamEmail(ctx context.Context, weekStart time.Time, recipients []string) (TeamReport, error) {
	if c.sender == nil {
		return TeamReport{}, errors.New("send email: no sender configured")
	}

	email, err := c.GenerateTeamEmail(ctx, weekStart)
	if err != nil {
		return TeamReport{}, err
	}

	id, err := c.sender.Send(ctx, mailer.Message{
		To:      recipients,
		Subject: email.Subject,
		HTML:    email.HTML,
		Text:    email.Text,
		Tags:    map[string]string{"kind": "team_report"},
	})
	if err != nil {
		return TeamReport{}, err
	}

	report := TeamReport{
		ID:         uuid.NewString(),
		WeekStart:  email.WeekStart,
		Subject:    email.Subject,
		HTMLBody:   email.HTML,
		TextBody:   email.Text,
		Recipients: recipients,
		MessageID:  id,
		SentAt:     c.now().UTC(),
	}
	if err := c.store.SaveTeamReport(ctx, report); err != nil {
		return report, fmt.Errorf("save team report: %w", err)
	}

	logging.FromContext(ctx).Info("team email sent",
		"week_start", report.WeekStart.Format(core.DateLayout),
		"recipients", len(recipients),
		"message_id", id,
	)
	return report, nil
}

// vars builds the template bindings shared by every prompt.
func (c *Coach) vars(m TeamMetrics) (map[string]any, error) {
	team, err := bindings(m)
	if err != nil {
		return nil, fmt.Errorf("bind metrics: %w", err)
	}
	return map[string]any{
		"team":       team,
		"week_start": m.WeekStart.Format(core.DateLayout),
		"week_end":   m.WeekEnd.Format(core.DateLayout),
		"targets": map[string]any{
			"monthly_items": c.targets.MonthlyItems,
			"daily_qhh":     c.targets.DailyQHH,
		},
	}, nil
}

func knownProducer(producers []core.Producer, email string) bool {
	email = strings.TrimSpace(email)
	for _, p := range producers {
		if strings.EqualFold(p.Email, email) {
			return true
		}
	}
	return false
}
