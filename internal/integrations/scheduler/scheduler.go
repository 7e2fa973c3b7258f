// Package scheduler implements the auto-scheduler integration, which
// generates posts from a rotating topic list on a pseudo-cron schedule.
package scheduler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"autoblog/internal/cron"
	"autoblog/internal/posts"
	"autoblog/pkg/host"
	"autoblog/pkg/integration"

	"go.uber.org/zap"
)

const (
	ID = "auto-scheduler"

	// RunHook is the pseudo-cron hook that triggers a run.
	RunHook = "autoblog_auto_scheduler_run"

	// EverySixHours is the recurrence this integration adds to the
	// cron_schedules filter.
	EverySixHours = "every_six_hours"

	// FrequencyCustom selects cron_expression.
	FrequencyCustom = "custom"

	maxPostsPerRun = 10
	minWordCount   = 100
	maxWordCount   = 5000
	runTimeout     = 10 * time.Minute
)

var frequencies = map[string]bool{
	cron.Hourly:     true,
	cron.TwiceDaily: true,
	cron.Daily:      true,
	cron.Weekly:     true,
	EverySixHours:   true,
	FrequencyCustom: true,
}

func init() {
	_ = integration.RegisterBuiltin(integration.BuiltinInfo{
		ID:          ID,
		Description: "Generates posts on a schedule",
		Order:       10,
		Factory: func(ctx *integration.Context) (integration.Integration, error) {
			return New(ctx), nil
		},
	})
}

// Scheduler is the auto-scheduler integration.
type Scheduler struct {
	*integration.Base
	ctx *integration.Context

	schedulesAdded bool
}

// New creates the integration.
func New(ctx *integration.Context) *Scheduler {
	s := &Scheduler{ctx: ctx}
	s.Base = integration.NewBase(integration.Metadata{
		ID:          ID,
		Name:        "Auto Scheduler",
		Description: "Automatically generate and publish posts from a list of topics on a schedule.",
		Version:     "1.0.0",
		Author:      "autoblog",
		Icon:        "calendar-alt",
		Category:    integration.CategoryAutomation,
		Builtin:     true,
	}, integration.Settings{
		"enabled":            false,
		"frequency":          cron.Daily,
		"cron_expression":    "",
		"topics":             []any{},
		"next_topic":         0,
		"post_status":        host.StatusDraft,
		"author_id":          1,
		"category":           "",
		"posts_per_run":      1,
		"tone":               "informative",
		"word_count":         800,
		"use_knowledge_base": false,
		"last_run":           0,
	}, ctx)
	s.Bind(s)
	return s
}

func (s *Scheduler) SettingsFields() []integration.Field {
	return []integration.Field{
		{Key: "frequency", Label: "Frequency", Type: integration.FieldSelect,
			Options: []string{cron.Hourly, EverySixHours, cron.TwiceDaily, cron.Daily, cron.Weekly, FrequencyCustom}},
		{Key: "cron_expression", Label: "Cron expression", Type: integration.FieldText,
			Description: "Five-field expression, used when frequency is custom."},
		{Key: "topics", Label: "Topics", Type: integration.FieldTextarea, Description: "One topic per line."},
		{Key: "post_status", Label: "Post status", Type: integration.FieldSelect,
			Options: []string{host.StatusDraft, host.StatusPending, host.StatusPublish, host.StatusPrivate}},
		{Key: "author_id", Label: "Author ID", Type: integration.FieldNumber},
		{Key: "category", Label: "Category", Type: integration.FieldText},
		{Key: "posts_per_run", Label: "Posts per run", Type: integration.FieldNumber},
		{Key: "tone", Label: "Tone", Type: integration.FieldText},
		{Key: "word_count", Label: "Word count", Type: integration.FieldNumber},
		{Key: "use_knowledge_base", Label: "Use knowledge base", Type: integration.FieldCheckbox},
	}
}

// SanitizeSettings normalizes every field before it is stored.
func (s *Scheduler) SanitizeSettings(in integration.Settings) integration.Settings {
	out := in.Clone()

	freq := strings.TrimSpace(in.String("frequency"))
	expr := strings.TrimSpace(in.String("cron_expression"))
	if !frequencies[freq] {
		freq = cron.Daily
	}
	if freq == FrequencyCustom {
		if _, err := cron.ParseExpr(expr); err != nil {
			s.Logger().Warn("Invalid cron expression, falling back to daily",
				zap.String("cron_expression", expr),
				zap.Error(err))
			freq = cron.Daily
		}
	}
	out["frequency"] = freq
	out["cron_expression"] = expr

	topics := in.StringSlice("topics")
	list := make([]any, len(topics))
	for i, t := range topics {
		list[i] = t
	}
	out["topics"] = list

	next := in.Int("next_topic")
	if next < 0 || next >= len(topics) {
		next = 0
	}
	out["next_topic"] = next

	status := in.String("post_status")
	if !posts.ValidStatus(status) {
		status = host.StatusDraft
	}
	out["post_status"] = status

	out["author_id"] = max(1, in.Int("author_id"))
	out["posts_per_run"] = clamp(in.Int("posts_per_run"), 1, maxPostsPerRun)
	out["word_count"] = clamp(in.Int("word_count"), minWordCount, maxWordCount)
	out["category"] = strings.TrimSpace(in.String("category"))
	out["use_knowledge_base"] = in.Bool("use_knowledge_base")
	out["enabled"] = in.Bool("enabled")
	out["last_run"] = in.Int64("last_run")

	tone := strings.TrimSpace(in.String("tone"))
	if tone == "" {
		tone = "informative"
	}
	out["tone"] = tone
	return out
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// Recurrence returns the pseudo-cron recurrence for the current settings.
func (s *Scheduler) Recurrence() string {
	return recurrence(s.Settings())
}

func recurrence(settings integration.Settings) string {
	if settings.String("frequency") == FrequencyCustom {
		return settings.String("cron_expression")
	}
	return settings.String("frequency")
}

// UpdateSettings persists the settings and reschedules the run when the
// schedule changed while enabled.
func (s *Scheduler) UpdateSettings(values integration.Settings) bool {
	before := recurrence(s.Settings())
	if !s.Base.UpdateSettings(values) {
		return false
	}
	after := s.Settings()
	if after.Bool("enabled") && recurrence(after) != before {
		s.reschedule(context.Background())
	}
	return true
}

func (s *Scheduler) Init() {
	s.addSchedules()

	s.ctx.Hooks.AddAction(RunHook, func(ctx context.Context, _ any) {
		if _, err := s.Run(ctx); err != nil {
			s.Logger().Error("Scheduled run failed", zap.Error(err))
		}
	}, host.DefaultPriority)

	if s.ctx.Routes != nil {
		s.ctx.Routes.Handle(ID, http.MethodPost, "run", s.handleRun)
		s.ctx.Routes.Handle(ID, http.MethodGet, "status", s.handleStatus)
	}
}

// addSchedules registers the every_six_hours recurrence once per scope.
func (s *Scheduler) addSchedules() {
	if s.schedulesAdded || s.ctx.Hooks == nil {
		return
	}
	s.schedulesAdded = true
	s.ctx.Hooks.AddFilter(cron.FilterSchedules, func(_ context.Context, v any) any {
		schedules, ok := v.(map[string]cron.Schedule)
		if !ok {
			return v
		}
		schedules[EverySixHours] = cron.Schedule{Interval: 6 * time.Hour, Display: "Every Six Hours"}
		return schedules
	}, host.DefaultPriority)
}

func (s *Scheduler) OnActivate() {
	s.addSchedules()
	ctx := context.Background()
	if s.ctx.Cron == nil {
		return
	}
	if _, found, err := s.ctx.Cron.NextScheduled(ctx, RunHook); err != nil || found {
		if err != nil {
			s.Logger().Error("Failed to read schedule", zap.Error(err))
		}
		return
	}
	s.schedule(ctx)
}

func (s *Scheduler) OnDeactivate() {
	if s.ctx.Cron == nil {
		return
	}
	n, err := s.ctx.Cron.ClearScheduledHook(context.Background(), RunHook)
	if err != nil {
		s.Logger().Error("Failed to clear schedule", zap.Error(err))
		return
	}
	s.Logger().Info("Schedule cleared", zap.Int("events", n))
}

func (s *Scheduler) reschedule(ctx context.Context) {
	if s.ctx.Cron == nil {
		return
	}
	s.addSchedules()
	if _, err := s.ctx.Cron.ClearScheduledHook(ctx, RunHook); err != nil {
		s.Logger().Error("Failed to clear schedule", zap.Error(err))
		return
	}
	s.schedule(ctx)
}

func (s *Scheduler) schedule(ctx context.Context) {
	rec := s.Recurrence()
	first, err := s.ctx.Cron.NextRun(ctx, rec, s.ctx.Now())
	if err != nil {
		s.Logger().Error("Cannot compute next run", zap.String("recurrence", rec), zap.Error(err))
		return
	}
	if err := s.ctx.Cron.ScheduleRecurring(ctx, first, rec, RunHook, nil); err != nil && !errors.Is(err, cron.ErrAlreadyScheduled) {
		s.Logger().Error("Failed to schedule run", zap.String("recurrence", rec), zap.Error(err))
		return
	}
	s.Logger().Info("Run scheduled", zap.String("recurrence", rec), zap.Time("first_run", first))
}

// RunResult reports what a run produced.
type RunResult struct {
	PostIDs []int64  `json:"post_ids"`
	Topics  []string `json:"topics"`
	Errors  []string `json:"errors,omitempty"`
}

// Run generates up to posts_per_run posts from the next topics in rotation.
func (s *Scheduler) Run(ctx context.Context) (RunResult, error) {
	var res RunResult
	if s.ctx.Generator == nil {
		return res, errors.New("no post generator configured")
	}

	settings := s.Settings()
	topics := settings.StringSlice("topics")
	if len(topics) == 0 {
		s.Logger().Info("No topics configured, skipping run")
		return res, nil
	}

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	count := clamp(settings.Int("posts_per_run"), 1, maxPostsPerRun)
	next := settings.Int("next_topic")
	if next < 0 || next >= len(topics) {
		next = 0
	}

	for i := 0; i < count; i++ {
		topic := topics[(next+i)%len(topics)]
		res.Topics = append(res.Topics, topic)

		id, err := s.ctx.Generator.Generate(ctx, host.GenerateRequest{
			Topic:            topic,
			Tone:             settings.String("tone"),
			WordCount:        settings.Int("word_count"),
			Status:           settings.String("post_status"),
			AuthorID:         settings.Int64("author_id"),
			Category:         settings.String("category"),
			UseKnowledgeBase: settings.Bool("use_knowledge_base"),
		})
		if err != nil {
			s.Logger().Warn("Failed to generate post", zap.String("topic", topic), zap.Error(err))
			res.Errors = append(res.Errors, topic+": "+err.Error())
			continue
		}
		res.PostIDs = append(res.PostIDs, id)
	}

	s.Base.UpdateSettings(integration.Settings{
		"next_topic": (next + count) % len(topics),
		"last_run":   s.ctx.Now().Unix(),
	})

	s.Logger().Info("Scheduled run finished",
		zap.Int("generated", len(res.PostIDs)),
		zap.Int("failed", len(res.Errors)))
	return res, nil
}

func (s *Scheduler) handleRun(w http.ResponseWriter, r *http.Request) {
	res, err := s.Run(r.Context())
	if err != nil {
		integration.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	integration.WriteJSON(w, http.StatusOK, res)
}

// Status describes the schedule.
type Status struct {
	Enabled    bool       `json:"enabled"`
	Recurrence string     `json:"recurrence"`
	NextRun    *time.Time `json:"next_run,omitempty"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	Topics     []string   `json:"topics"`
	NextTopic  string     `json:"next_topic,omitempty"`
}

// Status reports the current schedule.
func (s *Scheduler) Status(ctx context.Context) Status {
	settings := s.Settings()
	st := Status{
		Enabled:    settings.Bool("enabled"),
		Recurrence: recurrence(settings),
		Topics:     settings.StringSlice("topics"),
	}
	if n := settings.Int("next_topic"); n >= 0 && n < len(st.Topics) {
		st.NextTopic = st.Topics[n]
	}
	if last := settings.Int64("last_run"); last > 0 {
		t := time.Unix(last, 0).UTC()
		st.LastRun = &t
	}
	if s.ctx.Cron != nil {
		if next, found, err := s.ctx.Cron.NextScheduled(ctx, RunHook); err == nil && found {
			st.NextRun = &next
		}
	}
	return st
}

func (s *Scheduler) handleStatus(w http.ResponseWriter, r *http.Request) {
	integration.WriteJSON(w, http.StatusOK, s.Status(r.Context()))
}
