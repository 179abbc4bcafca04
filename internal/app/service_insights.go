package app

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"picrm/internal/store"
)

const (
	insightCooldown   = 6 * time.Hour
	insightMaxAge     = 90 * 24 * time.Hour
	insightWindow     = 30 * 24 * time.Hour
	lastInsightKey    = "last_insight_generation"
	insightLockTTL    = 2 * time.Minute
	defaultConfidence = 0.5
)

var insightTypes = map[string]bool{
	"Optimization":        true,
	"Income Idea":         true,
	"Pattern Recognition": true,
	"Anomaly":             true,
	"Recommendation":      true,
	"Risk":                true,
}

type InsightQuery struct {
	Dismissed bool
	Type      string
	Limit     int
}

type InsightCooldown struct {
	CanGenerate         bool       `json:"canGenerate"`
	HoursUntilAvailable int        `json:"hoursUntilAvailable"`
	LastGenerated       *time.Time `json:"lastGenerated,omitempty"`
}

func (s *Service) Insights(ctx context.Context, userID string, q InsightQuery) ([]store.Insight, error) {
	if q.Type != "" && !insightTypes[q.Type] {
		return nil, invalid("unknown insight type")
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return s.store.ListInsights(ctx, userID, store.InsightFilter{Dismissed: q.Dismissed, Type: q.Type, Limit: q.Limit})
}

func (s *Service) InsightCooldown(ctx context.Context, userID string) (InsightCooldown, error) {
	setting, err := s.store.GetSetting(ctx, ScopeUser, userID, lastInsightKey)
	if isNoRows(err) {
		return InsightCooldown{CanGenerate: true}, nil
	}
	if err != nil {
		return InsightCooldown{}, err
	}
	var last time.Time
	if err := json.Unmarshal(setting.Value, &last); err != nil {
		// An unreadable stamp should not lock the user out.
		return InsightCooldown{CanGenerate: true}, nil
	}
	elapsed := s.now().Sub(last)
	out := InsightCooldown{LastGenerated: &last}
	if elapsed >= insightCooldown {
		out.CanGenerate = true
		return out, nil
	}
	out.HoursUntilAvailable = int(math.Ceil((insightCooldown - elapsed).Hours()))
	return out, nil
}

type insightStats struct {
	TimeRange      string         `json:"timeRange"`
	WorkspaceCount int            `json:"workspaceCount"`
	Contacts       contactStats   `json:"contacts"`
	Communications commStats      `json:"communications"`
	Campaigns      map[string]int `json:"campaignsByStatus"`
	Templates      int            `json:"templates"`
	Todos          todoStats      `json:"todos"`
}

type contactStats struct {
	Total       int            `json:"total"`
	ByWorkspace map[string]int `json:"byWorkspace"`
	Dormant     int            `json:"dormant"`
}

type commStats struct {
	ByType          map[string]int `json:"byType"`
	EmailsOpened    int            `json:"emailsOpened"`
	EmailsBounced   int            `json:"emailsBounced"`
	TextsDelivered  int            `json:"textsDelivered"`
	AvgCallDuration int            `json:"avgCallDurationSeconds"`
}

type todoStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
}

type workspaceStats struct {
	name      string
	contacts  []store.Contact
	logs      []store.CommunicationLog
	campaigns []store.Campaign
	templates int
}

// aggregateInsightStats gathers the per-workspace numbers concurrently.
func (s *Service) aggregateInsightStats(ctx context.Context, userID string) (insightStats, error) {
	workspaces, err := s.store.ListWorkspacesByUser(ctx, userID)
	if err != nil {
		return insightStats{}, err
	}
	perWorkspace := make([]workspaceStats, len(workspaces))
	var todos []store.Todo

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	g.Go(func() error {
		items, err := s.store.ListTodosByUser(gctx, userID)
		todos = items
		return err
	})
	for i, ws := range workspaces {
		g.Go(func() error {
			stats := workspaceStats{name: ws.Name}
			var err error
			if stats.contacts, err = s.store.ListContactsByWorkspace(gctx, ws.ID); err != nil {
				return err
			}
			if stats.logs, err = s.store.ListLogsByWorkspace(gctx, ws.ID, "", 500); err != nil {
				return err
			}
			if stats.campaigns, err = s.store.ListCampaignsByWorkspace(gctx, ws.ID); err != nil {
				return err
			}
			templates, err := s.store.ListTemplatesByWorkspace(gctx, ws.ID)
			if err != nil {
				return err
			}
			stats.templates = len(templates)
			perWorkspace[i] = stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return insightStats{}, err
	}

	now := s.now()
	since := now.Add(-insightWindow)
	out := insightStats{
		TimeRange:      "last 30 days",
		WorkspaceCount: len(workspaces),
		Contacts:       contactStats{ByWorkspace: map[string]int{}},
		Communications: commStats{ByType: map[string]int{}},
		Campaigns:      map[string]int{},
	}
	calls, callSeconds := 0, 0.0
	for _, ws := range perWorkspace {
		out.Contacts.ByWorkspace[ws.name] = len(ws.contacts)
		out.Contacts.Total += len(ws.contacts)
		for _, c := range ws.contacts {
			if c.CreatedAt.Before(since) {
				out.Contacts.Dormant++
			}
		}
		for _, l := range ws.logs {
			if l.Timestamp.Before(since) {
				continue
			}
			out.Communications.ByType[l.Type]++
			var content struct {
				Status   string  `json:"status"`
				Duration float64 `json:"duration"`
			}
			_ = json.Unmarshal(l.Content, &content)
			switch {
			case l.Type == "email" && content.Status == "opened":
				out.Communications.EmailsOpened++
			case l.Type == "email" && content.Status == "bounced":
				out.Communications.EmailsBounced++
			case l.Type == "text" && content.Status == "delivered":
				out.Communications.TextsDelivered++
			case l.Type == "call":
				calls++
				callSeconds += content.Duration
			}
		}
		for _, c := range ws.campaigns {
			out.Campaigns[c.Status]++
		}
		out.Templates += ws.templates
	}
	if calls > 0 {
		out.Communications.AvgCallDuration = int(math.Round(callSeconds / float64(calls)))
	}
	for _, t := range todos {
		out.Todos.Total++
		switch {
		case t.IsComplete:
			out.Todos.Completed++
		case t.DueDate != nil && t.DueDate.Before(now):
			out.Todos.Overdue++
		}
	}
	return out, nil
}

const insightPrompt = `You are an expert CRM analytics assistant. Analyze the data below and generate 3-6 actionable insights.

Rules:
1. Return only valid JSON, no markdown.
2. Each insight has "type", "content" and "confidence".
3. Types: "Optimization", "Income Idea", "Pattern Recognition", "Anomaly", "Recommendation", "Risk".
4. Content is 1-2 specific, actionable sentences.
5. Confidence is 0.0 to 1.0 (0.7+ strong pattern, 0.5-0.7 moderate, below 0.5 weak signal).
6. Focus on the last 30 days and prioritise high-impact insights.

Return format:
{"insights": [{"type": "Optimization", "content": "...", "confidence": 0.85}]}

Data:
%s`

type generatedInsights struct {
	Insights []struct {
		Type       string   `json:"type"`
		Content    string   `json:"content"`
		Confidence *float64 `json:"confidence"`
	} `json:"insights"`
}

// GenerateInsights asks the model for fresh insights. One generation per
// user runs at a time and at most once per cooldown window.
func (s *Service) GenerateInsights(ctx context.Context, userID string) ([]store.Insight, error) {
	if s.generator == nil {
		return nil, domainError(http.StatusInternalServerError, codeConfiguration, "AI generation is not configured", nil)
	}
	cooldown, err := s.InsightCooldown(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !cooldown.CanGenerate {
		return nil, cooldownError(cooldown)
	}

	release, ok, err := s.locker.TryLock(ctx, "insights:"+userID, insightLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainError(http.StatusTooManyRequests, codeCooldown, "Insight generation is already running", cooldown)
	}
	defer release()

	stats, err := s.aggregateInsightStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	payload, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode insight stats: %w", err)
	}
	var generated generatedInsights
	if err := s.generator.GenerateJSON(ctx, fmt.Sprintf(insightPrompt, payload), &generated); err != nil {
		s.logger.Warn("generate insights", zap.String("user_id", userID), zap.Error(err))
		return nil, domainError(http.StatusBadGateway, codeAIGeneration, "Failed to generate insights", nil)
	}

	now := s.now().UTC()
	out := make([]store.Insight, 0, len(generated.Insights))
	for _, g := range generated.Insights {
		content := strings.TrimSpace(g.Content)
		if !insightTypes[g.Type] || content == "" {
			continue
		}
		confidence := defaultConfidence
		if g.Confidence != nil {
			confidence = math.Max(0, math.Min(1, *g.Confidence))
		}
		in := store.Insight{
			ID:         newID(),
			UserID:     userID,
			Type:       g.Type,
			Content:    content,
			Confidence: confidence,
			CreatedAt:  now,
		}
		if err := s.store.InsertInsight(ctx, in); err != nil {
			return nil, err
		}
		out = append(out, in)
	}

	if _, err := s.store.UpsertSetting(ctx, store.SystemSetting{
		Scope:   ScopeUser,
		ScopeID: userID,
		Key:     lastInsightKey,
		Value:   mustJSON(now),
	}); err != nil {
		return nil, err
	}
	if purged, err := s.store.PurgeInsights(ctx, userID, now.Add(-insightMaxAge)); err != nil {
		s.logger.Warn("purge insights", zap.String("user_id", userID), zap.Error(err))
	} else if purged > 0 {
		s.logger.Info("purged old insights", zap.String("user_id", userID), zap.Int64("count", purged))
	}
	s.logAction(ctx, userID, "generate", "ai_insight", "", map[string]any{"count": len(out)})
	return out, nil
}

func cooldownError(c InsightCooldown) *DomainError {
	unit := "hours"
	if c.HoursUntilAvailable == 1 {
		unit = "hour"
	}
	msg := fmt.Sprintf("Please wait %d %s before generating insights again", c.HoursUntilAvailable, unit)
	return domainError(http.StatusTooManyRequests, codeCooldown, msg, c)
}

func (s *Service) ownedInsight(ctx context.Context, userID, insightID string) error {
	in, err := s.store.GetInsight(ctx, insightID)
	if isNoRows(err) {
		return notFound("Insight")
	}
	if err != nil {
		return err
	}
	if in.UserID != userID {
		return forbidden("Not your insight")
	}
	return nil
}

func (s *Service) DismissInsight(ctx context.Context, userID, insightID string) error {
	if err := s.ownedInsight(ctx, userID, insightID); err != nil {
		return err
	}
	return s.store.DismissInsight(ctx, insightID)
}

func (s *Service) DeleteInsight(ctx context.Context, userID, insightID string) error {
	if err := s.ownedInsight(ctx, userID, insightID); err != nil {
		return err
	}
	if err := s.store.DeleteInsight(ctx, insightID); err != nil {
		return err
	}
	s.logAction(ctx, userID, "delete", "ai_insight", insightID, nil)
	return nil
}
