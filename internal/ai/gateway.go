package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"feedbackfast/internal/domain"
)

const (
	MatchLimit = 3

	SummaryNothingToAnalyze = "No feedback to analyze."
	SummaryMissingKey       = "AI API key is missing."
	SummaryFailed           = "An error occurred during the AI analysis."
)

// Brief is a generated campaign brief. All fields are empty on failure.
type Brief struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Audience    string `json:"audience"`
}

func (b Brief) Empty() bool {
	return b.Title == "" && b.Description == "" && b.Audience == ""
}

// Gateway wraps the generative-text service. None of its operations return
// errors: failures are logged and turned into fallback values.
type Gateway struct {
	model   Model
	logger  *zap.Logger
	timeout time.Duration
}

// NewGateway builds a gateway. A nil model means no credential is configured.
func NewGateway(model Model, logger *zap.Logger, timeout time.Duration) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{model: model, logger: logger, timeout: timeout}
}

// Available reports whether a model is configured.
func (g *Gateway) Available() bool {
	return g != nil && g.model != nil
}

func (g *Gateway) generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.model.Generate(ctx, prompt, schema)
}

type wireMatch struct {
	TesterID   string  `json:"testerId"`
	MatchScore float64 `json:"matchScore"`
	Reason     string  `json:"reason"`
}

type candidate struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Skills            []string `json:"skills"`
	Devices           []string `json:"devices"`
	Bio               string   `json:"bio"`
	Rating            float64  `json:"rating"`
	JobTitle          string   `json:"jobTitle,omitempty"`
	Industry          string   `json:"industry,omitempty"`
	YearsOfExperience string   `json:"yearsOfExperience,omitempty"`
}

// MatchTesters ranks the best candidates for a requirement. It returns an
// empty list when no model is configured or anything goes wrong.
func (g *Gateway) MatchTesters(ctx context.Context, requirement string, testers []domain.TesterProfile) []domain.AIMatchResult {
	results := []domain.AIMatchResult{}
	if !g.Available() {
		return results
	}
	if len(testers) == 0 {
		return results
	}
	known := make(map[string]bool, len(testers))
	cands := make([]candidate, 0, len(testers))
	for _, t := range testers {
		known[t.ID] = true
		cands = append(cands, candidate{
			ID: t.ID, Name: t.Name, Skills: t.Skills, Devices: t.Devices, Bio: t.Bio, Rating: t.Rating,
			JobTitle: t.JobTitle, Industry: t.Industry, YearsOfExperience: t.YearsOfExperience,
		})
	}
	profiles, err := json.Marshal(cands)
	if err != nil {
		g.logger.Warn("ai match: encode candidates", zap.Error(err))
		return results
	}

	text, err := g.generate(ctx, fmt.Sprintf(matchPrompt, requirement, profiles, MatchLimit), matchSchema)
	if err != nil {
		g.logger.Warn("ai match failed", zap.Error(err))
		return results
	}
	var raw []wireMatch
	if err := json.Unmarshal([]byte(cleanJSON(text)), &raw); err != nil {
		g.logger.Warn("ai match: unparseable reply", zap.Error(err), zap.Int("bytes", len(text)))
		return results
	}
	for _, m := range raw {
		if !known[m.TesterID] {
			g.logger.Debug("ai match: dropping unknown tester", zap.String("tester_id", m.TesterID))
			continue
		}
		results = append(results, domain.AIMatchResult{
			TesterID:   m.TesterID,
			MatchScore: clampScore(m.MatchScore),
			Reason:     m.Reason,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchScore > results[j].MatchScore
	})
	if len(results) > MatchLimit {
		results = results[:MatchLimit]
	}
	return results
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// GenerateBrief turns a rough idea into a campaign brief.
func (g *Gateway) GenerateBrief(ctx context.Context, idea string) Brief {
	if !g.Available() {
		return Brief{}
	}
	text, err := g.generate(ctx, fmt.Sprintf(briefPrompt, idea), briefSchema)
	if err != nil {
		g.logger.Warn("ai brief failed", zap.Error(err))
		return Brief{}
	}
	var b Brief
	if err := json.Unmarshal([]byte(cleanJSON(text)), &b); err != nil {
		g.logger.Warn("ai brief: unparseable reply", zap.Error(err))
		return Brief{}
	}
	return b
}

// SummarizeFeedback produces a short synthesis of the given feedback.
func (g *Gateway) SummarizeFeedback(ctx context.Context, feedbacks []domain.Feedback) string {
	if len(feedbacks) == 0 {
		return SummaryNothingToAnalyze
	}
	if !g.Available() {
		return SummaryMissingKey
	}
	var b strings.Builder
	for _, f := range feedbacks {
		fmt.Fprintf(&b, "- [%s] %s (Rating: %d/5)\n", f.Type, f.Content, f.Rating)
	}
	text, err := g.generate(ctx, fmt.Sprintf(summaryPrompt, b.String()), nil)
	if err != nil {
		g.logger.Warn("ai summary failed", zap.Error(err))
		return SummaryFailed
	}
	text = strings.TrimSpace(text)
	if text == "" {
		g.logger.Warn("ai summary: empty reply")
		return SummaryFailed
	}
	return text
}

// cleanJSON strips markdown code fences and any prose around the JSON value.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return s
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end < start {
		return s
	}
	return s[start : end+1]
}

const matchPrompt = `You are a QA recruitment expert for a SaaS testing platform.
Test requirement: %q

Candidate testers (JSON):
%s

Pick the testers best suited to this requirement. Return at most %d results as
a JSON array of objects with "testerId", "matchScore" (0 to 100) and a short
"reason" explaining the fit.`

const briefPrompt = `Write a clear test brief for a beta testing campaign based on this idea:
%q

Return a JSON object with a catchy "title", a "description" listing the tasks
testers must perform, and the ideal target "audience".`

const summaryPrompt = `Analyze the following user feedback and produce a concise executive summary.
Highlight the main pain points and the praised aspects, then recommend 3
concrete actions for the product team.

Feedback:
%s`
