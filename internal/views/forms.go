package views

import (
	"fmt"
	"strings"
	"time"

	"feedbackfast/internal/domain"
	"feedbackfast/internal/engine"
)

const (
	MinFeedbackLength = 5

	SimulatorDevice       = "Chrome / Simulator"
	CapturedScreenshotURL = "https://placehold.co/600x400/png?text=Captured+Screen"

	DefaultReward     = 20
	DefaultMaxTesters = 5
)

// ValidationError rejects a form before any transition runs.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// FeedbackForm is what the feedback widget collects.
type FeedbackForm struct {
	Type        domain.FeedbackType `json:"type,omitempty" enum:"BUG,IDEA,GENERAL"`
	Rating      int                 `json:"rating"`
	Content     string              `json:"content"`
	TaskSuccess *bool               `json:"task_success,omitempty"`
	Screenshot  bool                `json:"screenshot,omitempty"`
}

func (f FeedbackForm) Validate() error {
	if err := checkFeedback(f.Type, f.Rating, f.Content); err != nil {
		return err
	}
	if f.TaskSuccess == nil {
		return invalid("task_success", "choose whether the task succeeded")
	}
	return nil
}

// Build validates the form and turns it into a feedback authored by author.
func (f FeedbackForm) Build(author domain.User, now time.Time, id string) (domain.Feedback, error) {
	if err := f.Validate(); err != nil {
		return domain.Feedback{}, err
	}
	typ := f.Type
	if typ == "" {
		typ = domain.FeedbackGeneral
	}
	fb := domain.Feedback{
		ID:          id,
		TesterID:    author.ID,
		TesterName:  author.Name,
		Content:     strings.TrimSpace(f.Content),
		Rating:      f.Rating,
		Sentiment:   domain.SentimentFor(f.Rating),
		Date:        domain.DateOnly(now),
		Type:        typ,
		TaskSuccess: *f.TaskSuccess,
		DeviceInfo:  SimulatorDevice,
	}
	if f.Screenshot {
		fb.ScreenshotURL = CapturedScreenshotURL
	}
	return fb, nil
}

func checkFeedback(typ domain.FeedbackType, rating int, content string) error {
	if typ != "" && !typ.Valid() {
		return invalid("type", "unknown feedback type %q", typ)
	}
	if rating < domain.MinRating || rating > domain.MaxRating {
		return invalid("rating", "must be between %d and %d", domain.MinRating, domain.MaxRating)
	}
	if len([]rune(strings.TrimSpace(content))) < MinFeedbackLength {
		return invalid("content", "must be at least %d characters", MinFeedbackLength)
	}
	return nil
}

// ValidateIntent applies the form rules to an intent's payload and returns
// the intent with its payload normalized. Missing payloads are left for
// engine.Apply to reject.
func ValidateIntent(in engine.Intent) (engine.Intent, error) {
	switch in.Kind {
	case engine.IntentCreateCampaign:
		if in.Draft != nil {
			if err := ValidateDraft(*in.Draft); err != nil {
				return in, err
			}
		}
	case engine.IntentSubmitFeedback:
		if in.Feedback != nil {
			fb := *in.Feedback
			if err := checkFeedback(fb.Type, fb.Rating, fb.Content); err != nil {
				return in, err
			}
			if fb.Type == "" {
				fb.Type = domain.FeedbackGeneral
			}
			fb.Content = strings.TrimSpace(fb.Content)
			in.Feedback = &fb
		}
	case engine.IntentUpdateProfile:
		if in.Profile != nil {
			p, err := NormalizeProfile(*in.Profile)
			if err != nil {
				return in, err
			}
			in.Profile = &p
		}
	}
	return in, nil
}

// ValidateDraft checks the creation wizard before a campaign is created.
func ValidateDraft(d engine.CampaignDraft) error {
	switch {
	case strings.TrimSpace(d.Title) == "":
		return invalid("title", "is required")
	case strings.TrimSpace(d.Description) == "":
		return invalid("description", "is required")
	case strings.TrimSpace(d.TargetAudience) == "":
		return invalid("target_audience", "is required")
	case d.Reward <= 0:
		return invalid("reward", "must be positive")
	case d.MaxTesters <= 0:
		return invalid("max_testers", "must be positive")
	}
	return nil
}

// Budget is what a campaign costs if every slot is filled.
func Budget(d engine.CampaignDraft) float64 {
	return d.Reward * float64(d.MaxTesters)
}

// BriefIdea is the text sent for brief generation; the wizard needs a
// description first.
func BriefIdea(d engine.CampaignDraft) (string, error) {
	idea := strings.TrimSpace(d.Description)
	if idea == "" {
		return "", invalid("description", "describe the idea first")
	}
	return idea, nil
}

// MatchRequirement is the text sent for tester matching: audience, then
// description.
func MatchRequirement(d engine.CampaignDraft) (string, error) {
	audience := strings.TrimSpace(d.TargetAudience)
	if audience == "" {
		return "", invalid("target_audience", "is required to find testers")
	}
	return audience + " " + strings.TrimSpace(d.Description), nil
}

// NormalizeProfile trims skills and devices and drops blanks and duplicates,
// keeping first occurrences in order.
func NormalizeProfile(p domain.TesterProfile) (domain.TesterProfile, error) {
	p = p.Clone()
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return p, invalid("name", "is required")
	}
	if p.Rating < 0 || p.Rating > domain.MaxRating {
		return p, invalid("rating", "must be between 0 and %d", domain.MaxRating)
	}
	p.Skills = dedupe(p.Skills)
	p.Devices = dedupe(p.Devices)
	return p, nil
}

func dedupe(items []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
