// Package views projects the session into what each screen shows and
// validates the forms that precede transitions.
package views

import (
	"fmt"
	"math"

	"feedbackfast/internal/domain"
	"feedbackfast/internal/session"
)

type CampaignCard struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	TargetAudience string                `json:"target_audience"`
	Status         domain.CampaignStatus `json:"status"`
	CreatedAt      string                `json:"created_at"`
	Reward         float64               `json:"reward"`
	MaxTesters     int                   `json:"max_testers"`
	FeedbackCount  int                   `json:"feedback_count"`
}

type CreatorDashboard struct {
	User          domain.User    `json:"user"`
	Campaigns     []CampaignCard `json:"campaigns"`
	ActiveCount   int            `json:"active_count"`
	TesterCount   int            `json:"tester_count"`
	FeedbackCount int            `json:"feedback_count"`
}

func cardOf(c domain.TestCampaign) CampaignCard {
	return CampaignCard{
		ID:             c.ID,
		Title:          c.Title,
		Description:    c.Description,
		TargetAudience: c.TargetAudience,
		Status:         c.Status,
		CreatedAt:      c.CreatedAt,
		Reward:         c.Reward,
		MaxTesters:     c.MaxTesters,
		FeedbackCount:  len(c.Feedbacks),
	}
}

// Creator builds the creator dashboard. Campaigns keep the store order,
// newest first.
func Creator(s session.State) CreatorDashboard {
	d := CreatorDashboard{User: s.Creator, Campaigns: make([]CampaignCard, 0, len(s.Campaigns))}
	for _, c := range s.Campaigns {
		d.Campaigns = append(d.Campaigns, cardOf(c))
		if c.Status == domain.CampaignActive {
			d.ActiveCount++
		}
		d.FeedbackCount += len(c.Feedbacks)
	}
	seen := map[string]bool{}
	for _, a := range s.Assignments {
		seen[a.TesterID] = true
	}
	d.TesterCount = len(seen)
	return d
}

type CampaignDetail struct {
	Campaign        domain.TestCampaign          `json:"campaign"`
	ByType          map[domain.FeedbackType]int `json:"by_type"`
	BySentiment     map[domain.Sentiment]int    `json:"by_sentiment"`
	AverageRating   float64                      `json:"average_rating"`
	TaskSuccessRate float64                      `json:"task_success_rate"`
}

// Detail builds the creator's campaign detail view.
func Detail(s session.State, campaignID string) (CampaignDetail, error) {
	c, err := s.Campaign(campaignID)
	if err != nil {
		return CampaignDetail{}, fmt.Errorf("campaign %s: %w", campaignID, err)
	}
	d := CampaignDetail{
		Campaign:    c,
		ByType:      map[domain.FeedbackType]int{},
		BySentiment: map[domain.Sentiment]int{},
	}
	if len(c.Feedbacks) == 0 {
		return d, nil
	}
	var ratings, successes int
	for _, f := range c.Feedbacks {
		d.ByType[f.Type]++
		d.BySentiment[f.Sentiment]++
		ratings += f.Rating
		if f.TaskSuccess {
			successes++
		}
	}
	n := float64(len(c.Feedbacks))
	d.AverageRating = round2(float64(ratings) / n)
	d.TaskSuccessRate = round2(float64(successes) / n)
	return d, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
