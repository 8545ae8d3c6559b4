package views

import (
	"strings"

	"feedbackfast/internal/domain"
	"feedbackfast/internal/session"
)

// Mission is an assignment joined with its campaign.
type Mission struct {
	Assignment domain.TestAssignment `json:"assignment"`
	Campaign   CampaignCard          `json:"campaign"`
}

type TesterDashboard struct {
	User        domain.User `json:"user"`
	Pending     []Mission   `json:"pending"`
	Active      []Mission   `json:"active"`
	Completed   []Mission   `json:"completed"`
	TotalEarned float64     `json:"total_earned"`
}

// Tester builds the current tester's dashboard. Assignments whose campaign
// no longer resolves are skipped.
func Tester(s session.State) TesterDashboard {
	d := TesterDashboard{
		User:      s.Tester.User,
		Pending:   []Mission{},
		Active:    []Mission{},
		Completed: []Mission{},
	}
	for _, a := range s.AssignmentsFor(s.Tester.ID) {
		c, err := s.Campaign(a.CampaignID)
		if err != nil {
			continue
		}
		m := Mission{Assignment: a, Campaign: cardOf(c)}
		switch a.Status {
		case domain.AssignmentInvited:
			d.Pending = append(d.Pending, m)
		case domain.AssignmentInProgress:
			d.Active = append(d.Active, m)
		case domain.AssignmentCompleted:
			d.Completed = append(d.Completed, m)
			d.TotalEarned += c.Reward
		}
	}
	return d
}

// Community filters the tester directory. Search matches name or bio, skill
// matches any skill by substring; both ignore case and empty means any.
func Community(s session.State, search, skill string) []domain.TesterProfile {
	search = strings.ToLower(strings.TrimSpace(search))
	skill = strings.ToLower(strings.TrimSpace(skill))
	out := []domain.TesterProfile{}
	for _, t := range s.Directory() {
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Name), search) &&
			!strings.Contains(strings.ToLower(t.Bio), search) {
			continue
		}
		if skill != "" && !hasSkill(t.Skills, skill) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func hasSkill(skills []string, needle string) bool {
	for _, s := range skills {
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}
