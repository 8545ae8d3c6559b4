package session

import (
	"errors"
	"time"

	"feedbackfast/internal/domain"
)

var ErrNotFound = errors.New("not found")

const (
	TabDashboard = "dashboard"
	TabCreate    = "create"
	TabCommunity = "community"
	TabProfile   = "profile"
)

// Nav is the navigation part of the session.
type Nav struct {
	ActiveTab                  string `json:"active_tab" yaml:"active_tab" enum:"dashboard,create,community,profile"`
	SelectedCampaignID         string `json:"selected_campaign_id,omitempty" yaml:"selected_campaign_id,omitempty"`
	ActiveSimulationCampaignID string `json:"active_simulation_campaign_id,omitempty" yaml:"active_simulation_campaign_id,omitempty"`
}

// State is the whole application session. Transitions take a State and
// return the next one; nothing else mutates it.
type State struct {
	Campaigns   []domain.TestCampaign   `json:"campaigns"`
	Assignments []domain.TestAssignment `json:"assignments"`
	Role        domain.Role             `json:"role"`
	Creator     domain.User             `json:"creator"`
	Tester      domain.TesterProfile    `json:"tester"`
	Testers     []domain.TesterProfile  `json:"testers"`
	Nav         Nav                     `json:"nav"`
	ShowAuth    bool                    `json:"show_auth"`
	Toast       *domain.Notification    `json:"toast,omitempty"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.Campaigns = make([]domain.TestCampaign, len(s.Campaigns))
	for i, c := range s.Campaigns {
		out.Campaigns[i] = c.Clone()
	}
	out.Assignments = append([]domain.TestAssignment{}, s.Assignments...)
	out.Tester = s.Tester.Clone()
	out.Testers = make([]domain.TesterProfile, len(s.Testers))
	for i, t := range s.Testers {
		out.Testers[i] = t.Clone()
	}
	if s.Toast != nil {
		toast := *s.Toast
		out.Toast = &toast
	}
	return out
}

// CurrentUser is the creator or the current tester, depending on role.
func (s State) CurrentUser() domain.User {
	if s.Role == domain.RoleTester {
		return s.Tester.User
	}
	return s.Creator
}

// ActiveToast returns the held notification unless it has expired at now.
func (s State) ActiveToast(now time.Time) *domain.Notification {
	if s.Toast == nil || !now.Before(s.Toast.ExpiresAt) {
		return nil
	}
	toast := *s.Toast
	return &toast
}

func (s State) Campaign(id string) (domain.TestCampaign, error) {
	for _, c := range s.Campaigns {
		if c.ID == id {
			return c.Clone(), nil
		}
	}
	return domain.TestCampaign{}, ErrNotFound
}

func (s State) Assignment(id string) (domain.TestAssignment, error) {
	for _, a := range s.Assignments {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.TestAssignment{}, ErrNotFound
}

// TesterByID looks in the directory, then at the current tester profile.
func (s State) TesterByID(id string) (domain.TesterProfile, error) {
	if s.Tester.ID == id {
		return s.Tester.Clone(), nil
	}
	for _, t := range s.Testers {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	return domain.TesterProfile{}, ErrNotFound
}

// Directory lists the known testers, with the current tester's live profile
// in place of its seed entry.
func (s State) Directory() []domain.TesterProfile {
	out := make([]domain.TesterProfile, 0, len(s.Testers)+1)
	seen := false
	for _, t := range s.Testers {
		if t.ID == s.Tester.ID {
			out = append(out, s.Tester.Clone())
			seen = true
			continue
		}
		out = append(out, t.Clone())
	}
	if !seen && s.Tester.ID != "" {
		out = append([]domain.TesterProfile{s.Tester.Clone()}, out...)
	}
	return out
}

// AssignmentsFor lists assignments of a tester in session order.
func (s State) AssignmentsFor(testerID string) []domain.TestAssignment {
	var out []domain.TestAssignment
	for _, a := range s.Assignments {
		if a.TesterID == testerID {
			out = append(out, a)
		}
	}
	return out
}
