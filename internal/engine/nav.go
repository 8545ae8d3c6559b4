package engine

import (
	"feedbackfast/internal/domain"
	"feedbackfast/internal/events"
	"feedbackfast/internal/session"
)

var knownTabs = map[string]bool{
	session.TabDashboard: true,
	session.TabCreate:    true,
	session.TabCommunity: true,
	session.TabProfile:   true,
}

// SetTab switches the active tab and clears the selected campaign.
// Unknown tabs fall back to the dashboard.
func (e Engine) SetTab(s session.State, tab string) (session.State, Outcome) {
	var out Outcome
	if !knownTabs[tab] {
		tab = session.TabDashboard
	}
	s.Nav.ActiveTab = tab
	s.Nav.SelectedCampaignID = ""
	out.record("nav.changed", "session", "", events.EventPayload{"tab": tab})
	return s, out
}

// SelectCampaign opens the creator detail view of a campaign.
func (e Engine) SelectCampaign(s session.State, campaignID string) (session.State, Outcome) {
	var out Outcome
	if _, err := s.Campaign(campaignID); err != nil {
		return s, out
	}
	s.Nav.SelectedCampaignID = campaignID
	out.record("nav.changed", "campaign", campaignID, events.EventPayload{"selected": true})
	return s, out
}

func (e Engine) ClearSelection(s session.State) (session.State, Outcome) {
	var out Outcome
	if s.Nav.SelectedCampaignID == "" {
		return s, out
	}
	prev := s.Nav.SelectedCampaignID
	s.Nav.SelectedCampaignID = ""
	out.record("nav.changed", "campaign", prev, events.EventPayload{"selected": false})
	return s, out
}

// StartSimulation opens the simulated client site for a campaign the current
// tester is actively working on.
func (e Engine) StartSimulation(s session.State, campaignID string) (session.State, Outcome) {
	var out Outcome
	for _, a := range s.Assignments {
		if a.CampaignID == campaignID && a.TesterID == s.Tester.ID && a.Status == domain.AssignmentInProgress {
			if _, err := s.Campaign(campaignID); err != nil {
				return s, out
			}
			s.Nav.ActiveSimulationCampaignID = campaignID
			out.record("nav.changed", "campaign", campaignID, events.EventPayload{"simulation": true})
			return s, out
		}
	}
	return s, out
}

func (e Engine) CloseSimulation(s session.State) (session.State, Outcome) {
	var out Outcome
	if s.Nav.ActiveSimulationCampaignID == "" {
		return s, out
	}
	prev := s.Nav.ActiveSimulationCampaignID
	s.Nav.ActiveSimulationCampaignID = ""
	out.record("nav.changed", "campaign", prev, events.EventPayload{"simulation": false})
	return s, out
}
