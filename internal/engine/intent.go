package engine

import (
	"errors"
	"fmt"

	"feedbackfast/internal/domain"
	"feedbackfast/internal/session"
)

const (
	IntentCreateCampaign  = "create_campaign"
	IntentInviteTester    = "invite_tester"
	IntentAcceptInvite    = "accept_invitation"
	IntentSubmitFeedback  = "submit_feedback"
	IntentUpdateProfile   = "update_profile"
	IntentToggleRole      = "toggle_role"
	IntentCompleteSignup  = "complete_signup"
	IntentSkipSignup      = "skip_signup"
	IntentSetTab          = "set_tab"
	IntentSelectCampaign  = "select_campaign"
	IntentClearSelection  = "clear_selection"
	IntentStartSimulation = "start_simulation"
	IntentCloseSimulation = "close_simulation"
)

// Intent is a user action in serializable form, used to replay sessions.
type Intent struct {
	Kind         string                `json:"kind" yaml:"kind"`
	CampaignID   string                `json:"campaign_id,omitempty" yaml:"campaign_id,omitempty"`
	AssignmentID string                `json:"assignment_id,omitempty" yaml:"assignment_id,omitempty"`
	TesterID     string                `json:"tester_id,omitempty" yaml:"tester_id,omitempty"`
	Tab          string                `json:"tab,omitempty" yaml:"tab,omitempty"`
	Draft        *CampaignDraft        `json:"draft,omitempty" yaml:"draft,omitempty"`
	Feedback     *domain.Feedback      `json:"feedback,omitempty" yaml:"feedback,omitempty"`
	Profile      *domain.TesterProfile `json:"profile,omitempty" yaml:"profile,omitempty"`
	Signup       *SignupData           `json:"signup,omitempty" yaml:"signup,omitempty"`
}

var ErrMalformedIntent = errors.New("malformed intent")

// Apply dispatches an intent to its transition. Malformed intents are
// rejected before anything changes.
func (e Engine) Apply(s session.State, in Intent) (session.State, Outcome, error) {
	malformed := func(field string) (session.State, Outcome, error) {
		return s, Outcome{}, fmt.Errorf("%w: %s requires %s", ErrMalformedIntent, in.Kind, field)
	}
	var (
		next session.State
		out  Outcome
	)
	switch in.Kind {
	case IntentCreateCampaign:
		if in.Draft == nil {
			return malformed("draft")
		}
		next, out = e.CreateCampaign(s, *in.Draft)
	case IntentInviteTester:
		if in.TesterID == "" {
			return malformed("tester_id")
		}
		next, out = e.InviteTester(s, in.TesterID)
	case IntentAcceptInvite:
		if in.AssignmentID == "" {
			return malformed("assignment_id")
		}
		next, out = e.AcceptInvitation(s, in.AssignmentID)
	case IntentSubmitFeedback:
		if in.CampaignID == "" {
			return malformed("campaign_id")
		}
		if in.Feedback == nil {
			return malformed("feedback")
		}
		next, out = e.SubmitFeedback(s, in.CampaignID, *in.Feedback)
	case IntentUpdateProfile:
		if in.Profile == nil {
			return malformed("profile")
		}
		next, out = e.UpdateTesterProfile(s, *in.Profile)
	case IntentToggleRole:
		next, out = e.ToggleRole(s)
	case IntentCompleteSignup:
		if in.Signup == nil {
			return malformed("signup")
		}
		next, out = e.CompleteSignup(s, *in.Signup)
	case IntentSkipSignup:
		next, out = e.SkipSignup(s)
	case IntentSetTab:
		next, out = e.SetTab(s, in.Tab)
	case IntentSelectCampaign:
		if in.CampaignID == "" {
			return malformed("campaign_id")
		}
		next, out = e.SelectCampaign(s, in.CampaignID)
	case IntentClearSelection:
		next, out = e.ClearSelection(s)
	case IntentStartSimulation:
		if in.CampaignID == "" {
			return malformed("campaign_id")
		}
		next, out = e.StartSimulation(s, in.CampaignID)
	case IntentCloseSimulation:
		next, out = e.CloseSimulation(s)
	default:
		return s, Outcome{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedIntent, in.Kind)
	}
	return next, out, nil
}
