package auth

import (
	"fmt"

	"feedbackfast/internal/domain"
)

// Actions a session role may take. They mirror which screens each role can
// reach; the transitions themselves do not check roles.
const (
	ActionCampaignCreate   = "campaign.create"
	ActionCampaignSelect   = "campaign.select"
	ActionTesterInvite     = "tester.invite"
	ActionDirectoryRead    = "directory.read"
	ActionAssignmentAccept = "assignment.accept"
	ActionSimulationStart  = "simulation.start"
	ActionProfileUpdate    = "profile.update"
	ActionFeedbackSubmit   = "feedback.submit"
	ActionAIBrief          = "ai.brief"
	ActionAIMatch          = "ai.match"
	ActionAISummary        = "ai.summary"
)

// ForbiddenError indicates the current role cannot take an action.
type ForbiddenError struct {
	Role   domain.Role
	Action string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("action %s not available to role %s", e.Action, e.Role)
}

var capabilities = map[domain.Role]map[string]bool{
	domain.RoleCreator: {
		ActionCampaignCreate: true,
		ActionCampaignSelect: true,
		ActionTesterInvite:   true,
		ActionDirectoryRead:  true,
		ActionFeedbackSubmit: true,
		ActionAIBrief:        true,
		ActionAIMatch:        true,
		ActionAISummary:      true,
	},
	domain.RoleTester: {
		ActionAssignmentAccept: true,
		ActionSimulationStart:  true,
		ActionProfileUpdate:    true,
		ActionFeedbackSubmit:   true,
	},
}

func Allowed(role domain.Role, action string) bool {
	return capabilities[role][action]
}

// Require returns a ForbiddenError when role may not take action.
func Require(role domain.Role, action string) error {
	if Allowed(role, action) {
		return nil
	}
	return ForbiddenError{Role: role, Action: action}
}

// Actions lists what role may do, for the session view.
func Actions(role domain.Role) []string {
	var out []string
	for _, a := range []string{
		ActionCampaignCreate, ActionCampaignSelect, ActionTesterInvite, ActionDirectoryRead,
		ActionAssignmentAccept, ActionSimulationStart, ActionProfileUpdate, ActionFeedbackSubmit,
		ActionAIBrief, ActionAIMatch, ActionAISummary,
	} {
		if capabilities[role][a] {
			out = append(out, a)
		}
	}
	return out
}
