package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"feedbackfast/internal/domain"
	"feedbackfast/internal/events"
	"feedbackfast/internal/session"
)

const DefaultToastTTL = 3 * time.Second

// Engine holds the clock and id source the transitions depend on. Its
// methods take a state the caller owns, usually a Store copy, and return
// the next one.
type Engine struct {
	Now             func() time.Time
	NewID           func(prefix string) string
	ToastTTL        time.Duration
	DefaultTesterID string
}

func New() Engine {
	return Engine{
		Now:             time.Now,
		NewID:           newUUID,
		ToastTTL:        DefaultToastTTL,
		DefaultTesterID: "t1",
	}
}

func newUUID(prefix string) string {
	return prefix + "-" + uuid.New().String()
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// freshID draws ids until one is not already taken.
func (e Engine) freshID(prefix string, taken func(string) bool) string {
	gen := e.NewID
	if gen == nil {
		gen = newUUID
	}
	for i := 0; i < 8; i++ {
		if id := gen(prefix); !taken(id) {
			return id
		}
	}
	return newUUID(prefix)
}

// Outcome describes what a transition did.
type Outcome struct {
	Changes    []events.Change
	Campaign   *domain.TestCampaign
	Assignment *domain.TestAssignment
	Feedback   *domain.Feedback
}

func (o *Outcome) record(evtType, kind, id string, payload events.EventPayload) {
	o.Changes = append(o.Changes, events.Change{Type: evtType, EntityKind: kind, EntityID: id, Payload: payload})
}

// CampaignDraft carries the creation wizard's fields. The wizard validates
// them before the transition runs.
type CampaignDraft struct {
	Title          string  `json:"title" yaml:"title"`
	Description    string  `json:"description" yaml:"description"`
	TargetAudience string  `json:"target_audience" yaml:"target_audience"`
	Reward         float64 `json:"reward" yaml:"reward"`
	MaxTesters     int     `json:"max_testers" yaml:"max_testers"`
}

// CreateCampaign adds an ACTIVE campaign in front of the list and invites
// the default tester to it.
func (e Engine) CreateCampaign(s session.State, d CampaignDraft) (session.State, Outcome) {
	now := e.now().UTC()
	c := domain.TestCampaign{
		ID: e.freshID("c", func(id string) bool {
			_, err := s.Campaign(id)
			return err == nil
		}),
		Title:          d.Title,
		Description:    d.Description,
		TargetAudience: d.TargetAudience,
		Status:         domain.CampaignActive,
		CreatedAt:      now.Format(time.RFC3339),
		Feedbacks:      []domain.Feedback{},
		Reward:         d.Reward,
		MaxTesters:     d.MaxTesters,
	}
	testerID := s.Tester.ID
	if testerID == "" {
		testerID = e.DefaultTesterID
	}
	a := domain.TestAssignment{
		ID: e.freshID("a", func(id string) bool {
			_, err := s.Assignment(id)
			return err == nil
		}),
		CampaignID: c.ID,
		TesterID:   testerID,
		Status:     domain.AssignmentInvited,
		InvitedAt:  domain.DateOnly(now),
	}
	s.Campaigns = append([]domain.TestCampaign{c}, s.Campaigns...)
	s.Assignments = append([]domain.TestAssignment{a}, s.Assignments...)
	s.Nav = session.Nav{ActiveTab: session.TabDashboard}

	var out Outcome
	out.Campaign = &c
	out.Assignment = &a
	out.record("campaign.created", "campaign", c.ID, events.EventPayload{"title": c.Title, "status": c.Status})
	out.record("assignment.invited", "assignment", a.ID, events.EventPayload{"campaign_id": c.ID, "tester_id": a.TesterID})
	return s, out
}

// InviteTester only raises a notification; it does not create an assignment.
func (e Engine) InviteTester(s session.State, testerID string) (session.State, Outcome) {
	var out Outcome
	for _, c := range s.Campaigns {
		if c.Status != domain.CampaignActive {
			continue
		}
		s = e.notify(s, fmt.Sprintf("Invitation sent for test %q", c.Title), domain.NotifySuccess)
		out.record("tester.invited", "tester", testerID, events.EventPayload{"campaign_id": c.ID})
		return s, out
	}
	s = e.notify(s, "No active campaign to invite to.", domain.NotifyInfo)
	out.record("tester.invited", "tester", testerID, events.EventPayload{"campaign_id": nil})
	return s, out
}

// AcceptInvitation moves an INVITED assignment to IN_PROGRESS. Any other
// status, or an unknown id, leaves the state as it is.
func (e Engine) AcceptInvitation(s session.State, assignmentID string) (session.State, Outcome) {
	var out Outcome
	for i, a := range s.Assignments {
		if a.ID != assignmentID {
			continue
		}
		if a.Status != domain.AssignmentInvited {
			out.record("assignment.accept.ignored", "assignment", a.ID, events.EventPayload{"status": a.Status})
			return s, out
		}
		a.Status = domain.AssignmentInProgress
		s.Assignments[i] = a
		out.Assignment = &a
		out.record("assignment.accepted", "assignment", a.ID, events.EventPayload{"campaign_id": a.CampaignID})
		return s, out
	}
	out.record("assignment.accept.ignored", "assignment", assignmentID, events.EventPayload{"reason": "not found"})
	return s, out
}

// SubmitFeedback prepends fb to the campaign and, for a tester, closes out
// the matching assignment in the same step.
func (e Engine) SubmitFeedback(s session.State, campaignID string, fb domain.Feedback) (session.State, Outcome) {
	var out Outcome
	idx := -1
	for i, c := range s.Campaigns {
		if c.ID == campaignID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s, out
	}
	c := s.Campaigns[idx]
	if fb.ID == "" {
		fb.ID = e.freshID("f", func(id string) bool {
			for _, f := range c.Feedbacks {
				if f.ID == id {
					return true
				}
			}
			return false
		})
	}
	if fb.Date == "" {
		fb.Date = domain.DateOnly(e.now())
	}
	fb.Sentiment = domain.SentimentFor(fb.Rating)
	c.Feedbacks = append([]domain.Feedback{fb}, c.Feedbacks...)
	s.Campaigns[idx] = c
	out.Feedback = &fb
	out.record("feedback.submitted", "campaign", campaignID, events.EventPayload{
		"feedback_id": fb.ID,
		"rating":      fb.Rating,
		"sentiment":   fb.Sentiment,
		"type":        fb.Type,
	})

	if s.Role == domain.RoleTester {
		actor := s.Tester.ID
		for i, a := range s.Assignments {
			if a.CampaignID != campaignID || a.TesterID != actor || a.Status == domain.AssignmentCompleted {
				continue
			}
			a.Status = domain.AssignmentCompleted
			s.Assignments[i] = a
			done := a
			out.Assignment = &done
			out.record("assignment.completed", "assignment", a.ID, events.EventPayload{"campaign_id": campaignID})
		}
		s.Nav.ActiveSimulationCampaignID = ""
		return s, out
	}
	s = e.notify(s, "New feedback received!", domain.NotifySuccess)
	return s, out
}

// UpdateTesterProfile replaces the current tester profile wholesale.
func (e Engine) UpdateTesterProfile(s session.State, p domain.TesterProfile) (session.State, Outcome) {
	var out Outcome
	s.Tester = p.Clone()
	out.record("profile.updated", "tester", p.ID, events.EventPayload{"skills": len(p.Skills), "devices": len(p.Devices)})
	return s, out
}

// ToggleRole flips between creator and tester and resets navigation.
func (e Engine) ToggleRole(s session.State) (session.State, Outcome) {
	var out Outcome
	from := s.Role
	s.Role = s.Role.Other()
	s.Nav.ActiveTab = session.TabDashboard
	s.Nav.SelectedCampaignID = ""
	out.record("role.toggled", "session", "", events.EventPayload{"from": from, "to": s.Role})
	return s, out
}

// SignupData is the partial profile collected by the sign-up flow.
type SignupData struct {
	Name              string   `json:"name,omitempty" yaml:"name,omitempty"`
	Bio               string   `json:"bio,omitempty" yaml:"bio,omitempty"`
	JobTitle          string   `json:"job_title,omitempty" yaml:"job_title,omitempty"`
	Industry          string   `json:"industry,omitempty" yaml:"industry,omitempty"`
	YearsOfExperience string   `json:"years_of_experience,omitempty" yaml:"years_of_experience,omitempty"`
	Skills            []string `json:"skills,omitempty" yaml:"skills,omitempty"`
	Devices           []string `json:"devices,omitempty" yaml:"devices,omitempty"`
}

// CompleteSignup merges the sign-up data over the current tester profile
// and enters the tester role.
func (e Engine) CompleteSignup(s session.State, d SignupData) (session.State, Outcome) {
	var out Outcome
	p := s.Tester.Clone()
	if d.Name != "" {
		p.Name = d.Name
	}
	if d.Bio != "" {
		p.Bio = d.Bio
	}
	if d.JobTitle != "" {
		p.JobTitle = d.JobTitle
	}
	if d.Industry != "" {
		p.Industry = d.Industry
	}
	if d.YearsOfExperience != "" {
		p.YearsOfExperience = d.YearsOfExperience
	}
	if d.Skills != nil {
		p.Skills = append([]string{}, d.Skills...)
	}
	if d.Devices != nil {
		p.Devices = append([]string{}, d.Devices...)
	}
	p.Role = domain.RoleTester
	s.Tester = p
	s.Role = domain.RoleTester
	s.ShowAuth = false
	out.record("signup.completed", "tester", p.ID, events.EventPayload{"name": p.Name})
	return s, out
}

func (e Engine) SkipSignup(s session.State) (session.State, Outcome) {
	var out Outcome
	s.ShowAuth = false
	out.record("signup.skipped", "session", "", nil)
	return s, out
}

func (e Engine) notify(s session.State, msg string, kind domain.NotificationKind) session.State {
	now := e.now().UTC()
	ttl := e.ToastTTL
	if ttl <= 0 {
		ttl = DefaultToastTTL
	}
	s.Toast = &domain.Notification{
		Message:   msg,
		Kind:      kind,
		RaisedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	return s
}
