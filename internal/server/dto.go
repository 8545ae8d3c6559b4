package server

import (
	"encoding/json"
	"time"

	"feedbackfast/internal/domain"
	"feedbackfast/internal/engine"
	"feedbackfast/internal/engine/auth"
	"feedbackfast/internal/session"
	"feedbackfast/internal/staging"
	"feedbackfast/internal/views"
)

// Request payloads

type CreateCampaignRequest struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	TargetAudience string  `json:"target_audience"`
	Reward         float64 `json:"reward"`
	MaxTesters     int     `json:"max_testers"`
	// ViewID names the wizard view whose staged AI results are discarded on success.
	ViewID string `json:"view_id,omitempty"`
}

func (r CreateCampaignRequest) draft() engine.CampaignDraft {
	return engine.CampaignDraft{
		Title:          r.Title,
		Description:    r.Description,
		TargetAudience: r.TargetAudience,
		Reward:         r.Reward,
		MaxTesters:     r.MaxTesters,
	}
}

type SetTabRequest struct {
	Tab string `json:"tab" enum:"dashboard,create,community,profile"`
}

type UpdateProfileRequest struct {
	Name              string   `json:"name"`
	Avatar            string   `json:"avatar,omitempty"`
	Bio               string   `json:"bio,omitempty"`
	Skills            []string `json:"skills,omitempty"`
	Devices           []string `json:"devices,omitempty"`
	JobTitle          string   `json:"job_title,omitempty"`
	Industry          string   `json:"industry,omitempty"`
	YearsOfExperience string   `json:"years_of_experience,omitempty"`
}

type BriefRequest struct {
	Idea string `json:"idea"`
}

type MatchRequest struct {
	TargetAudience string `json:"target_audience"`
	Description    string `json:"description,omitempty"`
}

type SummaryRequest struct {
	CampaignID string `json:"campaign_id"`
}

// Response payloads

type SessionResponse struct {
	Role     domain.Role          `json:"role" enum:"CREATOR,TESTER"`
	User     domain.User          `json:"user"`
	Nav      session.Nav          `json:"nav"`
	ShowAuth bool                 `json:"show_auth"`
	Toast    *domain.Notification `json:"toast,omitempty"`
	Actions  []string             `json:"actions"`
}

func sessionResponse(s session.State, now time.Time) SessionResponse {
	actions := auth.Actions(s.Role)
	if actions == nil {
		actions = []string{}
	}
	return SessionResponse{
		Role:     s.Role,
		User:     s.CurrentUser(),
		Nav:      s.Nav,
		ShowAuth: s.ShowAuth,
		Toast:    s.ActiveToast(now),
		Actions:  actions,
	}
}

// TransitionResponse reports what a state change did and the session after it.
type TransitionResponse struct {
	Session    SessionResponse        `json:"session"`
	Events     []string               `json:"events"`
	Campaign   *domain.TestCampaign   `json:"campaign,omitempty"`
	Assignment *domain.TestAssignment `json:"assignment,omitempty"`
	Feedback   *domain.Feedback       `json:"feedback,omitempty"`
}

func transitionResponse(s session.State, out engine.Outcome, now time.Time) TransitionResponse {
	resp := TransitionResponse{
		Session:    sessionResponse(s, now),
		Events:     []string{},
		Campaign:   out.Campaign,
		Assignment: out.Assignment,
		Feedback:   out.Feedback,
	}
	for _, c := range out.Changes {
		resp.Events = append(resp.Events, c.Type)
	}
	return resp
}

type DashboardResponse struct {
	Role    domain.Role             `json:"role" enum:"CREATOR,TESTER"`
	Creator *views.CreatorDashboard `json:"creator,omitempty"`
	Tester  *views.TesterDashboard  `json:"tester,omitempty"`
}

type StagedViewResponse struct {
	Mounted bool `json:"mounted"`
	staging.View
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func eventResponse(evt domain.Event) EventResponse {
	payload := map[string]any{}
	if evt.Payload != "" {
		_ = json.Unmarshal([]byte(evt.Payload), &payload)
	}
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		Payload:    payload,
	}
}

func nonNilSlice[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
