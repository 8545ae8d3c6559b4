package domain

import "time"

type Role string

const (
	RoleCreator Role = "CREATOR"
	RoleTester  Role = "TESTER"
)

// Other returns the role a demo toggle switches to.
func (r Role) Other() Role {
	if r == RoleCreator {
		return RoleTester
	}
	return RoleCreator
}

type CampaignStatus string

const (
	// CampaignDraft is part of the status domain but no flow produces it yet.
	CampaignDraft     CampaignStatus = "DRAFT"
	CampaignActive    CampaignStatus = "ACTIVE"
	CampaignCompleted CampaignStatus = "COMPLETED"
)

type AssignmentStatus string

const (
	AssignmentInvited    AssignmentStatus = "INVITED"
	AssignmentInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentCompleted  AssignmentStatus = "COMPLETED"
)

// Rank orders assignment statuses; transitions may only increase it.
func (s AssignmentStatus) Rank() int {
	switch s {
	case AssignmentInvited:
		return 1
	case AssignmentInProgress:
		return 2
	case AssignmentCompleted:
		return 3
	default:
		return 0
	}
}

type FeedbackType string

const (
	FeedbackBug     FeedbackType = "BUG"
	FeedbackIdea    FeedbackType = "IDEA"
	FeedbackGeneral FeedbackType = "GENERAL"
)

// Valid reports whether t is one of the known feedback types.
func (t FeedbackType) Valid() bool {
	switch t {
	case FeedbackBug, FeedbackIdea, FeedbackGeneral:
		return true
	}
	return false
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

const (
	MinRating = 1
	MaxRating = 5
)

// SentimentFor derives the sentiment label of a star rating.
func SentimentFor(rating int) Sentiment {
	switch {
	case rating >= 4:
		return SentimentPositive
	case rating == 3:
		return SentimentNeutral
	default:
		return SentimentNegative
	}
}

type User struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Role   Role   `json:"role" yaml:"role" enum:"CREATOR,TESTER"`
	Avatar string `json:"avatar" yaml:"avatar"`
}

type TesterProfile struct {
	User              `yaml:",inline"`
	Skills            []string `json:"skills" yaml:"skills"`
	Devices           []string `json:"devices" yaml:"devices"`
	Bio               string   `json:"bio" yaml:"bio"`
	Rating            float64  `json:"rating" yaml:"rating" minimum:"0" maximum:"5"`
	JobTitle          string   `json:"job_title,omitempty" yaml:"job_title,omitempty"`
	Industry          string   `json:"industry,omitempty" yaml:"industry,omitempty"`
	YearsOfExperience string   `json:"years_of_experience,omitempty" yaml:"years_of_experience,omitempty"`
}

// Clone returns a copy that shares no slices with p.
func (p TesterProfile) Clone() TesterProfile {
	p.Skills = append([]string(nil), p.Skills...)
	p.Devices = append([]string(nil), p.Devices...)
	return p
}

type Feedback struct {
	ID            string       `json:"id" yaml:"id"`
	TesterID      string       `json:"tester_id" yaml:"tester_id"`
	TesterName    string       `json:"tester_name" yaml:"tester_name"`
	Content       string       `json:"content" yaml:"content"`
	Rating        int          `json:"rating" yaml:"rating" minimum:"1" maximum:"5"`
	Sentiment     Sentiment    `json:"sentiment" yaml:"sentiment" enum:"positive,neutral,negative"`
	Date          string       `json:"date" yaml:"date"`
	Type          FeedbackType `json:"type" yaml:"type" enum:"BUG,IDEA,GENERAL"`
	TaskSuccess   bool         `json:"task_success" yaml:"task_success"`
	ScreenshotURL string       `json:"screenshot_url,omitempty" yaml:"screenshot_url,omitempty"`
	DeviceInfo    string       `json:"device_info,omitempty" yaml:"device_info,omitempty"`
}

type TestCampaign struct {
	ID             string         `json:"id" yaml:"id"`
	Title          string         `json:"title" yaml:"title"`
	Description    string         `json:"description" yaml:"description"`
	TargetAudience string         `json:"target_audience" yaml:"target_audience"`
	Status         CampaignStatus `json:"status" yaml:"status" enum:"DRAFT,ACTIVE,COMPLETED"`
	CreatedAt      string         `json:"created_at" yaml:"created_at"`
	Feedbacks      []Feedback     `json:"feedbacks" yaml:"feedbacks"`
	Reward         float64        `json:"reward" yaml:"reward"`
	MaxTesters     int            `json:"max_testers" yaml:"max_testers"`
}

// Clone returns a copy whose feedback list is not shared with c.
func (c TestCampaign) Clone() TestCampaign {
	c.Feedbacks = append([]Feedback{}, c.Feedbacks...)
	return c
}

type TestAssignment struct {
	ID         string           `json:"id" yaml:"id"`
	CampaignID string           `json:"campaign_id" yaml:"campaign_id"`
	TesterID   string           `json:"tester_id" yaml:"tester_id"`
	Status     AssignmentStatus `json:"status" yaml:"status" enum:"INVITED,IN_PROGRESS,COMPLETED"`
	InvitedAt  string           `json:"invited_at" yaml:"invited_at"`
}

type AIMatchResult struct {
	TesterID   string  `json:"tester_id"`
	MatchScore float64 `json:"match_score" minimum:"0" maximum:"100"`
	Reason     string  `json:"reason"`
}

type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyInfo    NotificationKind = "info"
)

type Notification struct {
	Message   string           `json:"message"`
	Kind      NotificationKind `json:"kind" enum:"success,info"`
	RaisedAt  time.Time        `json:"raised_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// DateOnly formats t the way feedback and invitation dates are stored.
func DateOnly(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
