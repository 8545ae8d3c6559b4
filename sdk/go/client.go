package feedbackfastsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal FeedbackFast HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Avatar string `json:"avatar"`
}

type Toast struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

type Nav struct {
	ActiveTab                  string `json:"active_tab"`
	SelectedCampaignID         string `json:"selected_campaign_id,omitempty"`
	ActiveSimulationCampaignID string `json:"active_simulation_campaign_id,omitempty"`
}

// Session is the current role, user and navigation.
type Session struct {
	Role     string   `json:"role"`
	User     User     `json:"user"`
	Nav      Nav      `json:"nav"`
	ShowAuth bool     `json:"show_auth"`
	Toast    *Toast   `json:"toast,omitempty"`
	Actions  []string `json:"actions"`
}

type Feedback struct {
	ID          string `json:"id"`
	TesterID    string `json:"tester_id"`
	TesterName  string `json:"tester_name"`
	Content     string `json:"content"`
	Rating      int    `json:"rating"`
	Sentiment   string `json:"sentiment"`
	Date        string `json:"date"`
	Type        string `json:"type"`
	TaskSuccess bool   `json:"task_success"`
}

// Campaign represents the API campaign model (partial).
type Campaign struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	TargetAudience string     `json:"target_audience"`
	Status         string     `json:"status"`
	Feedbacks      []Feedback `json:"feedbacks"`
	Reward         float64    `json:"reward"`
	MaxTesters     int        `json:"max_testers"`
}

type Assignment struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id"`
	TesterID   string `json:"tester_id"`
	Status     string `json:"status"`
	InvitedAt  string `json:"invited_at"`
}

// Transition is returned by every state-changing call.
type Transition struct {
	Session    Session     `json:"session"`
	Events     []string    `json:"events"`
	Campaign   *Campaign   `json:"campaign,omitempty"`
	Assignment *Assignment `json:"assignment,omitempty"`
	Feedback   *Feedback   `json:"feedback,omitempty"`
}

type CampaignDraft struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	TargetAudience string  `json:"target_audience"`
	Reward         float64 `json:"reward"`
	MaxTesters     int     `json:"max_testers"`
	ViewID         string  `json:"view_id,omitempty"`
}

type FeedbackForm struct {
	Type        string `json:"type,omitempty"`
	Rating      int    `json:"rating"`
	Content     string `json:"content"`
	TaskSuccess bool   `json:"task_success"`
	Screenshot  bool   `json:"screenshot,omitempty"`
}

// Event represents a journal entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s body=%s", e.StatusCode, e.Code, e.Body)
}

func (c *Client) Session(ctx context.Context) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodGet, "session", nil, &resp)
	return resp, err
}

// ToggleRole switches between creator and tester.
func (c *Client) ToggleRole(ctx context.Context) (Transition, error) {
	var resp Transition
	err := c.do(ctx, http.MethodPost, "session/role/toggle", nil, &resp)
	return resp, err
}

func (c *Client) Campaigns(ctx context.Context) ([]Campaign, error) {
	var resp []Campaign
	err := c.do(ctx, http.MethodGet, "campaigns", nil, &resp)
	return resp, err
}

// CreateCampaign launches a campaign.
func (c *Client) CreateCampaign(ctx context.Context, d CampaignDraft) (Transition, error) {
	var resp Transition
	err := c.do(ctx, http.MethodPost, "campaigns", d, &resp)
	return resp, err
}

// SubmitFeedback posts widget feedback to a campaign.
func (c *Client) SubmitFeedback(ctx context.Context, campaignID string, f FeedbackForm) (Transition, error) {
	var resp Transition
	endpoint := fmt.Sprintf("campaigns/%s/feedback", url.PathEscape(campaignID))
	err := c.do(ctx, http.MethodPost, endpoint, f, &resp)
	return resp, err
}

func (c *Client) StartSimulation(ctx context.Context, campaignID string) (Transition, error) {
	var resp Transition
	endpoint := fmt.Sprintf("campaigns/%s/simulation", url.PathEscape(campaignID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// AcceptInvitation moves an invited assignment to in progress.
func (c *Client) AcceptInvitation(ctx context.Context, assignmentID string) (Transition, error) {
	var resp Transition
	endpoint := fmt.Sprintf("assignments/%s/accept", url.PathEscape(assignmentID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) InviteTester(ctx context.Context, testerID string) (Transition, error) {
	var resp Transition
	endpoint := fmt.Sprintf("testers/%s/invite", url.PathEscape(testerID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Dashboard returns the current role's dashboard as raw JSON fields.
func (c *Client) Dashboard(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, http.MethodGet, "dashboard", nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
