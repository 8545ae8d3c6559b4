package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"feedbackfast/internal/app"
	"feedbackfast/internal/domain"
	"feedbackfast/internal/views"
	feedbackfastsdk "feedbackfast/sdk/go"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type cannedModel struct{}

func (cannedModel) Generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	if schema == nil {
		return "Testers like the flow.", nil
	}
	if schema.Type == genai.TypeArray {
		return `[{"testerId":"t4","matchScore":91,"reason":"Finance background"}]`, nil
	}
	return "```json\n{\"title\":\"Budget app beta\",\"description\":\"Try the budget flow\",\"audience\":\"Accountants\"}\n```", nil
}

type testServer struct {
	URL    string
	Sess   *app.Session
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	seq := 0
	sess, err := app.Open(context.Background(), app.Options{
		Model: cannedModel{},
		Now:   func() time.Time { return fixedNow },
		NewID: func(prefix string) string {
			seq++
			return fmt.Sprintf("%s-%d", prefix, seq)
		},
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	handler, err := New(Config{Session: sess, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Sess:   sess,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			sess.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &env), string(data))
	return env.Error.Code
}

func TestHealthAndSession(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/session", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	got := decode[SessionResponse](t, data)
	assert.Equal(t, domain.RoleCreator, got.Role)
	assert.Equal(t, "u1", got.User.ID)
	assert.True(t, got.ShowAuth)
	assert.Contains(t, got.Actions, "campaign.create")

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/session/role/toggle", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	tr := decode[TransitionResponse](t, data)
	assert.Equal(t, domain.RoleTester, tr.Session.Role)
	assert.Equal(t, "t1", tr.Session.User.ID)
	assert.Equal(t, []string{"role.toggled"}, tr.Events)
}

func TestCreateCampaign(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	draft := map[string]any{
		"title":           "Checkout redesign",
		"description":     "Buy something with the new checkout",
		"target_audience": "Online shoppers",
		"reward":          20,
		"max_testers":     5,
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/campaigns", draft)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	tr := decode[TransitionResponse](t, data)
	require.NotNil(t, tr.Campaign)
	assert.Equal(t, domain.CampaignActive, tr.Campaign.Status)
	assert.Empty(t, tr.Campaign.Feedbacks)
	require.NotNil(t, tr.Assignment)
	assert.Equal(t, domain.AssignmentInvited, tr.Assignment.Status)
	assert.Equal(t, "t1", tr.Assignment.TesterID)
	assert.Equal(t, "2024-03-01", tr.Assignment.InvitedAt)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/campaigns", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	cards := decode[[]views.CampaignCard](t, data)
	require.Len(t, cards, 3)
	assert.Equal(t, tr.Campaign.ID, cards[0].ID)

	bad := map[string]any{
		"title":           "Checkout redesign",
		"description":     "Buy something",
		"target_audience": "Online shoppers",
		"reward":          0,
		"max_testers":     5,
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/campaigns", bad)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Equal(t, "validation_failed", errorCode(t, data))

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/campaigns", map[string]any{"title": 3})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/session/role/toggle", nil)
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/campaigns", draft)
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))
	assert.Equal(t, "forbidden", errorCode(t, data))
	assert.Len(t, srv.Sess.Store.Snapshot().Campaigns, 3)
}

func TestTesterCompletesMission(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	doJSON(t, client, http.MethodPost, srv.URL+"/v0/session/role/toggle", nil)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments/a2/accept", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	tr := decode[TransitionResponse](t, data)
	require.NotNil(t, tr.Assignment)
	assert.Equal(t, domain.AssignmentInProgress, tr.Assignment.Status)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/campaigns/c2/simulation", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	tr = decode[TransitionResponse](t, data)
	assert.Equal(t, "c2", tr.Session.Nav.ActiveSimulationCampaignID)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/campaigns/c2/feedback", map[string]any{
		"type":         "BUG",
		"rating":       2,
		"content":      "Broken on mobile",
		"task_success": false,
	})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	tr = decode[TransitionResponse](t, data)
	require.NotNil(t, tr.Feedback)
	assert.Equal(t, domain.SentimentNegative, tr.Feedback.Sentiment)
	assert.Equal(t, "t1", tr.Feedback.TesterID)
	require.NotNil(t, tr.Assignment)
	assert.Equal(t, domain.AssignmentCompleted, tr.Assignment.Status)
	assert.Empty(t, tr.Session.Nav.ActiveSimulationCampaignID)
	assert.Equal(t, []string{"feedback.submitted", "assignment.completed"}, tr.Events)

	st := srv.Sess.Store.Snapshot()
	c2, err := st.Campaign("c2")
	require.NoError(t, err)
	require.Len(t, c2.Feedbacks, 1)
	assert.Equal(t, "Broken on mobile", c2.Feedbacks[0].Content)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/dashboard", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	dash := decode[DashboardResponse](t, data)
	require.NotNil(t, dash.Tester)
	assert.Nil(t, dash.Creator)
	assert.Empty(t, dash.Tester.Pending)
	assert.Len(t, dash.Tester.Completed, 2)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/campaigns/c1/feedback", map[string]any{
		"rating":  4,
		"content": "ok",
	})
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Equal(t, "validation_failed", errorCode(t, data))
}

func TestCreatorFeedbackRaisesToast(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/campaigns/c1/feedback", map[string]any{
		"type":         "IDEA",
		"rating":       5,
		"content":      "Love the new colours",
		"task_success": true,
	})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	tr := decode[TransitionResponse](t, data)
	require.NotNil(t, tr.Session.Toast)
	assert.Equal(t, "New feedback received!", tr.Session.Toast.Message)
	assert.Nil(t, tr.Assignment)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/campaigns/c1", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	detail := decode[views.CampaignDetail](t, data)
	require.Len(t, detail.Campaign.Feedbacks, 3)
	assert.Equal(t, domain.SentimentPositive, detail.Campaign.Feedbacks[0].Sentiment)
}

func TestInviteAndCommunity(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/testers/t4/invite", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	tr := decode[TransitionResponse](t, data)
	require.NotNil(t, tr.Session.Toast)
	assert.Equal(t, domain.NotifySuccess, tr.Session.Toast.Kind)
	assert.Nil(t, tr.Assignment)
	assert.Len(t, srv.Sess.Store.Snapshot().Assignments, 2)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/testers?skill=data", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	testers := decode[[]domain.TesterProfile](t, data)
	require.Len(t, testers, 1)
	assert.Equal(t, "t4", testers[0].ID)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/campaigns/nope", nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))
	assert.Equal(t, "not_found", errorCode(t, data))
}

func TestAIViewsStageResults(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/views/wizard/brief", map[string]any{"idea": "budget app"})
	require.Equal(t, http.StatusAccepted, res.StatusCode, string(data))
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/views/wizard/matches", map[string]any{"target_audience": "Accountants"})
	require.Equal(t, http.StatusAccepted, res.StatusCode, string(data))
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/views/detail/summary", map[string]any{"campaign_id": "c1"})
	require.Equal(t, http.StatusAccepted, res.StatusCode, string(data))
	srv.Sess.Staging.Wait()

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/views/wizard", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	view := decode[StagedViewResponse](t, data)
	assert.True(t, view.Mounted)
	assert.Empty(t, view.Pending)
	require.NotNil(t, view.Brief)
	assert.Equal(t, "Budget app beta", view.Brief.Title)
	require.Len(t, view.Matches, 1)
	assert.Equal(t, "t4", view.Matches[0].TesterID)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/views/detail", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, "Testers like the flow.", decode[StagedViewResponse](t, data).Summary)

	res, _ = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/views/wizard", nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/views/wizard", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.False(t, decode[StagedViewResponse](t, data).Mounted)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/views/detail/summary", map[string]any{"campaign_id": "nope"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode, string(data))

	doJSON(t, client, http.MethodPost, srv.URL+"/v0/session/role/toggle", nil)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/views/wizard/brief", map[string]any{"idea": "budget app"})
	assert.Equal(t, http.StatusForbidden, res.StatusCode, string(data))
}

func TestEventsListing(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	doJSON(t, client, http.MethodPost, srv.URL+"/v0/session/signup/skip", nil)
	doJSON(t, client, http.MethodPost, srv.URL+"/v0/session/role/toggle", nil)
	doJSON(t, client, http.MethodPost, srv.URL+"/v0/session/role/toggle", nil)

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?limit=2", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	page := decode[paginatedEvents](t, data)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "role.toggled", page.Items[0].Type)
	assert.Equal(t, "CREATOR", page.Items[0].Payload["to"])
	require.NotEmpty(t, page.NextCursor)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?limit=2&cursor="+page.NextCursor, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	rest := decode[paginatedEvents](t, data)
	require.Len(t, rest.Items, 1)
	assert.Equal(t, "signup.skipped", rest.Items[0].Type)
	assert.Empty(t, rest.NextCursor)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?type=signup.skipped", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Len(t, decode[paginatedEvents](t, data).Items, 1)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?cursor=abc", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
}

func TestOpenAPIDocument(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc.Paths, "/v0/campaigns/{campaign_id}/feedback")
	assert.Contains(t, doc.Paths, "/v0/views/{view_id}/brief")
}

func TestSDKClient(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	c := feedbackfastsdk.New(srv.URL)

	sess, err := c.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CREATOR", sess.Role)

	tr, err := c.CreateCampaign(ctx, feedbackfastsdk.CampaignDraft{
		Title:          "Onboarding v3",
		Description:    "Sign up and invite a colleague",
		TargetAudience: "Team leads",
		Reward:         15,
		MaxTesters:     3,
	})
	require.NoError(t, err)
	require.NotNil(t, tr.Campaign)
	require.NotNil(t, tr.Assignment)

	_, err = c.AcceptInvitation(ctx, tr.Assignment.ID)
	var apiErr *feedbackfastsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "forbidden", apiErr.Code)

	_, err = c.ToggleRole(ctx)
	require.NoError(t, err)
	accepted, err := c.AcceptInvitation(ctx, tr.Assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", accepted.Assignment.Status)

	done, err := c.SubmitFeedback(ctx, tr.Campaign.ID, feedbackfastsdk.FeedbackForm{
		Type:        "GENERAL",
		Rating:      4,
		Content:     "Smooth sign up",
		TaskSuccess: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "positive", done.Feedback.Sentiment)
	assert.Equal(t, "COMPLETED", done.Assignment.Status)

	dash, err := c.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TESTER", dash["role"])

	events, err := c.Events(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "assignment.completed", events[0].Type)
}
