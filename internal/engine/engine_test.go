package engine_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedbackfast/internal/domain"
	"feedbackfast/internal/engine"
	"feedbackfast/internal/seed"
	"feedbackfast/internal/session"
)

var day = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	Engine engine.Engine
	clock  time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{clock: day}
	seq := 0
	env.Engine = engine.New()
	env.Engine.Now = func() time.Time { return env.clock }
	env.Engine.NewID = func(prefix string) string {
		seq++
		return fmt.Sprintf("%s%d", prefix, seq)
	}
	return env
}

func seeded() session.State {
	return seed.Default().State()
}

// scenarioState is c1 with only f1 and a1 in progress for t1.
func scenarioState(t *testing.T) session.State {
	t.Helper()
	s := seeded()
	c1 := s.Campaigns[0]
	require.Equal(t, "c1", c1.ID)
	c1.Feedbacks = c1.Feedbacks[:1]
	require.Equal(t, "f1", c1.Feedbacks[0].ID)
	require.Equal(t, 4, c1.Feedbacks[0].Rating)
	s.Campaigns[0] = c1
	s.Assignments[0].Status = domain.AssignmentInProgress
	return s
}

func TestCreateCampaign(t *testing.T) {
	env := newTestEnv(t)
	s := seeded()
	s.Nav.ActiveTab = session.TabCreate

	next, out := env.Engine.CreateCampaign(s.Clone(), engine.CampaignDraft{
		Title:          "Checkout",
		Description:    "Pay for a basket",
		TargetAudience: "Shoppers",
		Reward:         20,
		MaxTesters:     5,
	})

	require.Len(t, next.Campaigns, 3)
	c := next.Campaigns[0]
	assert.Equal(t, "Checkout", c.Title)
	assert.Equal(t, domain.CampaignActive, c.Status)
	assert.NotNil(t, c.Feedbacks)
	assert.Empty(t, c.Feedbacks)
	assert.Equal(t, day.Format(time.RFC3339), c.CreatedAt)
	for _, other := range s.Campaigns {
		assert.NotEqual(t, other.ID, c.ID)
	}

	require.Len(t, next.Assignments, 3)
	a := next.Assignments[0]
	assert.Equal(t, c.ID, a.CampaignID)
	assert.Equal(t, "t1", a.TesterID)
	assert.Equal(t, domain.AssignmentInvited, a.Status)
	assert.Equal(t, "2024-03-01", a.InvitedAt)

	assert.Equal(t, session.TabDashboard, next.Nav.ActiveTab)
	require.NotNil(t, out.Campaign)
	require.NotNil(t, out.Assignment)
	require.Len(t, out.Changes, 2)
	assert.Equal(t, "campaign.created", out.Changes[0].Type)
	assert.Equal(t, "assignment.invited", out.Changes[1].Type)
}

func TestCreateCampaignSkipsTakenIDs(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.NewID = func(prefix string) string { return prefix + "1" }
	s := seeded()

	next, _ := env.Engine.CreateCampaign(s, engine.CampaignDraft{Title: "Dup", Reward: 1, MaxTesters: 1})
	assert.NotEqual(t, "c1", next.Campaigns[0].ID)
	assert.NotEqual(t, "a1", next.Assignments[0].ID)
}

func TestCreateCampaignFallsBackToDefaultTester(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.DefaultTesterID = "t9"
	s := seeded()
	s.Tester.ID = ""

	next, _ := env.Engine.CreateCampaign(s, engine.CampaignDraft{Title: "X", Reward: 1, MaxTesters: 1})
	assert.Equal(t, "t9", next.Assignments[0].TesterID)
}

func TestSubmitFeedbackCompletesMission(t *testing.T) {
	env := newTestEnv(t)
	s := scenarioState(t)
	s.Role = domain.RoleTester
	s.Nav.ActiveSimulationCampaignID = "c1"
	before := s.Clone()

	next, out := env.Engine.SubmitFeedback(s.Clone(), "c1", domain.Feedback{
		TesterID:   "t1",
		TesterName: "Jean Dev",
		Content:    "Broken on mobile",
		Rating:     2,
		Type:       domain.FeedbackBug,
	})

	c1, err := next.Campaign("c1")
	require.NoError(t, err)
	require.Len(t, c1.Feedbacks, 2)
	assert.Equal(t, "Broken on mobile", c1.Feedbacks[0].Content)
	assert.Equal(t, domain.SentimentNegative, c1.Feedbacks[0].Sentiment)
	assert.False(t, c1.Feedbacks[0].TaskSuccess)
	assert.Equal(t, "2024-03-01", c1.Feedbacks[0].Date)
	assert.NotEmpty(t, c1.Feedbacks[0].ID)
	assert.Equal(t, "f1", c1.Feedbacks[1].ID)

	a1, err := next.Assignment("a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentCompleted, a1.Status)
	require.Len(t, next.Campaigns, len(before.Campaigns))
	for i, c := range before.Campaigns {
		if c.ID != "c1" {
			assert.Equal(t, c, next.Campaigns[i], c.ID)
		}
	}
	require.Len(t, next.Assignments, len(before.Assignments))
	for i, a := range before.Assignments {
		if a.ID != "a1" {
			assert.Equal(t, a, next.Assignments[i], a.ID)
		}
	}

	assert.Empty(t, next.Nav.ActiveSimulationCampaignID)
	assert.Nil(t, next.Toast)
	require.NotNil(t, out.Assignment)
	assert.Equal(t, "a1", out.Assignment.ID)
}

func TestSubmitFeedbackAsCreatorNotifies(t *testing.T) {
	env := newTestEnv(t)
	s := seeded()

	next, out := env.Engine.SubmitFeedback(s.Clone(), "c1", domain.Feedback{ID: "fx", Content: "Nice work", Rating: 3})

	c1, err := next.Campaign("c1")
	require.NoError(t, err)
	require.Len(t, c1.Feedbacks, 3)
	assert.Equal(t, "fx", c1.Feedbacks[0].ID)
	assert.Equal(t, domain.SentimentNeutral, c1.Feedbacks[0].Sentiment)
	assert.Equal(t, s.Assignments, next.Assignments)
	assert.Nil(t, out.Assignment)

	require.NotNil(t, next.Toast)
	assert.Equal(t, "New feedback received!", next.Toast.Message)
	assert.Equal(t, domain.NotifySuccess, next.Toast.Kind)
	assert.Equal(t, day.Add(engine.DefaultToastTTL), next.Toast.ExpiresAt)
}

func TestSubmitFeedbackUnknownCampaign(t *testing.T) {
	env := newTestEnv(t)
	s := seeded()
	next, out := env.Engine.SubmitFeedback(s.Clone(), "nope", domain.Feedback{Rating: 5})
	assert.Equal(t, s, next)
	assert.Empty(t, out.Changes)
}

func TestSentimentMapping(t *testing.T) {
	env := newTestEnv(t)
	want := map[int]domain.Sentiment{
		1: domain.SentimentNegative,
		2: domain.SentimentNegative,
		3: domain.SentimentNeutral,
		4: domain.SentimentPositive,
		5: domain.SentimentPositive,
	}
	for rating, sentiment := range want {
		next, _ := env.Engine.SubmitFeedback(seeded(), "c2", domain.Feedback{Rating: rating, Sentiment: domain.SentimentPositive})
		c2, err := next.Campaign("c2")
		require.NoError(t, err)
		assert.Equal(t, sentiment, c2.Feedbacks[0].Sentiment, "rating %d", rating)
	}
}

func TestAcceptInvitationNeverRegresses(t *testing.T) {
	env := newTestEnv(t)
	s := seeded()

	next, out := env.Engine.AcceptInvitation(s, "a2")
	a2, err := next.Assignment("a2")
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentInProgress, a2.Status)
	assert.Equal(t, "assignment.accepted", out.Changes[0].Type)

	again, out := env.Engine.AcceptInvitation(next, "a2")
	a2, err = again.Assignment("a2")
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentInProgress, a2.Status)
	assert.Equal(t, "assignment.accept.ignored", out.Changes[0].Type)

	done, _ := env.Engine.AcceptInvitation(seeded(), "a1")
	a1, err := done.Assignment("a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentCompleted, a1.Status)

	_, out = env.Engine.AcceptInvitation(seeded(), "missing")
	assert.Nil(t, out.Assignment)
}

func TestInviteTester(t *testing.T) {
	env := newTestEnv(t)
	s := seeded()

	next, out := env.Engine.InviteTester(s, "t3")
	require.NotNil(t, next.Toast)
	assert.Equal(t, domain.NotifySuccess, next.Toast.Kind)
	assert.Contains(t, next.Toast.Message, "Nouvel Onboarding Dashboard")
	assert.Len(t, next.Assignments, 2)
	assert.Equal(t, "tester.invited", out.Changes[0].Type)

	s = seeded()
	for i := range s.Campaigns {
		s.Campaigns[i].Status = domain.CampaignCompleted
	}
	next, _ = env.Engine.InviteTester(s, "t3")
	require.NotNil(t, next.Toast)
	assert.Equal(t, domain.NotifyInfo, next.Toast.Kind)
	assert.Equal(t, "No active campaign to invite to.", next.Toast.Message)
	assert.Len(t, next.Assignments, 2)
}

func TestToastExpires(t *testing.T) {
	env := newTestEnv(t)
	next, _ := env.Engine.InviteTester(seeded(), "t2")

	assert.NotNil(t, next.ActiveToast(day.Add(2*time.Second)))
	assert.Nil(t, next.ActiveToast(day.Add(engine.DefaultToastTTL)))

	env.clock = day.Add(time.Minute)
	later, _ := env.Engine.InviteTester(next, "t2")
	assert.NotNil(t, later.ActiveToast(env.clock))
}

func TestToggleRole(t *testing.T) {
	env := newTestEnv(t)
	s := seeded()
	s.Nav = session.Nav{ActiveTab: session.TabCommunity, SelectedCampaignID: "c1"}

	next, _ := env.Engine.ToggleRole(s)
	assert.Equal(t, domain.RoleTester, next.Role)
	assert.Equal(t, session.TabDashboard, next.Nav.ActiveTab)
	assert.Empty(t, next.Nav.SelectedCampaignID)
	assert.Equal(t, "t1", next.CurrentUser().ID)

	back, _ := env.Engine.ToggleRole(next)
	assert.Equal(t, domain.RoleCreator, back.Role)
}

func TestSignup(t *testing.T) {
	env := newTestEnv(t)
	s := seeded()
	require.True(t, s.ShowAuth)

	next, _ := env.Engine.CompleteSignup(s.Clone(), engine.SignupData{
		Name:   "Jeanne",
		Skills: []string{"Go"},
	})
	assert.False(t, next.ShowAuth)
	assert.Equal(t, domain.RoleTester, next.Role)
	assert.Equal(t, "Jeanne", next.Tester.Name)
	assert.Equal(t, []string{"Go"}, next.Tester.Skills)
	assert.Equal(t, s.Tester.Devices, next.Tester.Devices)
	assert.Equal(t, s.Tester.Bio, next.Tester.Bio)
	assert.Equal(t, "t1", next.Tester.ID)

	skipped, out := env.Engine.SkipSignup(s.Clone())
	assert.False(t, skipped.ShowAuth)
	assert.Equal(t, domain.RoleCreator, skipped.Role)
	assert.Equal(t, "signup.skipped", out.Changes[0].Type)
}

func TestUpdateTesterProfile(t *testing.T) {
	env := newTestEnv(t)
	p := seeded().Tester
	p.Bio = "New bio"
	p.Skills = []string{"Rust"}

	next, _ := env.Engine.UpdateTesterProfile(seeded(), p)
	assert.Equal(t, "New bio", next.Tester.Bio)
	p.Skills[0] = "mutated"
	assert.Equal(t, []string{"Rust"}, next.Tester.Skills)
}

func TestNavigation(t *testing.T) {
	env := newTestEnv(t)
	s := seeded()

	next, _ := env.Engine.SelectCampaign(s, "c1")
	assert.Equal(t, "c1", next.Nav.SelectedCampaignID)
	same, out := env.Engine.SelectCampaign(next, "missing")
	assert.Equal(t, "c1", same.Nav.SelectedCampaignID)
	assert.Empty(t, out.Changes)

	next, _ = env.Engine.SetTab(next, session.TabProfile)
	assert.Equal(t, session.TabProfile, next.Nav.ActiveTab)
	assert.Empty(t, next.Nav.SelectedCampaignID)

	next, _ = env.Engine.SetTab(next, "settings")
	assert.Equal(t, session.TabDashboard, next.Nav.ActiveTab)

	_, out = env.Engine.ClearSelection(next)
	assert.Empty(t, out.Changes)
}

func TestSimulationNeedsActiveMission(t *testing.T) {
	env := newTestEnv(t)
	s := seeded()
	s.Role = domain.RoleTester

	next, _ := env.Engine.StartSimulation(s, "c2")
	assert.Empty(t, next.Nav.ActiveSimulationCampaignID)

	next, _ = env.Engine.AcceptInvitation(next, "a2")
	next, _ = env.Engine.StartSimulation(next, "c2")
	assert.Equal(t, "c2", next.Nav.ActiveSimulationCampaignID)

	next, out := env.Engine.CloseSimulation(next)
	assert.Empty(t, next.Nav.ActiveSimulationCampaignID)
	assert.Len(t, out.Changes, 1)
}

func TestApplyRejectsMalformedIntents(t *testing.T) {
	env := newTestEnv(t)
	for _, in := range []engine.Intent{
		{Kind: engine.IntentCreateCampaign},
		{Kind: engine.IntentInviteTester},
		{Kind: engine.IntentAcceptInvite},
		{Kind: engine.IntentSubmitFeedback, CampaignID: "c1"},
		{Kind: engine.IntentUpdateProfile},
		{Kind: engine.IntentCompleteSignup},
		{Kind: engine.IntentSelectCampaign},
		{Kind: engine.IntentStartSimulation},
		{Kind: "dance"},
	} {
		s := seeded()
		next, _, err := env.Engine.Apply(s.Clone(), in)
		require.Error(t, err, in.Kind)
		assert.True(t, errors.Is(err, engine.ErrMalformedIntent), in.Kind)
		assert.Equal(t, s, next, in.Kind)
	}
}

func TestApplyDispatches(t *testing.T) {
	env := newTestEnv(t)
	next, out, err := env.Engine.Apply(seeded(), engine.Intent{
		Kind:       engine.IntentSubmitFeedback,
		CampaignID: "c2",
		Feedback:   &domain.Feedback{Rating: 1, Content: "Crashes"},
	})
	require.NoError(t, err)
	require.NotNil(t, out.Feedback)
	c2, err := next.Campaign("c2")
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentNegative, c2.Feedbacks[0].Sentiment)
}
