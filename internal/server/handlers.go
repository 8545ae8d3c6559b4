package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"feedbackfast/internal/app"
	"feedbackfast/internal/domain"
	"feedbackfast/internal/engine"
	"feedbackfast/internal/engine/auth"
	"feedbackfast/internal/session"
	"feedbackfast/internal/views"
)

type transitionOutput struct {
	Body TransitionResponse `json:"body"`
}

func respond(sess *app.Session, st session.State, out engine.Outcome, err error) (*transitionOutput, error) {
	if err != nil {
		return nil, handleError(err)
	}
	return &transitionOutput{Body: transitionResponse(st, out, sess.Now())}, nil
}

func apply(ctx context.Context, sess *app.Session, in engine.Intent) (*transitionOutput, error) {
	st, out, err := sess.Apply(ctx, in)
	return respond(sess, st, out, err)
}

type campaignPath struct {
	CampaignID string `path:"campaign_id"`
}

func registerSession(api huma.API, sess *app.Session) {
	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/session",
		Summary:     "Current session",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body SessionResponse `json:"body"`
	}, error) {
		return &struct {
			Body SessionResponse `json:"body"`
		}{Body: sessionResponse(sess.Store.Snapshot(), sess.Now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-role",
		Method:      http.MethodPost,
		Path:        "/session/role/toggle",
		Summary:     "Switch between creator and tester",
	}, func(ctx context.Context, _ *struct{}) (*transitionOutput, error) {
		return apply(ctx, sess, engine.Intent{Kind: engine.IntentToggleRole})
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-signup",
		Method:      http.MethodPost,
		Path:        "/session/signup",
		Summary:     "Complete tester sign-up",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body engine.SignupData
	}) (*transitionOutput, error) {
		return apply(ctx, sess, engine.Intent{Kind: engine.IntentCompleteSignup, Signup: &input.Body})
	})

	huma.Register(api, huma.Operation{
		OperationID: "skip-signup",
		Method:      http.MethodPost,
		Path:        "/session/signup/skip",
		Summary:     "Dismiss the sign-up screen",
	}, func(ctx context.Context, _ *struct{}) (*transitionOutput, error) {
		return apply(ctx, sess, engine.Intent{Kind: engine.IntentSkipSignup})
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-tab",
		Method:      http.MethodPut,
		Path:        "/session/nav",
		Summary:     "Switch the active tab",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body SetTabRequest
	}) (*transitionOutput, error) {
		return apply(ctx, sess, engine.Intent{Kind: engine.IntentSetTab, Tab: input.Body.Tab})
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-selection",
		Method:      http.MethodDelete,
		Path:        "/session/selection",
		Summary:     "Leave the campaign detail view",
	}, func(ctx context.Context, _ *struct{}) (*transitionOutput, error) {
		return apply(ctx, sess, engine.Intent{Kind: engine.IntentClearSelection})
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-simulation",
		Method:      http.MethodDelete,
		Path:        "/session/simulation",
		Summary:     "Close the simulated client site",
	}, func(ctx context.Context, _ *struct{}) (*transitionOutput, error) {
		return apply(ctx, sess, engine.Intent{Kind: engine.IntentCloseSimulation})
	})
}

func registerCampaigns(api huma.API, sess *app.Session) {
	huma.Register(api, huma.Operation{
		OperationID: "list-campaigns",
		Method:      http.MethodGet,
		Path:        "/campaigns",
		Summary:     "List campaigns, newest first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []views.CampaignCard `json:"body"`
	}, error) {
		return &struct {
			Body []views.CampaignCard `json:"body"`
		}{Body: views.Creator(sess.Store.Snapshot()).Campaigns}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-campaign",
		Method:      http.MethodGet,
		Path:        "/campaigns/{campaign_id}",
		Summary:     "Campaign detail with feedback statistics",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *campaignPath) (*struct {
		Body views.CampaignDetail `json:"body"`
	}, error) {
		st := sess.Store.Snapshot()
		if err := auth.Require(st.Role, auth.ActionCampaignSelect); err != nil {
			return nil, handleError(err)
		}
		detail, err := views.Detail(st, input.CampaignID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body views.CampaignDetail `json:"body"`
		}{Body: detail}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-campaign",
		Method:        http.MethodPost,
		Path:          "/campaigns",
		Summary:       "Launch a campaign and invite the default tester",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateCampaignRequest
	}) (*transitionOutput, error) {
		st, out, err := sess.CreateCampaign(ctx, input.Body.draft(), input.Body.ViewID)
		return respond(sess, st, out, err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "select-campaign",
		Method:      http.MethodPost,
		Path:        "/campaigns/{campaign_id}/select",
		Summary:     "Open the campaign detail view",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *campaignPath) (*transitionOutput, error) {
		return apply(ctx, sess, engine.Intent{Kind: engine.IntentSelectCampaign, CampaignID: input.CampaignID})
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-simulation",
		Method:      http.MethodPost,
		Path:        "/campaigns/{campaign_id}/simulation",
		Summary:     "Open the simulated client site for an active mission",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *campaignPath) (*transitionOutput, error) {
		return apply(ctx, sess, engine.Intent{Kind: engine.IntentStartSimulation, CampaignID: input.CampaignID})
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-feedback",
		Method:      http.MethodPost,
		Path:        "/campaigns/{campaign_id}/feedback",
		Summary:     "Submit feedback from the widget",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		CampaignID string `path:"campaign_id"`
		Body       views.FeedbackForm
	}) (*transitionOutput, error) {
		st, out, err := sess.SubmitFeedback(ctx, input.CampaignID, input.Body)
		return respond(sess, st, out, err)
	})
}

func registerAssignments(api huma.API, sess *app.Session) {
	huma.Register(api, huma.Operation{
		OperationID: "list-assignments",
		Method:      http.MethodGet,
		Path:        "/assignments",
		Summary:     "List assignments, optionally for one tester",
	}, func(ctx context.Context, input *struct {
		TesterID string `query:"tester_id"`
	}) (*struct {
		Body []domain.TestAssignment `json:"body"`
	}, error) {
		st := sess.Store.Snapshot()
		items := st.Assignments
		if input.TesterID != "" {
			items = st.AssignmentsFor(input.TesterID)
		}
		return &struct {
			Body []domain.TestAssignment `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-invitation",
		Method:      http.MethodPost,
		Path:        "/assignments/{assignment_id}/accept",
		Summary:     "Accept an invitation",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		AssignmentID string `path:"assignment_id"`
	}) (*transitionOutput, error) {
		return apply(ctx, sess, engine.Intent{Kind: engine.IntentAcceptInvite, AssignmentID: input.AssignmentID})
	})
}

func registerCommunity(api huma.API, sess *app.Session) {
	huma.Register(api, huma.Operation{
		OperationID: "list-testers",
		Method:      http.MethodGet,
		Path:        "/testers",
		Summary:     "Search the tester community",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Search string `query:"search"`
		Skill  string `query:"skill"`
	}) (*struct {
		Body []domain.TesterProfile `json:"body"`
	}, error) {
		st := sess.Store.Snapshot()
		if err := auth.Require(st.Role, auth.ActionDirectoryRead); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.TesterProfile `json:"body"`
		}{Body: views.Community(st, input.Search, input.Skill)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "invite-tester",
		Method:      http.MethodPost,
		Path:        "/testers/{tester_id}/invite",
		Summary:     "Invite a tester to the current active campaign",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		TesterID string `path:"tester_id"`
	}) (*transitionOutput, error) {
		return apply(ctx, sess, engine.Intent{Kind: engine.IntentInviteTester, TesterID: input.TesterID})
	})
}

func registerProfile(api huma.API, sess *app.Session) {
	huma.Register(api, huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/profile",
		Summary:     "Current tester profile",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.TesterProfile `json:"body"`
	}, error) {
		return &struct {
			Body domain.TesterProfile `json:"body"`
		}{Body: sess.Store.Snapshot().Tester}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-profile",
		Method:      http.MethodPut,
		Path:        "/profile",
		Summary:     "Replace the current tester profile",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body UpdateProfileRequest
	}) (*transitionOutput, error) {
		cur := sess.Store.Snapshot().Tester
		p := domain.TesterProfile{
			User:              domain.User{ID: cur.ID, Name: input.Body.Name, Role: domain.RoleTester, Avatar: cur.Avatar},
			Skills:            input.Body.Skills,
			Devices:           input.Body.Devices,
			Bio:               input.Body.Bio,
			Rating:            cur.Rating,
			JobTitle:          input.Body.JobTitle,
			Industry:          input.Body.Industry,
			YearsOfExperience: input.Body.YearsOfExperience,
		}
		if input.Body.Avatar != "" {
			p.Avatar = input.Body.Avatar
		}
		st, out, err := sess.UpdateProfile(ctx, p)
		return respond(sess, st, out, err)
	})
}

func registerDashboard(api huma.API, sess *app.Session) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Dashboard for the current role",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body DashboardResponse `json:"body"`
	}, error) {
		st := sess.Store.Snapshot()
		resp := DashboardResponse{Role: st.Role}
		if st.Role == domain.RoleTester {
			d := views.Tester(st)
			resp.Tester = &d
		} else {
			d := views.Creator(st)
			resp.Creator = &d
		}
		return &struct {
			Body DashboardResponse `json:"body"`
		}{Body: resp}, nil
	})
}
