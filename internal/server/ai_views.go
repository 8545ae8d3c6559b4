package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"feedbackfast/internal/app"
	"feedbackfast/internal/engine"
	"feedbackfast/internal/views"
)

type viewPath struct {
	ViewID string `path:"view_id" minLength:"1" maxLength:"128"`
}

type stagedOutput struct {
	Body StagedViewResponse `json:"body"`
}

func staged(sess *app.Session, viewID string) *stagedOutput {
	v, ok := sess.Staging.Get(viewID)
	return &stagedOutput{Body: StagedViewResponse{Mounted: ok, View: v}}
}

// AI calls are staged per view and polled; they never block the request.
func registerAIViews(api huma.API, sess *app.Session) {
	huma.Register(api, huma.Operation{
		OperationID:   "stage-brief",
		Method:        http.MethodPost,
		Path:          "/views/{view_id}/brief",
		Summary:       "Generate a campaign brief for a wizard view",
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ViewID string `path:"view_id" minLength:"1" maxLength:"128"`
		Body   BriefRequest
	}) (*stagedOutput, error) {
		idea, err := views.BriefIdea(engine.CampaignDraft{Description: input.Body.Idea})
		if err != nil {
			return nil, handleError(err)
		}
		if err := sess.LaunchBrief(input.ViewID, idea); err != nil {
			return nil, handleError(err)
		}
		return staged(sess, input.ViewID), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "stage-matches",
		Method:        http.MethodPost,
		Path:          "/views/{view_id}/matches",
		Summary:       "Match testers to a requirement for a wizard view",
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ViewID string `path:"view_id" minLength:"1" maxLength:"128"`
		Body   MatchRequest
	}) (*stagedOutput, error) {
		req, err := views.MatchRequirement(engine.CampaignDraft{
			TargetAudience: input.Body.TargetAudience,
			Description:    input.Body.Description,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if err := sess.LaunchMatches(input.ViewID, req); err != nil {
			return nil, handleError(err)
		}
		return staged(sess, input.ViewID), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "stage-summary",
		Method:        http.MethodPost,
		Path:          "/views/{view_id}/summary",
		Summary:       "Summarize a campaign's feedback for a detail view",
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ViewID string `path:"view_id" minLength:"1" maxLength:"128"`
		Body   SummaryRequest
	}) (*stagedOutput, error) {
		if err := sess.LaunchSummary(input.ViewID, input.Body.CampaignID); err != nil {
			return nil, handleError(err)
		}
		return staged(sess, input.ViewID), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-view",
		Method:      http.MethodGet,
		Path:        "/views/{view_id}",
		Summary:     "Staged AI results of a view",
	}, func(ctx context.Context, input *viewPath) (*stagedOutput, error) {
		return staged(sess, input.ViewID), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "unmount-view",
		Method:        http.MethodDelete,
		Path:          "/views/{view_id}",
		Summary:       "Cancel a view's AI calls and drop its results",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *viewPath) (*struct{}, error) {
		sess.Staging.Unmount(input.ViewID)
		return nil, nil
	})
}
