package app

import (
	"context"
	"fmt"

	"feedbackfast/internal/engine/auth"
	"feedbackfast/internal/staging"
)

// LaunchBrief stages a brief for the wizard view from the draft idea.
func (s *Session) LaunchBrief(viewID, idea string) error {
	if err := s.requireRole(auth.ActionAIBrief); err != nil {
		return err
	}
	return s.Staging.Launch(viewID, staging.KindBrief, func(ctx context.Context) any {
		return s.Gateway.GenerateBrief(ctx, idea)
	})
}

// LaunchMatches stages tester matches for requirement against the directory
// as it is now.
func (s *Session) LaunchMatches(viewID, requirement string) error {
	if err := s.requireRole(auth.ActionAIMatch); err != nil {
		return err
	}
	testers := s.Store.Snapshot().Directory()
	return s.Staging.Launch(viewID, staging.KindMatches, func(ctx context.Context) any {
		return s.Gateway.MatchTesters(ctx, requirement, testers)
	})
}

// LaunchSummary stages a summary of a campaign's current feedback.
func (s *Session) LaunchSummary(viewID, campaignID string) error {
	if err := s.requireRole(auth.ActionAISummary); err != nil {
		return err
	}
	c, err := s.Store.Snapshot().Campaign(campaignID)
	if err != nil {
		return fmt.Errorf("campaign %s: %w", campaignID, err)
	}
	return s.Staging.Launch(viewID, staging.KindSummary, func(ctx context.Context) any {
		return s.Gateway.SummarizeFeedback(ctx, c.Feedbacks)
	})
}

// Require checks the role gate against the current session.
func (s *Session) Require(action string) error {
	return s.requireRole(action)
}

func (s *Session) requireRole(action string) error {
	return auth.Require(s.Store.Snapshot().Role, action)
}
