package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"feedbackfast/internal/ai"
	"feedbackfast/internal/config"
	"feedbackfast/internal/db"
	"feedbackfast/internal/domain"
	"feedbackfast/internal/engine"
	"feedbackfast/internal/engine/auth"
	"feedbackfast/internal/events"
	"feedbackfast/internal/migrate"
	"feedbackfast/internal/repo"
	"feedbackfast/internal/seed"
	"feedbackfast/internal/session"
	"feedbackfast/internal/staging"
	"feedbackfast/internal/views"
)

// ErrJournal marks a transition rejected because it could not be journaled.
var ErrJournal = errors.New("journal write failed")

type Options struct {
	Config *config.Config
	Logger *zap.Logger
	// Seed defaults to the built-in demo data, or Config.Seed.File when set.
	Seed *seed.Data
	// Model overrides the Gemini model built from Config.APIKey.
	Model ai.Model
	Now   func() time.Time
	NewID func(prefix string) string
}

// Session is one running application session: the state store, the
// transitions applied to it, its journal, and the AI collaborators.
type Session struct {
	Config  *config.Config
	Logger  *zap.Logger
	Engine  engine.Engine
	Store   *session.Store
	Journal events.Writer
	Repo    repo.Repo
	Gateway *ai.Gateway
	Staging *staging.Board

	db *sql.DB
}

// NewLogger builds the process logger for a level name.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// Open builds a session from options, seeding the store and migrating a
// fresh in-memory journal.
func Open(ctx context.Context, opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	data, err := loadSeed(cfg, opts.Seed)
	if err != nil {
		return nil, err
	}

	eng := engine.New()
	eng.ToastTTL = cfg.Session.ToastTTL
	eng.DefaultTesterID = cfg.Session.DefaultTesterID
	if opts.Now != nil {
		eng.Now = opts.Now
	}
	if opts.NewID != nil {
		eng.NewID = opts.NewID
	}

	conn, err := db.OpenMemory("journal")
	if err != nil {
		return nil, err
	}
	if _, err := migrate.Up(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	model := opts.Model
	if model == nil && cfg.APIKey != "" {
		gm, err := ai.NewGenAIModel(ctx, cfg.APIKey, cfg.AI.Model)
		if err != nil {
			logger.Warn("AI gateway disabled", zap.Error(err))
		} else {
			model = gm
		}
	}
	if model == nil {
		logger.Info("no AI API key configured; AI features return fallbacks")
	}

	return &Session{
		Config:  cfg,
		Logger:  logger,
		Engine:  eng,
		Store:   session.NewStore(data.State()),
		Journal: events.Writer{DB: conn, Now: eng.Now},
		Repo:    repo.Repo{DB: conn},
		Gateway: ai.NewGateway(model, logger.Named("ai"), cfg.AI.Timeout),
		Staging: staging.NewBoard(logger.Named("staging")),
		db:      conn,
	}, nil
}

func loadSeed(cfg *config.Config, override *seed.Data) (seed.Data, error) {
	if override != nil {
		return *override, override.Validate()
	}
	if cfg.Seed.File != "" {
		return seed.FromFile(cfg.Seed.File)
	}
	return seed.Default(), nil
}

// Close cancels staged AI work and drops the journal.
func (s *Session) Close() error {
	s.Staging.Close()
	return s.db.Close()
}

func (s *Session) Now() time.Time {
	if s.Engine.Now != nil {
		return s.Engine.Now()
	}
	return time.Now()
}

// Transition runs fn against the current state and journals what it did in
// the same step. If fn or the journal fails the state is left unchanged.
func (s *Session) Transition(ctx context.Context, fn TransitionFunc) (session.State, engine.Outcome, error) {
	var out engine.Outcome
	next, err := s.Store.Update(func(cur session.State) (session.State, error) {
		n, o, err := fn(cur)
		if err != nil {
			return cur, err
		}
		actor := cur.CurrentUser().ID
		if err := s.Journal.Record(ctx, actor, o.Changes); err != nil {
			s.Logger.Error("journal write failed", zap.Error(err), zap.Int("changes", len(o.Changes)))
			return cur, fmt.Errorf("%w: %v", ErrJournal, err)
		}
		out = o
		return n, nil
	})
	if err != nil {
		return next, engine.Outcome{}, err
	}
	for _, c := range out.Changes {
		s.Logger.Debug("transition applied", zap.String("event", c.Type), zap.String("entity", c.EntityID))
	}
	return next, out, nil
}

type TransitionFunc func(session.State) (session.State, engine.Outcome, error)

// Gated rejects fn with an auth.ForbiddenError unless the role current at
// the time it runs may take action.
func Gated(action string, fn TransitionFunc) TransitionFunc {
	return func(cur session.State) (session.State, engine.Outcome, error) {
		if err := auth.Require(cur.Role, action); err != nil {
			return cur, engine.Outcome{}, err
		}
		return fn(cur)
	}
}

var intentActions = map[string]string{
	engine.IntentCreateCampaign:  auth.ActionCampaignCreate,
	engine.IntentInviteTester:    auth.ActionTesterInvite,
	engine.IntentAcceptInvite:    auth.ActionAssignmentAccept,
	engine.IntentSubmitFeedback:  auth.ActionFeedbackSubmit,
	engine.IntentUpdateProfile:   auth.ActionProfileUpdate,
	engine.IntentSelectCampaign:  auth.ActionCampaignSelect,
	engine.IntentStartSimulation: auth.ActionSimulationStart,
}

// Apply dispatches a single intent, subject to the same form rules and role
// gate as the interactive paths. A profile always keeps the current tester's
// identity.
func (s *Session) Apply(ctx context.Context, in engine.Intent) (session.State, engine.Outcome, error) {
	in, err := views.ValidateIntent(in)
	if err != nil {
		return s.Store.Snapshot(), engine.Outcome{}, err
	}
	fn := TransitionFunc(func(cur session.State) (session.State, engine.Outcome, error) {
		next := in
		if in.Profile != nil {
			p := *in.Profile
			p.ID = cur.Tester.ID
			p.Role = domain.RoleTester
			next.Profile = &p
		}
		return s.Engine.Apply(cur, next)
	})
	if action, ok := intentActions[in.Kind]; ok {
		fn = Gated(action, fn)
	}
	return s.Transition(ctx, fn)
}

// CreateCampaign validates the wizard draft, creates the campaign, and
// discards the wizard view's staged AI results when viewID is set.
func (s *Session) CreateCampaign(ctx context.Context, d engine.CampaignDraft, viewID string) (session.State, engine.Outcome, error) {
	if err := views.ValidateDraft(d); err != nil {
		return s.Store.Snapshot(), engine.Outcome{}, err
	}
	st, out, err := s.Apply(ctx, engine.Intent{Kind: engine.IntentCreateCampaign, Draft: &d})
	if err == nil && viewID != "" {
		s.Staging.Unmount(viewID)
	}
	return st, out, err
}

// SubmitFeedback validates the widget form and submits it as the current
// user.
func (s *Session) SubmitFeedback(ctx context.Context, campaignID string, form views.FeedbackForm) (session.State, engine.Outcome, error) {
	if err := form.Validate(); err != nil {
		return s.Store.Snapshot(), engine.Outcome{}, err
	}
	return s.Transition(ctx, Gated(auth.ActionFeedbackSubmit, func(cur session.State) (session.State, engine.Outcome, error) {
		fb, err := form.Build(cur.CurrentUser(), s.Now(), "")
		if err != nil {
			return cur, engine.Outcome{}, err
		}
		next, out := s.Engine.SubmitFeedback(cur, campaignID, fb)
		return next, out, nil
	}))
}

// UpdateProfile normalizes the editor's profile and replaces the current
// tester profile with it. The profile id always stays the current tester's.
func (s *Session) UpdateProfile(ctx context.Context, p domain.TesterProfile) (session.State, engine.Outcome, error) {
	normalized, err := views.NormalizeProfile(p)
	if err != nil {
		return s.Store.Snapshot(), engine.Outcome{}, err
	}
	return s.Transition(ctx, Gated(auth.ActionProfileUpdate, func(cur session.State) (session.State, engine.Outcome, error) {
		normalized.ID = cur.Tester.ID
		normalized.Role = domain.RoleTester
		next, out := s.Engine.UpdateTesterProfile(cur, normalized)
		return next, out, nil
	}))
}
