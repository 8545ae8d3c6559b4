package staging

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"feedbackfast/internal/ai"
	"feedbackfast/internal/domain"
)

type Kind string

const (
	KindBrief   Kind = "brief"
	KindMatches Kind = "matches"
	KindSummary Kind = "summary"
)

func (k Kind) Valid() bool {
	switch k {
	case KindBrief, KindMatches, KindSummary:
		return true
	}
	return false
}

// Task is an AI call bound to a view. Its result type must match its kind:
// ai.Brief, []domain.AIMatchResult or string.
type Task func(ctx context.Context) any

// View is what a view has staged so far.
type View struct {
	ID      string                 `json:"id"`
	Brief   *ai.Brief              `json:"brief,omitempty"`
	Matches []domain.AIMatchResult `json:"matches,omitempty"`
	Summary string                 `json:"summary,omitempty"`
	Pending []Kind                 `json:"pending"`
}

type view struct {
	ctx     context.Context
	cancel  context.CancelFunc
	gen     map[Kind]uint64
	pending map[Kind]bool
	staged  View
}

// Board stages AI results per view. Results land only while the view is
// mounted and only for the latest launch of a kind.
type Board struct {
	mu     sync.Mutex
	views  map[string]*view
	logger *zap.Logger
	wg     sync.WaitGroup
	closed bool
}

func NewBoard(logger *zap.Logger) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Board{views: map[string]*view{}, logger: logger}
}

// Launch starts fn for viewID in the background, mounting the view if needed.
func (b *Board) Launch(viewID string, kind Kind, fn Task) error {
	if viewID == "" {
		return fmt.Errorf("view id is required")
	}
	if !kind.Valid() {
		return fmt.Errorf("unknown task kind %q", kind)
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("staging board closed")
	}
	v := b.views[viewID]
	if v == nil {
		ctx, cancel := context.WithCancel(context.Background())
		v = &view{ctx: ctx, cancel: cancel, gen: map[Kind]uint64{}, pending: map[Kind]bool{}, staged: View{ID: viewID}}
		b.views[viewID] = v
	}
	v.gen[kind]++
	gen := v.gen[kind]
	v.pending[kind] = true
	ctx := v.ctx
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		result := fn(ctx)
		b.settle(viewID, v, kind, gen, result)
	}()
	return nil
}

func (b *Board) settle(viewID string, v *view, kind Kind, gen uint64, result any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.views[viewID] != v {
		b.logger.Debug("staging: discarding result for unmounted view", zap.String("view", viewID), zap.String("kind", string(kind)))
		return
	}
	if v.gen[kind] != gen {
		b.logger.Debug("staging: discarding superseded result", zap.String("view", viewID), zap.String("kind", string(kind)))
		return
	}
	delete(v.pending, kind)
	switch r := result.(type) {
	case ai.Brief:
		v.staged.Brief = &r
	case []domain.AIMatchResult:
		v.staged.Matches = append([]domain.AIMatchResult{}, r...)
	case string:
		v.staged.Summary = r
	default:
		b.logger.Warn("staging: unexpected result type", zap.String("kind", string(kind)), zap.String("type", fmt.Sprintf("%T", result)))
	}
}

// Get returns a copy of what viewID has staged.
func (b *Board) Get(viewID string) (View, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.views[viewID]
	if !ok {
		return View{ID: viewID, Pending: []Kind{}}, false
	}
	out := v.staged
	if out.Brief != nil {
		brief := *out.Brief
		out.Brief = &brief
	}
	out.Matches = append([]domain.AIMatchResult(nil), out.Matches...)
	out.Pending = make([]Kind, 0, len(v.pending))
	for k := range v.pending {
		out.Pending = append(out.Pending, k)
	}
	sort.Slice(out.Pending, func(i, j int) bool { return out.Pending[i] < out.Pending[j] })
	return out, true
}

// Unmount cancels the view's in-flight calls and drops its staged results.
func (b *Board) Unmount(viewID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.views[viewID]
	if !ok {
		return false
	}
	v.cancel()
	delete(b.views, viewID)
	return true
}

// Close unmounts every view and waits for in-flight tasks to return.
func (b *Board) Close() {
	b.mu.Lock()
	b.closed = true
	for id, v := range b.views {
		v.cancel()
		delete(b.views, id)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

// Wait blocks until every launched task has returned.
func (b *Board) Wait() {
	b.wg.Wait()
}
