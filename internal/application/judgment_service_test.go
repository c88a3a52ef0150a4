package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarvoy/clarvoy/infrastructure/storage"
	"github.com/clarvoy/clarvoy/internal/domain"
)

// TestJudgmentService_Submit covers the rejection paths.
func TestJudgmentService_Submit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	open := env.openDecision(t, "Open", "Strategy")

	closedDecision, err := env.decisions.Create(ctx, "author", domain.NewDecision{
		Title: "Closed", Description: "d", Category: "Strategy", Status: domain.StatusClosed,
	})
	require.NoError(t, err)

	env.judge(t, open.ID, "u1", 7)

	tests := []struct {
		name       string
		userID     string
		decisionID int64
		in         domain.NewJudgment
		wantErr    error
	}{
		{"duplicate", "u1", open.ID, domain.NewJudgment{Score: 3, Rationale: "again"}, domain.ErrDuplicateJudgment},
		{"closed", "u2", closedDecision.ID, domain.NewJudgment{Score: 3, Rationale: "late"}, domain.ErrDecisionClosed},
		{"missing_decision", "u2", 999, domain.NewJudgment{Score: 3, Rationale: "r"}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.judgments.Submit(ctx, tt.userID, tt.decisionID, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	for _, score := range []int{0, 11} {
		_, err := env.judgments.Submit(ctx, "u3", open.ID, domain.NewJudgment{Score: score, Rationale: "r"})
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr, "score %d", score)
	}

	_, err = env.judgments.Submit(ctx, "u3", open.ID, domain.NewJudgment{Score: 5, Rationale: "   "})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "rationale is required", verr.Message())
}

// TestJudgmentService_BiasAlert writes one alert when the decision first
// crosses into high noise.
func TestJudgmentService_BiasAlert(t *testing.T) {
	env := newTestEnv(t)
	d := env.openDecision(t, "Acquisition", "M&A")

	env.judge(t, d.ID, "u1", 1)
	assert.Zero(t, countAction(env.auditActions(t), domain.ActionBiasAlert))

	env.judge(t, d.ID, "u2", 10)
	env.judge(t, d.ID, "u3", 1)

	logs, err := env.audit.List(context.Background())
	require.NoError(t, err)
	var alerts []domain.AuditLog
	for _, l := range logs {
		if l.Action == domain.ActionBiasAlert {
			alerts = append(alerts, l)
		}
	}
	require.Len(t, alerts, 1)
	assert.Nil(t, alerts[0].UserID)
	assert.Equal(t, d.ID, *alerts[0].EntityID)
	assert.Equal(t, 4.5, alerts[0].Details["stdDev"])
	assert.Equal(t, 2.0, alerts[0].Details["threshold"])

	assert.Equal(t, 1, env.logs.FilterMessage("decision entered high noise").Len())
	assert.Len(t, env.observer.calls, 3)
	assert.True(t, env.observer.calls[1].report.IsHighNoise)
}

// rendezvousStore holds each CreateJudgment until a partner call arrives or
// the wait expires, so unsynchronized submissions overlap.
type rendezvousStore struct {
	*storage.MemoryStore
	arrived chan struct{}
	wait    time.Duration
}

func (s *rendezvousStore) CreateJudgment(ctx context.Context, j domain.Judgment) (domain.Judgment, error) {
	select {
	case s.arrived <- struct{}{}:
	case <-s.arrived:
	case <-time.After(s.wait):
	}
	return s.MemoryStore.CreateJudgment(ctx, j)
}

// TestJudgmentService_ConcurrentBiasAlert writes exactly one alert when two
// simultaneous submissions together push the decision into high noise.
func TestJudgmentService_ConcurrentBiasAlert(t *testing.T) {
	env := newTestEnv(t)
	d := env.openDecision(t, "Relocation", "Ops")
	env.judge(t, d.ID, "u1", 5)
	env.judge(t, d.ID, "u2", 5)

	store := &rendezvousStore{MemoryStore: env.store, arrived: make(chan struct{}), wait: 100 * time.Millisecond}
	judgments := NewJudgmentService(store, env.noise, env.audit, env.logger)

	var wg sync.WaitGroup
	for user, score := range map[string]int{"u3": 1, "u4": 9} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := judgments.Submit(context.Background(), user, d.ID, domain.NewJudgment{Score: score, Rationale: "split"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	report, err := env.noise.Variance(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Count)
	assert.True(t, report.IsHighNoise)
	assert.Equal(t, 1, countAction(env.auditActions(t), domain.ActionBiasAlert))
}

// TestJudgmentService_ListIsBlind hides peers' judgments until the caller
// has judged, unless they authored the decision or it has concluded.
func TestJudgmentService_ListIsBlind(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := env.openDecision(t, "Rebrand", "Marketing")
	env.judge(t, d.ID, "u1", 4)
	env.judge(t, d.ID, "u2", 8)

	tests := []struct {
		name   string
		userID string
		want   int
	}{
		{"judged", "u1", 2},
		{"not_judged", "u3", 0},
		{"author", "author", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.judgments.List(ctx, tt.userID, d.ID)
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Len(t, got, tt.want)
		})
	}

	archived := domain.StatusArchived
	_, err := env.decisions.Update(ctx, "author", d.ID, domain.DecisionUpdate{Status: &archived})
	require.NoError(t, err)
	got, err := env.judgments.List(ctx, "u3", d.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = env.judgments.List(ctx, "u1", 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// TestNoiseService_Variance reports and observes the stored scores.
func TestNoiseService_Variance(t *testing.T) {
	env := newTestEnv(t)
	d := env.openDecision(t, "Budget", "Finance")
	for i, score := range []int{4, 5, 6} {
		env.judge(t, d.ID, string(rune('a'+i)), score)
	}
	env.observer.calls = nil

	report, err := env.noise.Variance(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Count)
	assert.Equal(t, 5.0, report.Mean)
	assert.InDelta(t, 0.816, report.StdDev, 0.001)
	assert.False(t, report.IsHighNoise)

	require.Len(t, env.observer.calls, 1)
	assert.Equal(t, d.ID, env.observer.calls[0].decisionID)
}

// TestCommentService covers posting and listing.
func TestCommentService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := env.openDecision(t, "Roadmap", "Product")

	first, err := env.comments.Post(ctx, "u1", d.ID, domain.NewComment{Content: "Consider the base rate."})
	require.NoError(t, err)
	_, err = env.comments.Post(ctx, "u2", d.ID, domain.NewComment{Content: "Devil's advocate here.", IsAIGenerated: true})
	require.NoError(t, err)

	list, err := env.comments.List(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.True(t, list[1].IsAIGenerated)

	_, err = env.comments.Post(ctx, "u1", d.ID, domain.NewComment{Content: "  "})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = env.comments.Post(ctx, "u1", 999, domain.NewComment{Content: "hello"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 2, countAction(env.auditActions(t), domain.ActionCommentPosted))
}
