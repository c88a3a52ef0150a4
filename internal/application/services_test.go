package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/clarvoy/clarvoy/infrastructure/storage"
	"github.com/clarvoy/clarvoy/internal/domain"
)

type recordedNoise struct {
	decisionID int64
	report     domain.NoiseReport
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []recordedNoise
}

func (o *recordingObserver) ObserveNoise(_ context.Context, decisionID int64, report domain.NoiseReport, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, recordedNoise{decisionID: decisionID, report: report})
}

type testEnv struct {
	store     *storage.MemoryStore
	observer  *recordingObserver
	logs      *observer.ObservedLogs
	logger    *zap.Logger
	audit     *AuditService
	noise     *NoiseService
	decisions *DecisionService
	judgments *JudgmentService
	comments  *CommentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	engine, err := domain.NewNoiseEngine(domain.DefaultNoiseConfig())
	require.NoError(t, err)

	env := &testEnv{
		store:    storage.NewMemoryStore(),
		observer: &recordingObserver{},
		logs:     logs,
		logger:   logger,
	}
	env.audit = NewAuditService(env.store, nil, logger)
	env.noise = NewNoiseService(env.store, engine, env.observer)
	env.decisions = NewDecisionService(env.store, env.audit)
	env.judgments = NewJudgmentService(env.store, env.noise, env.audit, logger)
	env.comments = NewCommentService(env.store, env.audit)
	return env
}

func (e *testEnv) openDecision(t *testing.T, title, category string) domain.Decision {
	t.Helper()
	d, err := e.decisions.Create(context.Background(), "author", domain.NewDecision{
		Title:       title,
		Description: "Should we do " + title,
		Category:    category,
		Status:      domain.StatusOpen,
	})
	require.NoError(t, err)
	return d
}

func (e *testEnv) judge(t *testing.T, decisionID int64, userID string, score int) {
	t.Helper()
	_, err := e.judgments.Submit(context.Background(), userID, decisionID,
		domain.NewJudgment{Score: score, Rationale: "because"})
	require.NoError(t, err)
}

func (e *testEnv) auditActions(t *testing.T) []domain.AuditAction {
	t.Helper()
	logs, err := e.audit.List(context.Background())
	require.NoError(t, err)
	actions := make([]domain.AuditAction, len(logs))
	for i, l := range logs {
		actions[i] = l.Action
	}
	return actions
}

func countAction(actions []domain.AuditAction, action domain.AuditAction) int {
	n := 0
	for _, a := range actions {
		if a == action {
			n++
		}
	}
	return n
}
