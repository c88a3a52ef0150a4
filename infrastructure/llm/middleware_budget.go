package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBudgetExceeded is matched by every BudgetExceededError.
var ErrBudgetExceeded = errors.New("coaching budget exceeded")

// Budget caps coaching spend per window. Zero limits are unlimited.
type Budget struct {
	MaxTokens int64
	MaxCalls  int64
	// Window is the period after which usage resets. Zero never resets.
	Window time.Duration
}

// BudgetExceededError reports which limit stopped a request.
type BudgetExceededError struct {
	Resource string
	Limit    int64
	Used     int64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("coaching budget exceeded: %s used %d of %d", e.Resource, e.Used, e.Limit)
}

// Is reports whether target is ErrBudgetExceeded.
func (e *BudgetExceededError) Is(target error) bool { return target == ErrBudgetExceeded }

// BudgetManager tracks token and call usage against a Budget. One manager
// may be shared by the chains of several providers.
type BudgetManager struct {
	budget Budget
	now    func() time.Time

	mu          sync.Mutex
	windowStart time.Time
	tokens      int64
	calls       int64
}

// NewBudgetManager returns a manager with an empty usage window.
func NewBudgetManager(budget Budget) (*BudgetManager, error) {
	if budget.MaxTokens < 0 {
		return nil, fmt.Errorf("budget: max_tokens cannot be negative, got %d", budget.MaxTokens)
	}
	if budget.MaxCalls < 0 {
		return nil, fmt.Errorf("budget: max_calls cannot be negative, got %d", budget.MaxCalls)
	}
	if budget.Window < 0 {
		return nil, fmt.Errorf("budget: window cannot be negative, got %s", budget.Window)
	}
	return &BudgetManager{budget: budget, now: time.Now, windowStart: time.Now()}, nil
}

// Usage returns the tokens and calls spent in the current window.
func (b *BudgetManager) Usage() (tokens, calls int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	return b.tokens, b.calls
}

// reserve admits one call or reports the exhausted limit.
func (b *BudgetManager) reserve() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()

	if b.budget.MaxTokens > 0 && b.tokens >= b.budget.MaxTokens {
		return &BudgetExceededError{Resource: "tokens", Limit: b.budget.MaxTokens, Used: b.tokens}
	}
	if b.budget.MaxCalls > 0 && b.calls >= b.budget.MaxCalls {
		return &BudgetExceededError{Resource: "calls", Limit: b.budget.MaxCalls, Used: b.calls}
	}
	b.calls++
	return nil
}

func (b *BudgetManager) spend(tokens int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens += int64(tokens)
}

func (b *BudgetManager) rollLocked() {
	if b.budget.Window <= 0 {
		return
	}
	if now := b.now(); now.Sub(b.windowStart) >= b.budget.Window {
		b.windowStart = now
		b.tokens, b.calls = 0, 0
	}
}

type budgetedLLM struct {
	next    CoreLLM
	manager *BudgetManager
}

// BudgetMiddleware rejects requests once the manager's budget is spent.
// Calls are counted when admitted and tokens when the provider answers.
func BudgetMiddleware(manager *BudgetManager) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &budgetedLLM{next: next, manager: manager}
	}
}

func (b *budgetedLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if err := b.manager.reserve(); err != nil {
		return "", 0, 0, err
	}
	response, tokensIn, tokensOut, err := b.next.DoRequest(ctx, prompt, opts)
	b.manager.spend(tokensIn + tokensOut)
	return response, tokensIn, tokensOut, err
}

func (b *budgetedLLM) GetModel() string  { return b.next.GetModel() }
func (b *budgetedLLM) SetModel(m string) { b.next.SetModel(m) }
