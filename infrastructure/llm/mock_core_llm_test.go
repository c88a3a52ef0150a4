package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errSimulated = errors.New("simulated failure")

// fakeCore is a scriptable CoreLLM for middleware tests.
type fakeCore struct {
	mu sync.Mutex

	response  string
	tokensIn  int
	tokensOut int
	model     string
	delay     time.Duration

	// err is returned on every call, or only on the first failFirst calls
	// when failFirst is set.
	err       error
	failFirst int

	calls    int
	lastOpts map[string]any
	lastCtx  context.Context
	times    []time.Time
}

func newFakeCore() *fakeCore {
	return &fakeCore{response: "test response", tokensIn: 10, tokensOut: 20, model: "test-model"}
}

func (f *fakeCore) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.lastOpts = opts
	f.lastCtx = ctx
	f.times = append(f.times, time.Now())
	delay, err, failFirst := f.delay, f.err, f.failFirst
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}

	if err != nil && (failFirst == 0 || call <= failFirst) {
		return "", 0, 0, err
	}
	return f.response, f.tokensIn, f.tokensOut, nil
}

func (f *fakeCore) GetModel() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model
}

func (f *fakeCore) SetModel(model string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.model = model
}

func (f *fakeCore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
