package orchestrator_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/orchestrator"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

type fakeFocuser struct {
	mu      sync.Mutex
	results map[string]types.ProcessingStatus
	block   map[string]bool
	calls   []string
}

func (f *fakeFocuser) FocusAndWait(ctx context.Context, path string) (types.ProcessingStatus, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	block := f.block[path]
	st, ok := f.results[path]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return types.StatusPending, ctx.Err()
	}
	if !ok {
		st = types.StatusReady
	}
	return st, nil
}

func (f *fakeFocuser) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func waitResult(t *testing.T, ch <-chan orchestrator.Result) orchestrator.Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("sequence did not complete")
		return orchestrator.Result{}
	}
}

func TestScanSequentially_RunsInOrder(t *testing.T) {
	f := &fakeFocuser{results: map[string]types.ProcessingStatus{"/b": types.StatusError}}
	o := orchestrator.New(f)

	got := make(chan orchestrator.Result, 1)
	o.ScanSequentially(context.Background(), []string{"/a", "/b", "/c"}, func(r orchestrator.Result) { got <- r })

	r := waitResult(t, got)
	assert.Equal(t, []string{"/a", "/b", "/c"}, f.callList())
	assert.False(t, r.Preempted)
	assert.NoError(t, r.Err)
	assert.Equal(t, types.StatusError, r.Targets[1].Status)
	o.Wait()
	assert.False(t, o.Running())
}

func TestScanSequentially_StopsWhenPreempted(t *testing.T) {
	f := &fakeFocuser{results: map[string]types.ProcessingStatus{"/b": types.StatusPending}}
	o := orchestrator.New(f)

	got := make(chan orchestrator.Result, 1)
	o.ScanSequentially(context.Background(), []string{"/a", "/b", "/c"}, func(r orchestrator.Result) { got <- r })

	r := waitResult(t, got)
	assert.True(t, r.Preempted)
	assert.Equal(t, []string{"/a", "/b"}, f.callList())
}

func TestScanSequentially_ReplacesRunningSequence(t *testing.T) {
	f := &fakeFocuser{block: map[string]bool{"/slow": true}}
	o := orchestrator.New(f)

	first := make(chan orchestrator.Result, 1)
	o.ScanSequentially(context.Background(), []string{"/slow", "/never"}, func(r orchestrator.Result) { first <- r })
	require.Eventually(t, func() bool { return len(f.callList()) == 1 }, time.Second, time.Millisecond)

	assert.True(t, o.Running())

	second := make(chan orchestrator.Result, 1)
	o.ScanSequentially(context.Background(), []string{"/fast"}, func(r orchestrator.Result) { second <- r })

	r1 := waitResult(t, first)
	assert.ErrorIs(t, r1.Err, context.Canceled)
	r2 := waitResult(t, second)
	assert.Equal(t, []orchestrator.TargetStatus{{Path: "/fast", Status: types.StatusReady}}, r2.Targets)
	assert.NotContains(t, f.callList(), "/never")
}

func TestCancelAndIgnoreCallback(t *testing.T) {
	f := &fakeFocuser{block: map[string]bool{"/slow": true}}
	o := orchestrator.New(f)

	called := false
	o.ScanSequentially(context.Background(), []string{"/slow"}, func(orchestrator.Result) { called = true })
	require.Eventually(t, o.Running, time.Second, time.Millisecond)

	o.IgnoreCallback()
	o.Cancel()
	o.Wait()

	assert.False(t, called)
	assert.False(t, o.Running())
}

func TestCompletionFunc_MayQueryAndRestart(t *testing.T) {
	f := &fakeFocuser{}
	o := orchestrator.New(f)

	chained := make(chan orchestrator.Result, 1)
	running := make(chan bool, 1)
	o.ScanSequentially(context.Background(), []string{"/a"}, func(orchestrator.Result) {
		running <- o.Running()
		o.ScanSequentially(context.Background(), []string{"/b"}, func(r orchestrator.Result) { chained <- r })
	})

	assert.False(t, <-running)
	r := waitResult(t, chained)
	assert.Equal(t, []orchestrator.TargetStatus{{Path: "/b", Status: types.StatusReady}}, r.Targets)
	assert.Equal(t, []string{"/a", "/b"}, f.callList())
}

func TestCancel_FromCompletionFunc(t *testing.T) {
	o := orchestrator.New(&fakeFocuser{})

	returned := make(chan struct{})
	o.ScanSequentially(context.Background(), []string{"/a"}, func(orchestrator.Result) {
		o.Cancel()
		close(returned)
	})

	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("Cancel inside the completion callback blocked")
	}
	o.Wait()
}
