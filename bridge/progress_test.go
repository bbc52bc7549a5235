package bridge_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apollos-finance/bridge-tracker/bridge"
	"github.com/apollos-finance/bridge-tracker/entity"
)

type progressRecorder struct {
	mu     sync.Mutex
	states []bridge.ProgressState
}

func (r *progressRecorder) record(s bridge.ProgressState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *progressRecorder) all() []bridge.ProgressState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bridge.ProgressState(nil), r.states...)
}

func (r *progressRecorder) indexes() []int {
	var res []int
	for _, s := range r.all() {
		res = append(res, s.Index)
	}
	return res
}

func TestProgress_RunsToCompletion(t *testing.T) {
	t.Parallel()
	rec := new(progressRecorder)
	p := bridge.NewProgress(5*time.Millisecond, 20*time.Millisecond, rec.record)
	defer p.Stop()

	p.Start(entity.StepCount)
	require.Eventually(t, func() bool {
		s := p.State()
		return s.Completed && !s.Busy
	}, time.Second, 5*time.Millisecond)

	states := rec.all()
	require.Equal(t, []int{0, 1, 2, 3, 4, 4}, rec.indexes())
	for i, s := range states[:len(states)-1] {
		require.True(t, s.Busy, i)
	}
	require.False(t, states[len(states)-1].Busy)
	require.Equal(t, "Lock USDC on Base", states[0].Label)
	require.Equal(t, "Mint afToken to your wallet", states[3].Label)
	require.Empty(t, states[4].Label)
}

func TestProgress_Limit(t *testing.T) {
	t.Parallel()
	rec := new(progressRecorder)
	p := bridge.NewProgress(5*time.Millisecond, 10*time.Millisecond, rec.record)
	defer p.Stop()

	p.Start(1)
	require.Eventually(t, func() bool { return p.State().Index == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, p.State().Index)
	require.True(t, p.State().Busy)

	p.SetLimit(2)
	require.Eventually(t, func() bool { return p.State().Index == 2 }, time.Second, 5*time.Millisecond)

	p.SetLimit(entity.StepCount)
	require.Eventually(t, func() bool {
		s := p.State()
		return s.Completed && !s.Busy
	}, time.Second, 5*time.Millisecond)

	indexes := rec.indexes()
	for i := 1; i < len(indexes); i++ {
		require.GreaterOrEqual(t, indexes[i], indexes[i-1], indexes)
	}
	require.Equal(t, entity.StepCount, indexes[len(indexes)-1])
}

func TestProgress_LoweredLimitWithPendingTimer(t *testing.T) {
	t.Parallel()
	rec := new(progressRecorder)
	p := bridge.NewProgress(20*time.Millisecond, 10*time.Millisecond, rec.record)
	defer p.Stop()

	p.Start(entity.StepCount)
	p.SetLimit(0)
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 0, p.State().Index)
	require.Equal(t, []int{0}, rec.indexes())

	p.SetLimit(2)
	require.Eventually(t, func() bool { return p.State().Index == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, 2, p.State().Index)
}

func TestProgress_Complete(t *testing.T) {
	t.Parallel()
	rec := new(progressRecorder)
	p := bridge.NewProgress(5*time.Millisecond, 20*time.Millisecond, rec.record)
	defer p.Stop()

	p.Start(0)
	p.Complete()
	s := p.State()
	require.Equal(t, entity.StepCount, s.Index)
	require.True(t, s.Busy)
	require.True(t, s.Completed)

	require.Eventually(t, func() bool { return !p.State().Busy }, time.Second, 5*time.Millisecond)
	require.Equal(t, []int{0, 4, 4}, rec.indexes())
}

func TestProgress_StopCancelsTimers(t *testing.T) {
	t.Parallel()
	rec := new(progressRecorder)
	p := bridge.NewProgress(10*time.Millisecond, 10*time.Millisecond, rec.record)

	p.Start(entity.StepCount)
	p.Stop()
	time.Sleep(100 * time.Millisecond)
	require.Len(t, rec.all(), 1)

	p.Start(entity.StepCount)
	p.Complete()
	p.Reset()
	require.Len(t, rec.all(), 1)
}

func TestProgress_Reset(t *testing.T) {
	t.Parallel()
	rec := new(progressRecorder)
	p := bridge.NewProgress(10*time.Millisecond, 10*time.Millisecond, rec.record)
	defer p.Stop()

	p.Start(entity.StepCount)
	p.Reset()
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, bridge.ProgressState{Index: entity.StepNotStarted}, p.State())
	require.Equal(t, []int{0, -1}, rec.indexes())
}
