package maintenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeEvents struct {
	mu      sync.Mutex
	pending []int64
	drawn   []int64
	fail    map[int64]error
	purged  []int
	listErr error
}

func (f *fakeEvents) Pending(ctx context.Context, limit int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.pending) > limit {
		return append([]int64(nil), f.pending[:limit]...), nil
	}
	return append([]int64(nil), f.pending...), nil
}

func (f *fakeEvents) Draw(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drawn = append(f.drawn, id)
	return f.fail[id]
}

func (f *fakeEvents) Purge(ctx context.Context, days int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purged = append(f.purged, days)
	return 3, nil
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSweep(t *testing.T) {
	f := &fakeEvents{
		pending: []int64{4, 7, 9},
		fail:    map[int64]error{7: errors.New("boom")},
	}

	n := sweep(context.Background(), f, 2, discard)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{4, 7}, f.drawn)
}

func TestSweep_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeEvents{pending: []int64{1, 2, 3}, fail: map[int64]error{}}
	f.fail[1] = context.Canceled
	cancel()

	n := sweep(ctx, f, 10, discard)
	assert.Zero(t, n)
	assert.Equal(t, []int64{1}, f.drawn)
}

func TestSweep_ListError(t *testing.T) {
	f := &fakeEvents{listErr: errors.New("db down")}
	assert.Zero(t, sweep(context.Background(), f, 10, discard))
	assert.Empty(t, f.drawn)
}

func TestStart_RunsSweepImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeEvents{pending: []int64{5}}

	done := make(chan struct{})
	go func() {
		Start(ctx, f, Config{SweepInterval: time.Hour, SweepLimit: 10, PurgeInterval: time.Hour, RetentionDays: 30}, discard)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.drawn) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestPurge(t *testing.T) {
	f := &fakeEvents{}
	purge(context.Background(), f, 30, discard)
	assert.Equal(t, []int{30}, f.purged)
}
