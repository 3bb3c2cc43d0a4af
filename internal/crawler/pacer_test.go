package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerSpacesDispatches(t *testing.T) {
	interval := 30 * time.Millisecond
	p := NewPacer(interval)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(context.Background(), "shop.example", 0))
	}
	elapsed := time.Since(start)

	// First dispatch is immediate; the next two each wait the interval.
	assert.GreaterOrEqual(t, elapsed, 2*interval-5*time.Millisecond)
}

func TestPacerSharedAcrossHosts(t *testing.T) {
	interval := 30 * time.Millisecond
	p := NewPacer(interval)

	start := time.Now()
	require.NoError(t, p.Wait(context.Background(), "a.example", 0))
	require.NoError(t, p.Wait(context.Background(), "b.example", 0))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, interval-5*time.Millisecond,
		"pacing applies across hosts, not per host")
}

func TestPacerHonorsCrawlDelay(t *testing.T) {
	p := NewPacer(0)
	delay := 40 * time.Millisecond

	start := time.Now()
	require.NoError(t, p.Wait(context.Background(), "shop.example", delay))
	require.NoError(t, p.Wait(context.Background(), "shop.example", delay))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, delay-5*time.Millisecond)
}

func TestPacerCrawlDelayClamped(t *testing.T) {
	p := NewPacer(0)

	start := time.Now()
	require.NoError(t, p.Wait(context.Background(), "shop.example", time.Hour))
	elapsed := time.Since(start)

	// The first dispatch for a host never waits; the clamp only matters on
	// the follow-up, so this returns immediately.
	assert.Less(t, elapsed, 100*time.Millisecond)
}

func TestPacerRespondsToCancellation(t *testing.T) {
	p := NewPacer(time.Hour)
	require.NoError(t, p.Wait(context.Background(), "shop.example", 0))

	// The limiter reports a wait that cannot fit the deadline as a plain
	// string error; Wait must still surface the context sentinel.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Wait(ctx, "shop.example", 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	err = p.Wait(cancelled, "shop.example", 0)
	assert.ErrorIs(t, err, context.Canceled)
}
