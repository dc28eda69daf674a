package server

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/remotesim/cloud/cluster"
	"github.com/twitter/remotesim/common/errors"
	"github.com/twitter/remotesim/common/stats"
	"github.com/twitter/remotesim/worker/client"
)

func mockSession(ctrl *gomock.Controller, addr string) *client.MockSession {
	s := client.NewMockSession(ctrl)
	s.EXPECT().Host().Return(cluster.Host{Addr: addr}).AnyTimes()
	return s
}

func TestMonitorTickClassifies(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	running := mockSession(ctrl, "running")
	running.EXPECT().PollProgress(gomock.Any()).Return(client.Progress{Fraction: 0.25, State: client.RunInProgress}, nil)
	finished := mockSession(ctrl, "finished")
	finished.EXPECT().PollProgress(gomock.Any()).Return(client.Progress{Fraction: 0.99, State: client.RunFinished}, nil)
	broken := mockSession(ctrl, "broken")
	broken.EXPECT().PollProgress(gomock.Any()).Return(client.Progress{}, fmt.Errorf("connection reset"))
	idle := mockSession(ctrl, "idle")
	idle.EXPECT().PollProgress(gomock.Any()).Return(client.Progress{Fraction: -1, State: client.RunIdle}, nil)

	m := NewMonitor(time.Second, stats.NilStatsReceiver())
	events := m.Tick(context.Background(), []client.Session{running, finished, broken, idle})

	require.Len(t, events, 4)
	assert.Equal(t, EventRunning, events[0].Kind)
	assert.Equal(t, 0.25, events[0].Fraction)
	assert.Equal(t, running, events[0].Session)
	assert.Equal(t, EventCompleted, events[1].Kind)
	assert.Equal(t, 1.0, events[1].Fraction)
	assert.Equal(t, EventFailed, events[2].Kind)
	assert.EqualError(t, events[2].Err, "connection reset")
	assert.Equal(t, EventFailed, events[3].Kind)
	assert.Equal(t, errors.JobTransportFailure, errors.KindOf(events[3].Err))
}

func TestMonitorTickTimesOutSlowPoll(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	release := make(chan struct{})
	defer close(release)
	slow := mockSession(ctrl, "slow")
	slow.EXPECT().PollProgress(gomock.Any()).DoAndReturn(func(ctx context.Context) (client.Progress, error) {
		<-release
		return client.Progress{State: client.RunInProgress}, nil
	})
	fast := mockSession(ctrl, "fast")
	fast.EXPECT().PollProgress(gomock.Any()).Return(client.Progress{Fraction: 0.5, State: client.RunInProgress}, nil)

	m := NewMonitor(50*time.Millisecond, stats.NilStatsReceiver())
	start := time.Now()
	events := m.Tick(context.Background(), []client.Session{slow, fast})

	assert.True(t, time.Since(start) < time.Second)
	assert.Equal(t, EventFailed, events[0].Kind)
	assert.Equal(t, errors.JobTransportFailure, errors.KindOf(events[0].Err))
	assert.Equal(t, EventRunning, events[1].Kind)
}

func TestMonitorTickCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	release := make(chan struct{})
	defer close(release)
	ctx, cancel := context.WithCancel(context.Background())
	slow := mockSession(ctrl, "slow")
	slow.EXPECT().PollProgress(gomock.Any()).DoAndReturn(func(context.Context) (client.Progress, error) {
		cancel()
		<-release
		return client.Progress{}, nil
	})

	m := NewMonitor(time.Minute, stats.NilStatsReceiver())
	events := m.Tick(ctx, []client.Session{slow})
	assert.Equal(t, EventUnknown, events[0].Kind)
	assert.NoError(t, events[0].Err)
}

func TestTickIntervalBacksOffUntilChange(t *testing.T) {
	ti := newTickInterval(10*time.Millisecond, 40*time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, ti.Next(true))
	assert.Equal(t, 15*time.Millisecond, ti.Next(false))
	assert.Equal(t, 22500*time.Microsecond, ti.Next(false))
	assert.Equal(t, 33750*time.Microsecond, ti.Next(false))
	assert.Equal(t, 40*time.Millisecond, ti.Next(false))
	assert.Equal(t, 40*time.Millisecond, ti.Next(false))
	assert.Equal(t, 10*time.Millisecond, ti.Next(true))
}
