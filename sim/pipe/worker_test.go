package pipe

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/ipc-sim/sim/clock"
	"github.com/inference-sim/ipc-sim/sim/internal/testutil"
	"github.com/inference-sim/ipc-sim/sim/trace"
)

// testUnit keeps the worker tests short while leaving a wide margin around
// the 2.0 unit threshold.
const testUnit = clock.Unit(100 * time.Millisecond)

func runPair(t *testing.T, p Params) (SenderStats, ReceiverStats, *trace.Log) {
	t.Helper()
	send, recv, err := Open()
	require.NoError(t, err)

	log := trace.NewLog(nil, clock.Wall{}, testUnit)
	sender := &Sender{End: send, Params: p, Clock: clock.Wall{}, Unit: testUnit,
		Rec: log.Actor(trace.RoleProducer, "Sender")}
	receiver := &Receiver{End: recv, Params: p, Clock: clock.Wall{}, Unit: testUnit,
		Rec: log.Actor(trace.RoleConsumer, "Receiver")}

	var (
		wg         sync.WaitGroup
		sst        SenderStats
		rst        ReceiverStats
		serr, rerr error
	)
	wg.Add(2)
	go func() { defer wg.Done(); rst, rerr = receiver.Run() }()
	go func() { defer wg.Done(); sst, serr = sender.Run() }()
	wg.Wait()
	require.NoError(t, serr)
	require.NoError(t, rerr)
	return sst, rst, log
}

func TestClassify(t *testing.T) {
	threshold := 2 * time.Second
	tests := []struct {
		name    string
		latency time.Duration
		want    Verdict
	}{
		{"well below", 100 * time.Millisecond, OnTime},
		{"just below", 1999 * time.Millisecond, OnTime},
		{"equal is on time", 2 * time.Second, OnTime},
		{"just above", 2001 * time.Millisecond, Bottleneck},
		{"far above", 10 * time.Second, Bottleneck},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.latency, threshold))
		})
	}
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.SenderDelay = -1
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.Threshold = 0
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.ExpectCount = -2
	assert.Error(t, p.Validate())
}

func TestParams_Expect_DefaultsToMessageCount(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 5, p.Expect())
	p.ExpectCount = 3
	assert.Equal(t, 3, p.Expect())
}

func TestWorkers_DelayBelowThreshold_NoBottlenecks(t *testing.T) {
	// GIVEN a 1.5 unit sender delay and a 2.0 unit threshold
	p := DefaultParams()
	p.SenderDelay = 1.5

	// WHEN the pair runs
	sst, rst, log := runPair(t, p)

	// THEN every message is received on time, in order
	assert.Equal(t, 5, sst.Sent)
	assert.Equal(t, 5, rst.Received)
	assert.Zero(t, rst.Bottlenecks)
	assert.Equal(t, p.Messages, rst.Payloads)
	assert.Empty(t, trace.Filter(log.Events(), trace.ActionBottleneck))
	assert.Len(t, trace.Filter(log.Events(), trace.ActionReceived), 5)
}

func TestWorkers_DelayAboveThreshold_EveryMessageIsBottleneck(t *testing.T) {
	// GIVEN a 2.5 unit sender delay
	p := DefaultParams()
	p.SenderDelay = 2.5

	// WHEN the pair runs
	_, rst, log := runPair(t, p)

	// THEN every message is flagged and its rendered line carries the marker
	assert.Equal(t, 5, rst.Bottlenecks)
	for _, e := range trace.Filter(log.Events(), trace.ActionBottleneck) {
		assert.Contains(t, e.String(), trace.MarkerBottleneck)
		require.NotNil(t, e.Latency)
		assert.Greater(t, *e.Latency, testUnit.Duration(2.0))
	}
	assert.Equal(t, p.Messages, trace.Payloads(log.Events(), trace.ActionBottleneck))
}

func TestWorkers_StreamEndsBeforeExpectedCount_ReportsUnderflow(t *testing.T) {
	// GIVEN a receiver expecting more messages than are sent
	p := Params{Messages: []string{"a", "b", "c"}, Threshold: DefaultThreshold, ExpectCount: 5}

	// WHEN the pair runs
	_, rst, log := runPair(t, p)

	// THEN the receiver stops at end of stream and reports the shortfall
	assert.True(t, rst.EndedEarly)
	assert.Equal(t, 3, rst.Received)
	underflows := trace.Filter(log.Events(), trace.ActionUnderflow)
	require.Len(t, underflows, 1)
	assert.Contains(t, underflows[0].Text, "received 3 of 5")
}

func TestWorkers_ExpectedCountReachedFirst_StopsWithoutUnderflow(t *testing.T) {
	// GIVEN a receiver expecting fewer messages than are sent
	p := Params{Messages: []string{"a", "b", "c", "d", "e"}, Threshold: DefaultThreshold, ExpectCount: 2}

	// WHEN the pair runs
	sst, rst, log := runPair(t, p)

	// THEN the receiver stops at the count and the sender accounts for every message
	assert.False(t, rst.EndedEarly)
	assert.Equal(t, []string{"a", "b"}, rst.Payloads)
	assert.Equal(t, 5, sst.Sent+sst.Undelivered)
	assert.Empty(t, trace.Filter(log.Events(), trace.ActionUnderflow))
}

func TestWorkers_ReceivedIsSubsequenceOfSent(t *testing.T) {
	p := Params{Messages: []string{"1", "2", "3", "4", "5", "6", "7", "8"}, Threshold: DefaultThreshold}
	_, _, log := runPair(t, p)

	sent := trace.Payloads(log.Events(), trace.ActionSent)
	got := append(trace.Payloads(log.Events(), trace.ActionReceived),
		trace.Payloads(log.Events(), trace.ActionBottleneck)...)
	assert.True(t, testutil.IsSubsequence(trace.Payloads(log.Events(), trace.ActionReceived), sent))
	assert.ElementsMatch(t, p.Messages, got)
}
