package queue

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

func runPair(t *testing.T, p Params, unit clock.Unit) (ProducerStats, ConsumerStats, *trace.Log) {
	t.Helper()
	q, err := Open(p.Capacity)
	require.NoError(t, err)
	defer q.Close()

	log := trace.NewLog(nil, clock.Wall{}, unit)
	producer := &Producer{Queue: q, Params: p, Clock: clock.Wall{}, Unit: unit,
		Rec: log.Actor(trace.RoleProducer, "Producer")}
	consumer := &Consumer{Queue: q, Params: p, Clock: clock.Wall{}, Unit: unit,
		Rec: log.Actor(trace.RoleConsumer, "Consumer")}

	var (
		wg         sync.WaitGroup
		pst        ProducerStats
		cst        ConsumerStats
		perr, cerr error
	)
	wg.Add(2)
	go func() { defer wg.Done(); cst, cerr = consumer.Run() }()
	go func() { defer wg.Done(); pst, perr = producer.Run() }()
	wg.Wait()
	require.NoError(t, perr)
	require.NoError(t, cerr)
	return pst, cst, log
}

func TestGenerateItems(t *testing.T) {
	assert.Equal(t, []string{"msg1", "msg2", "msg3"}, GenerateItems(3))
	assert.Empty(t, GenerateItems(0))
	assert.Empty(t, GenerateItems(-1))
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.Capacity = 0
	assert.ErrorIs(t, p.Validate(), ErrInvalidCapacity)

	p = DefaultParams()
	p.ConsumeDelay = -0.1
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.PutTimeout = -1
	assert.Error(t, p.Validate())
}

func TestWorkers_SlowConsumer_ProducerBlocksOrDrops(t *testing.T) {
	// GIVEN capacity 3, a fast producer and a ten times slower consumer
	p := Params{
		Items:        GenerateItems(7),
		Capacity:     3,
		ProduceDelay: 0.1,
		ConsumeDelay: 1.0,
		PutTimeout:   1.0,
	}

	// WHEN seven items are produced
	pst, cst, log := runPair(t, p, clock.Unit(20*time.Millisecond))

	// THEN backpressure is observed and the consumer never sees more than was put
	assert.GreaterOrEqual(t, pst.Blocked, 1, "at least one put must find the queue full")
	assert.NotEmpty(t, trace.Filter(log.Events(), trace.ActionBlocked))
	assert.Equal(t, pst.Put, cst.Received)
	assert.Equal(t, len(p.Items), pst.Put+pst.Dropped)
	assert.LessOrEqual(t, cst.Received, pst.Put)
}

func TestWorkers_TinyTimeout_DropsItems(t *testing.T) {
	// GIVEN capacity 1, no produce delay, a slow consumer and a tiny put timeout
	p := Params{
		Items:        GenerateItems(7),
		Capacity:     1,
		ProduceDelay: 0,
		ConsumeDelay: 0.5,
		PutTimeout:   0.01,
	}

	// WHEN seven items are produced
	pst, cst, log := runPair(t, p, clock.Unit(100*time.Millisecond))

	// THEN some items are dropped with the Queue full marker
	dropped := trace.Filter(log.Events(), trace.ActionDropped)
	require.NotEmpty(t, dropped)
	for _, e := range dropped {
		assert.Contains(t, e.String(), trace.MarkerQueueFull)
	}
	assert.Less(t, cst.Received, 7)
	assert.Equal(t, pst.Dropped, len(dropped))
}

func TestWorkers_ConsumedOrderMatchesAcceptedOrder(t *testing.T) {
	p := Params{
		Items:        GenerateItems(12),
		Capacity:     2,
		ProduceDelay: 0,
		ConsumeDelay: 0.2,
		PutTimeout:   0.3,
	}
	pst, cst, _ := runPair(t, p, clock.Unit(10*time.Millisecond))

	// Strict FIFO over successfully inserted items; dropped items never show up.
	assert.Equal(t, pst.Accepted, cst.Payloads)
	assert.True(t, testutil.IsSubsequence(cst.Payloads, p.Items))
}

func TestWorkers_FastConsumer_NothingDropped(t *testing.T) {
	p := Params{
		Items:        GenerateItems(5),
		Capacity:     5,
		ProduceDelay: 0.1,
		ConsumeDelay: 0,
		PutTimeout:   1.0,
	}
	pst, cst, log := runPair(t, p, clock.Unit(10*time.Millisecond))

	assert.Zero(t, pst.Dropped)
	assert.Equal(t, p.Items, cst.Payloads)
	done := trace.Filter(log.Events(), trace.ActionDone)
	assert.Len(t, done, 2, "producer and consumer both report completion")
}
