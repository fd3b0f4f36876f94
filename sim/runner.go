package sim

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/ipc-sim/sim/clock"
	"github.com/inference-sim/ipc-sim/sim/pipe"
	"github.com/inference-sim/ipc-sim/sim/queue"
	"github.com/inference-sim/ipc-sim/sim/shm"
	"github.com/inference-sim/ipc-sim/sim/trace"
)

// Config holds the settings shared by every run of a Runner.
type Config struct {
	Out     io.Writer   // event stream, one line per event; nil keeps events in memory only
	Clock   clock.Clock // nil means clock.Wall
	Unit    clock.Unit  // 0 means clock.DefaultUnit
	ShmDir  string      // directory for shared region names; "" means shm.DefaultDir()
	Metrics *Metrics    // optional
}

// Runner runs scenarios one at a time. Each run builds a fresh channel,
// spawns one producer and one consumer goroutine, waits for both and tears
// the channel down.
type Runner struct {
	cfg Config

	mu    sync.Mutex
	state State
}

// NewRunner creates an Idle runner.
func NewRunner(cfg Config) *Runner {
	if cfg.Clock == nil {
		cfg.Clock = clock.Wall{}
	}
	if cfg.Unit == 0 {
		cfg.Unit = clock.DefaultUnit
	}
	if cfg.ShmDir == "" {
		cfg.ShmDir = shm.DefaultDir()
	}
	return &Runner{cfg: cfg, state: Idle}
}

// State returns the state of the runner: Idle before the first run, Running
// during a run, then the final state of the last run.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// outcome is what the workers of one run observed.
type outcome struct {
	delivered int
	unlinked  bool // a shared region name was removed at teardown
}

// Run executes sc and blocks until both workers finished and the channel is
// torn down. It returns ErrRunnerBusy while another run is in progress and an
// *InvalidScenarioError, leaving the state unchanged, when sc does not
// validate. A run that cannot create its channel ends Failed with a
// *ChannelCreationError; the result is returned alongside the error.
func (r *Runner) Run(sc Scenario) (*RunResult, error) {
	if sc == nil {
		return nil, errors.New("sim: nil scenario")
	}

	r.mu.Lock()
	if r.state == Running {
		r.mu.Unlock()
		return nil, ErrRunnerBusy
	}
	log := trace.NewLog(r.cfg.Out, r.cfg.Clock, r.cfg.Unit)
	mainRec := log.Actor(trace.RoleRunner, "Main")
	if err := sc.Validate(); err != nil {
		r.mu.Unlock()
		mainRec.Status(fmt.Sprintf("rejected %s scenario: %v", sc.Mode(), err))
		return nil, &InvalidScenarioError{Mode: sc.Mode(), Err: err}
	}
	r.state = Running
	r.mu.Unlock()

	res := &RunResult{
		RunID: uuid.NewString(),
		Kind:  sc.Kind(),
		Mode:  sc.Mode(),
		Title: sc.Title(),
		Items: sc.Items(),
	}
	if r.cfg.Metrics != nil {
		log.AddHook(r.cfg.Metrics.eventHook(res.Kind, r.cfg.Unit))
	}
	logger := logrus.WithFields(logrus.Fields{"run_id": res.RunID, "mode": res.Mode})
	logger.Info("run started")

	mainRec.Status(fmt.Sprintf("Running %s demo ...", res.Title))
	start := r.cfg.Clock.Now()

	var td teardown
	var out outcome
	var err error
	switch s := sc.(type) {
	case PipeScenario:
		out, err = r.runPipe(s, log, &td)
	case QueueScenario:
		out, err = r.runQueue(s, log, &td)
	case SharedScenario:
		out, err = r.runShared(s, log, mainRec, &td)
	default:
		err = fmt.Errorf("sim: unsupported scenario %T", sc)
	}
	if terr := td.Close(); terr != nil {
		// A leaked channel does not change the outcome of the run.
		mainRec.Status(fmt.Sprintf("teardown incomplete: %v", terr))
		out.unlinked = false
	}

	res.Elapsed = r.cfg.Clock.Now().Sub(start)
	res.ElapsedUnits = r.cfg.Unit.Units(res.Elapsed)
	res.Delivered = out.delivered
	if err != nil {
		res.State = Failed
		res.Err = err
		mainRec.Status(fmt.Sprintf("run failed: %v", err))
		logger.WithError(err).Error("run failed")
	} else {
		res.State = Completed
		finished := "finished."
		if out.unlinked {
			finished += " (unlinked shared memory)"
		}
		log.Actor(trace.RoleRunner, res.Title+" Demo").Status(finished)
		logger.Info("run completed")
	}

	res.Events = log.Events()
	res.Summary = trace.Summarize(res.Events)
	res.Anomalies = res.Summary.Anomalies
	res.Dropped = res.Summary.Counts[trace.ActionDropped]
	latencies := make([]time.Duration, 0, res.Summary.LatencyCount)
	for _, e := range res.Events {
		if e.Latency != nil {
			latencies = append(latencies, *e.Latency)
		}
	}
	res.Latencies = latencyUnits(latencies, r.cfg.Unit.Units)

	if r.cfg.Metrics != nil {
		r.cfg.Metrics.RecordRun(res)
	}
	r.mu.Lock()
	r.state = res.State
	r.mu.Unlock()
	return res, err
}

func (r *Runner) runPipe(sc PipeScenario, log *trace.Log, td *teardown) (outcome, error) {
	send, recv, err := pipe.Open()
	if err != nil {
		return outcome{}, &ChannelCreationError{Kind: KindPipe, Err: err}
	}
	td.add("pipe send end", send)
	td.add("pipe receive end", recv)

	sender := &pipe.Sender{End: send, Params: sc.Params, Clock: r.cfg.Clock, Unit: r.cfg.Unit,
		Rec: log.Actor(trace.RoleProducer, "Sender")}
	receiver := &pipe.Receiver{End: recv, Params: sc.Params, Clock: r.cfg.Clock, Unit: r.cfg.Unit,
		Rec: log.Actor(trace.RoleConsumer, "Receiver")}

	var rst pipe.ReceiverStats
	var g errgroup.Group
	g.Go(func() (err error) {
		rst, err = receiver.Run()
		return err
	})
	g.Go(func() error {
		_, err := sender.Run()
		return err
	})
	err = g.Wait()
	return outcome{delivered: rst.Received}, err
}

func (r *Runner) runQueue(sc QueueScenario, log *trace.Log, td *teardown) (outcome, error) {
	q, err := queue.Open(sc.Params.Capacity)
	if err != nil {
		return outcome{}, &ChannelCreationError{Kind: KindQueue, Err: err}
	}
	producerRec := log.Actor(trace.RoleProducer, "Producer")
	td.addFunc("queue", func() error {
		err := q.Close()
		if n := q.Abandoned(); n > 0 {
			producerRec.Dropped("", fmt.Sprintf("%d item(s) left in the queue at teardown", n))
		}
		return err
	})

	producer := &queue.Producer{Queue: q, Params: sc.Params, Clock: r.cfg.Clock, Unit: r.cfg.Unit,
		Rec: producerRec}
	consumer := &queue.Consumer{Queue: q, Params: sc.Params, Clock: r.cfg.Clock, Unit: r.cfg.Unit,
		Rec: log.Actor(trace.RoleConsumer, "Consumer")}

	var cst queue.ConsumerStats
	var g errgroup.Group
	g.Go(func() (err error) {
		cst, err = consumer.Run()
		return err
	})
	g.Go(func() error {
		_, err := producer.Run()
		return err
	})
	err = g.Wait()
	return outcome{delivered: cst.Received}, err
}

func (r *Runner) runShared(sc SharedScenario, log *trace.Log, mainRec *trace.Recorder, td *teardown) (outcome, error) {
	name := "ipc-sim-" + uuid.NewString()
	region, err := shm.Create(r.cfg.ShmDir, name, sc.Params.SizeBytes)
	if err != nil {
		return outcome{}, &ChannelCreationError{Kind: KindShared, Err: err}
	}
	td.add("shared region "+name, region)
	mainRec.Status(fmt.Sprintf("created shared memory name=%s", region.Name()))

	writerView, err := region.Attach()
	if err != nil {
		return outcome{}, &ChannelCreationError{Kind: KindShared, Err: err}
	}
	td.addFunc("writer view", writerView.Detach)
	readerView, err := region.Attach()
	if err != nil {
		return outcome{}, &ChannelCreationError{Kind: KindShared, Err: err}
	}
	td.addFunc("reader view", readerView.Detach)

	var guard sync.Locker
	suffix := "-NoLock"
	if sc.Guarded {
		guard = &sync.Mutex{}
		suffix = "-Lock"
	}
	writer := &shm.Writer{View: writerView, Guard: guard, Params: sc.Params, Clock: r.cfg.Clock, Unit: r.cfg.Unit,
		Rec: log.Actor(trace.RoleProducer, "Writer"+suffix)}
	reader := &shm.Reader{View: readerView, Guard: guard, Params: sc.Params, Clock: r.cfg.Clock, Unit: r.cfg.Unit,
		Rec: log.Actor(trace.RoleConsumer, "Reader"+suffix)}

	var rst shm.ReaderStats
	var g errgroup.Group
	g.Go(func() (err error) {
		rst, err = reader.Run()
		return err
	})
	g.Go(func() error {
		_, err := writer.Run()
		return err
	})
	err = g.Wait()
	return outcome{delivered: rst.Reads, unlinked: true}, err
}
