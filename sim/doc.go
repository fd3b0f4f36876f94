// Package sim runs the transport scenarios of ipc-sim.
//
// # Reading Guide
//
// Start with these three files:
//   - scenario.go: the closed set of scenarios (pipe, queue, guarded and unguarded shared region)
//   - runner.go: the run lifecycle (Idle → Running → Completed | Failed) and the worker goroutines
//   - result.go: RunResult and its summary block
//
// # Architecture
//
// The transports and their producer/consumer roles live in sub-packages:
//   - sim/pipe/: OS pipe carrying JSON frames, latency classification
//   - sim/queue/: bounded FIFO with timed puts and a completion sentinel
//   - sim/shm/: named mmap-backed region, guarded and unguarded access, read classification
//   - sim/trace/: the event log every role writes to
//   - sim/clock/: wall clock and the unit that scales all delays
//
// The runner owns every channel: it creates it, hands it to both roles and
// releases it in teardown.go once both roles returned. Metrics (metrics.go)
// observe the event log through a hook and are written out in the Prometheus
// text format.
package sim
