package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/ipc-sim/sim"
	"github.com/inference-sim/ipc-sim/sim/clock"
	"github.com/inference-sim/ipc-sim/sim/pipe"
	"github.com/inference-sim/ipc-sim/sim/queue"
	"github.com/inference-sim/ipc-sim/sim/shm"
)

var (
	// Scenario selection
	modeName        string // --mode; empty runs every mode
	selectPipe      bool
	selectQueue     bool
	selectShm       bool
	selectShmNoLock bool

	// Run settings
	logLevel     string        // Log verbosity level
	timeUnit     time.Duration // Wall-clock length of one unit
	pauseUnits   float64       // Pause between runs when running every mode, in units
	defaultsPath string        // Optional defaults.yaml with per-transport parameters
	shmDir       string        // Directory for shared region names
	metricsFile  string        // Prometheus textfile written after the last run
	printSummary bool          // Print the run summary block after each run

	// Pipe parameters
	messages    []string // Payloads sent through the pipe
	senderDelay float64  // Sender delay per message, in units
	threshold   float64  // Bottleneck latency threshold, in units
	expectCount int      // Messages the receiver waits for; 0 means all

	// Queue parameters
	queueItems   int     // Number of items produced
	capacity     int     // Queue capacity
	produceDelay float64 // Producer delay per item, in units
	consumeDelay float64 // Consumer delay per item, in units
	putTimeout   float64 // Longest wait for space, in units

	// Shared region parameters
	sizeBytes  int     // Region size in bytes
	iterations int     // Writes and reads per run
	writeDelay float64 // Writer delay, in units
	readDelay  float64 // Reader delay, in units
	startValue int64   // First value written
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "ipc-sim",
	Short: "Teaching harness for pipe, bounded queue and shared memory transports",
}

// runCmd runs the selected scenario, or all four in sequence
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a transport scenario (pipe, queue, shm, shm-nolock)",
	Long: `Run a transport scenario and print its events, one per line.

Without a mode selector the four scenarios run one after the other.
Delays are given in units; --time-unit sets the wall-clock length of one unit.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runScenarios(cmd, cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// settings are the run settings after applying flag > env > built-in precedence.
type settings struct {
	logLevel     string
	timeUnit     time.Duration
	pause        float64
	defaultsPath string
	shmDir       string
	metricsFile  string
}

// resolveSettings applies environment values to every run setting whose flag was not given.
func resolveSettings(cmd *cobra.Command, env Env) settings {
	s := settings{
		logLevel:     logLevel,
		timeUnit:     timeUnit,
		pause:        pauseUnits,
		defaultsPath: defaultsPath,
		shmDir:       shmDir,
		metricsFile:  metricsFile,
	}
	changed := cmd.Flags().Changed
	if !changed("log") && env.Log != "" {
		s.logLevel = env.Log
	}
	if !changed("time-unit") && env.TimeUnit > 0 {
		s.timeUnit = env.TimeUnit
	}
	if !changed("pause") && env.Pause != nil {
		s.pause = *env.Pause
	}
	if !changed("defaults") && env.Defaults != "" {
		s.defaultsPath = env.Defaults
	}
	if !changed("shm-dir") && env.ShmDir != "" {
		s.shmDir = env.ShmDir
	}
	if !changed("metrics-file") && env.MetricsFile != "" {
		s.metricsFile = env.MetricsFile
	}
	return s
}

// selectedModes returns the modes picked by --mode or a selector flag, or every mode.
func selectedModes(cmd *cobra.Command) ([]sim.Mode, error) {
	switch {
	case selectPipe:
		return []sim.Mode{sim.ModePipe}, nil
	case selectQueue:
		return []sim.Mode{sim.ModeQueue}, nil
	case selectShm:
		return []sim.Mode{sim.ModeShared}, nil
	case selectShmNoLock:
		return []sim.Mode{sim.ModeSharedNoGuard}, nil
	}
	return sim.ParseMode(modeName)
}

// buildScenario starts from the built-in scenario of mode, then applies the
// defaults file, then every flag given on the command line.
func buildScenario(cmd *cobra.Command, mode sim.Mode, cfg Config) (sim.Scenario, error) {
	sc, err := sim.DefaultScenario(mode)
	if err != nil {
		return nil, err
	}
	changed := cmd.Flags().Changed

	switch s := sc.(type) {
	case sim.PipeScenario:
		cfg.Pipe.apply(&s.Params)
		if changed("messages") {
			s.Params.Messages = append([]string(nil), messages...)
		}
		if changed("sender-delay") {
			s.Params.SenderDelay = senderDelay
		}
		if changed("threshold") {
			s.Params.Threshold = threshold
		}
		if changed("expect") {
			s.Params.ExpectCount = expectCount
		}
		return s, nil

	case sim.QueueScenario:
		if err := cfg.Queue.apply(&s.Params); err != nil {
			return nil, err
		}
		if changed("items") {
			if queueItems < 0 {
				return nil, fmt.Errorf("--items must be >= 0, got %d", queueItems)
			}
			s.Params.Items = queue.GenerateItems(queueItems)
		}
		if changed("capacity") {
			s.Params.Capacity = capacity
		}
		if changed("produce-delay") {
			s.Params.ProduceDelay = produceDelay
		}
		if changed("consume-delay") {
			s.Params.ConsumeDelay = consumeDelay
		}
		if changed("put-timeout") {
			s.Params.PutTimeout = putTimeout
		}
		return s, nil

	case sim.SharedScenario:
		if s.Guarded {
			cfg.Shm.apply(&s.Params)
		} else {
			cfg.ShmNoLock.apply(&s.Params)
		}
		if changed("size-bytes") {
			s.Params.SizeBytes = sizeBytes
		}
		if changed("iterations") {
			s.Params.Iterations = iterations
		}
		if changed("write-delay") {
			s.Params.WriteDelay = writeDelay
		}
		if changed("read-delay") {
			s.Params.ReadDelay = readDelay
		}
		if changed("start-value") {
			s.Params.StartValue = startValue
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported scenario %T", sc)
}

// runScenarios runs every selected scenario and writes the event stream to out.
// It returns an error when the configuration is invalid or any run failed.
func runScenarios(cmd *cobra.Command, out io.Writer) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	s := resolveSettings(cmd, env)

	// Set up logging
	level, err := logrus.ParseLevel(s.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %s", s.logLevel)
	}
	logrus.SetLevel(level)

	if s.timeUnit <= 0 {
		return fmt.Errorf("time unit must be > 0, got %v", s.timeUnit)
	}
	if s.pause < 0 {
		return fmt.Errorf("pause must be >= 0, got %v", s.pause)
	}
	modes, err := selectedModes(cmd)
	if err != nil {
		return err
	}
	var cfg Config
	if s.defaultsPath != "" {
		if cfg, err = loadDefaultsConfig(s.defaultsPath); err != nil {
			return err
		}
	}

	unit := clock.Unit(s.timeUnit)
	metrics := sim.NewMetrics()
	runner := sim.NewRunner(sim.Config{
		Out:     out,
		Unit:    unit,
		ShmDir:  s.shmDir,
		Metrics: metrics,
	})
	logrus.Infof("Starting %d run(s), time unit %v", len(modes), unit)

	failed := 0
	for i, mode := range modes {
		if i > 0 {
			time.Sleep(unit.Duration(s.pause))
		}
		sc, err := buildScenario(cmd, mode, cfg)
		if err != nil {
			return err
		}
		res, err := runner.Run(sc)
		if res == nil {
			return err
		}
		if printSummary {
			res.Print(out)
		}
		if res.State == sim.Failed {
			failed++
		}
	}

	if s.metricsFile != "" {
		if err := metrics.WriteFile(s.metricsFile); err != nil {
			return err
		}
		logrus.Infof("Wrote metrics to %s", s.metricsFile)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d run(s) failed", failed, len(modes))
	}
	logrus.Info("All runs complete.")
	return nil
}

// registerRunFlags binds the run flags of cmd to the package-level flag
// variables, resetting each to its default.
func registerRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.StringVar(&modeName, "mode", "", "Scenario to run (pipe, queue, shm, shm-nolock); empty runs all four")
	flags.BoolVar(&selectPipe, "pipe", false, "Run the pipe scenario")
	flags.BoolVar(&selectQueue, "queue", false, "Run the bounded queue scenario")
	flags.BoolVar(&selectShm, "shm", false, "Run the shared memory scenario with a lock")
	flags.BoolVar(&selectShmNoLock, "shm-nolock", false, "Run the shared memory scenario without a lock")
	cmd.MarkFlagsMutuallyExclusive("mode", "pipe", "queue", "shm", "shm-nolock")

	flags.StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	flags.DurationVar(&timeUnit, "time-unit", time.Duration(clock.DefaultUnit), "Wall-clock length of one unit")
	flags.Float64Var(&pauseUnits, "pause", 1.0, "Pause between runs when running all scenarios, in units")
	flags.StringVar(&defaultsPath, "defaults", "", "YAML file with per-transport defaults")
	flags.StringVar(&shmDir, "shm-dir", "", "Directory for shared memory region names (default /dev/shm)")
	flags.StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the last run")
	flags.BoolVar(&printSummary, "summary", true, "Print a summary block after each run")

	pd := pipe.DefaultParams()
	flags.StringSliceVar(&messages, "messages", pd.Messages, "Comma-separated pipe payloads")
	flags.Float64Var(&senderDelay, "sender-delay", pd.SenderDelay, "Pipe sender delay per message, in units")
	flags.Float64Var(&threshold, "threshold", pd.Threshold, "Pipe bottleneck latency threshold, in units")
	flags.IntVar(&expectCount, "expect", 0, "Messages the pipe receiver waits for (0 = all)")

	qd := queue.DefaultParams()
	flags.IntVar(&queueItems, "items", len(qd.Items), "Number of queue items")
	flags.IntVar(&capacity, "capacity", qd.Capacity, "Queue capacity")
	flags.Float64Var(&produceDelay, "produce-delay", qd.ProduceDelay, "Producer delay per item, in units")
	flags.Float64Var(&consumeDelay, "consume-delay", qd.ConsumeDelay, "Consumer delay per item, in units")
	flags.Float64Var(&putTimeout, "put-timeout", qd.PutTimeout, "Longest wait for queue space, in units")

	sd := shm.DefaultParams(true)
	flags.IntVar(&sizeBytes, "size-bytes", sd.SizeBytes, "Shared region size in bytes")
	flags.IntVar(&iterations, "iterations", sd.Iterations, "Shared region writes and reads per run")
	flags.Float64Var(&writeDelay, "write-delay", sd.WriteDelay, "Shared region writer delay, in units")
	flags.Float64Var(&readDelay, "read-delay", sd.ReadDelay, "Shared region reader delay, in units")
	flags.Int64Var(&startValue, "start-value", sd.StartValue, "First value written (default 1000 with lock, 1 without)")
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	registerRunFlags(runCmd)

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
