package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/ipc-sim/sim/pipe"
	"github.com/inference-sim/ipc-sim/sim/queue"
	"github.com/inference-sim/ipc-sim/sim/shm"
)

// envPrefix prefixes every environment variable read by the CLI.
const envPrefix = "IPCSIM"

// Env holds settings taken from IPCSIM_* environment variables.
// Unset variables leave the zero value and do not override flag defaults.
type Env struct {
	Log         string        `envconfig:"LOG"`
	TimeUnit    time.Duration `envconfig:"TIME_UNIT"`
	ShmDir      string        `envconfig:"SHM_DIR"`
	MetricsFile string        `envconfig:"METRICS_FILE"`
	Defaults    string        `envconfig:"DEFAULTS"`
	Pause       *float64      `envconfig:"PAUSE"`
}

func loadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return Env{}, fmt.Errorf("environment: %w", err)
	}
	return env, nil
}

// Config represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Version   string         `yaml:"version"`
	Pipe      PipeDefaults   `yaml:"pipe"`
	Queue     QueueDefaults  `yaml:"queue"`
	Shm       SharedDefaults `yaml:"shm"`
	ShmNoLock SharedDefaults `yaml:"shm_nolock"`
}

// PipeDefaults are the pipe parameters of defaults.yaml. Absent keys keep the built-in values.
type PipeDefaults struct {
	Messages    []string `yaml:"messages"`
	SenderDelay *float64 `yaml:"sender_delay"`
	Threshold   *float64 `yaml:"threshold"`
	ExpectCount *int     `yaml:"expect_count"`
}

func (d PipeDefaults) apply(p *pipe.Params) {
	if d.Messages != nil {
		p.Messages = append([]string(nil), d.Messages...)
	}
	setIf(&p.SenderDelay, d.SenderDelay)
	setIf(&p.Threshold, d.Threshold)
	setIf(&p.ExpectCount, d.ExpectCount)
}

// QueueDefaults are the queue parameters of defaults.yaml.
type QueueDefaults struct {
	Items        *int     `yaml:"items"`
	Capacity     *int     `yaml:"capacity"`
	ProduceDelay *float64 `yaml:"produce_delay"`
	ConsumeDelay *float64 `yaml:"consume_delay"`
	PutTimeout   *float64 `yaml:"put_timeout"`
}

func (d QueueDefaults) apply(p *queue.Params) error {
	if d.Items != nil {
		if *d.Items < 0 {
			return fmt.Errorf("queue items must be >= 0, got %d", *d.Items)
		}
		p.Items = queue.GenerateItems(*d.Items)
	}
	setIf(&p.Capacity, d.Capacity)
	setIf(&p.ProduceDelay, d.ProduceDelay)
	setIf(&p.ConsumeDelay, d.ConsumeDelay)
	setIf(&p.PutTimeout, d.PutTimeout)
	return nil
}

// SharedDefaults are the shared region parameters of one mode in defaults.yaml.
type SharedDefaults struct {
	SizeBytes  *int     `yaml:"size_bytes"`
	Iterations *int     `yaml:"iterations"`
	WriteDelay *float64 `yaml:"write_delay"`
	ReadDelay  *float64 `yaml:"read_delay"`
	StartValue *int64   `yaml:"start_value"`
}

func (d SharedDefaults) apply(p *shm.Params) {
	setIf(&p.SizeBytes, d.SizeBytes)
	setIf(&p.Iterations, d.Iterations)
	setIf(&p.WriteDelay, d.WriteDelay)
	setIf(&p.ReadDelay, d.ReadDelay)
	setIf(&p.StartValue, d.StartValue)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// loadDefaultsConfig parses a defaults file into a Config struct.
// Uses strict field checking: a misspelled key is an error.
func loadDefaultsConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read defaults file: %w", err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse defaults file %s: %w", path, err)
	}
	return cfg, nil
}
