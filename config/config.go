// Package config builds the registry, worker session and scheduler
// configurations from named JSON presets or from a YAML or JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/luci/go-render/render"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/twitter/remotesim/scheduler/domain"
	"github.com/twitter/remotesim/scheduler/perf"
	"github.com/twitter/remotesim/scheduler/registry"
	"github.com/twitter/remotesim/scheduler/server"
	"github.com/twitter/remotesim/worker/client"
)

// How often the registry refreshes its catalog in the background when no
// interval is configured.
const DefaultRefreshInterval = 30 * time.Second

// JSONConfigs holds every section as it appears in a preset or file.
type JSONConfigs struct {
	Registry  RegistryJSONConfig  `json:"Registry" yaml:"Registry"`
	Worker    WorkerJSONConfig    `json:"Worker" yaml:"Worker"`
	Scheduler SchedulerJSONConfig `json:"Scheduler" yaml:"Scheduler"`
}

func (c JSONConfigs) String() string {
	return fmt.Sprintf("\n%s\n%s\n%s", c.Registry, c.Worker, c.Scheduler)
}

type RegistryJSONConfig struct {
	Type            string  `json:"Type" yaml:"Type"`                   // http
	AddressServer   string  `json:"AddressServer" yaml:"AddressServer"` // host directory, host:port or URL
	RequestTimeout  string  `json:"RequestTimeout" yaml:"RequestTimeout"`
	RefreshInterval string  `json:"RefreshInterval" yaml:"RefreshInterval"` // default to 30s
	ProbeRate       float64 `json:"ProbeRate" yaml:"ProbeRate"`             // probes per second, 0 is unlimited
	ProbeBurst      int     `json:"ProbeBurst" yaml:"ProbeBurst"`
}

func (r RegistryJSONConfig) String() string {
	return fmt.Sprintf("RegistryJSONConfig: Type: %s, AddressServer: %s, RequestTimeout: %s, RefreshInterval: %s, "+
		"ProbeRate: %.1f, ProbeBurst: %d",
		r.Type, r.AddressServer, r.RequestTimeout, r.RefreshInterval, r.ProbeRate, r.ProbeBurst)
}

type WorkerJSONConfig struct {
	Type           string `json:"Type" yaml:"Type"` // http
	UserID         string `json:"UserID" yaml:"UserID"`
	RequestTimeout string `json:"RequestTimeout" yaml:"RequestTimeout"`
	HttpTries      int    `json:"HttpTries" yaml:"HttpTries"`
	ConnectRetries uint64 `json:"ConnectRetries" yaml:"ConnectRetries"`
}

func (w WorkerJSONConfig) String() string {
	user := w.UserID
	if i := strings.Index(user, ":"); i >= 0 {
		user = user[:i] + ":****"
	}
	return fmt.Sprintf("WorkerJSONConfig: Type: %s, UserID: %s, RequestTimeout: %s, HttpTries: %d, ConnectRetries: %d",
		w.Type, user, w.RequestTimeout, w.HttpTries, w.ConnectRetries)
}

type SchedulerJSONConfig struct {
	Type            string  `json:"Type" yaml:"Type"` // loadbalanced
	TickInterval    string  `json:"TickInterval" yaml:"TickInterval"`
	MaxTickInterval string  `json:"MaxTickInterval" yaml:"MaxTickInterval"`
	PollTimeout     string  `json:"PollTimeout" yaml:"PollTimeout"`
	AbortTimeout    string  `json:"AbortTimeout" yaml:"AbortTimeout"`
	SkewThreshold   float64 `json:"SkewThreshold" yaml:"SkewThreshold"`
	SkewCheckEvery  int     `json:"SkewCheckEvery" yaml:"SkewCheckEvery"`
	MaxWaves        int     `json:"MaxWaves" yaml:"MaxWaves"`
	MinHostSpeed    float64 `json:"MinHostSpeed" yaml:"MinHostSpeed"`
	LocalWorkers    int     `json:"LocalWorkers" yaml:"LocalWorkers"`
	CurveCacheSize  int     `json:"CurveCacheSize" yaml:"CurveCacheSize"`

	// Batch defaults.
	UseRemote      bool   `json:"UseRemote" yaml:"UseRemote"`
	MaxThreads     int    `json:"MaxThreads" yaml:"MaxThreads"`
	MaxParallelism int    `json:"MaxParallelism" yaml:"MaxParallelism"`
	Rescheduling   string `json:"Rescheduling" yaml:"Rescheduling"` // none, internal or external
	ModelPolicy    string `json:"ModelPolicy" yaml:"ModelPolicy"`   // basic, homogeneous, crfp0, crfp1, pso
	LocalBlocking  bool   `json:"LocalBlocking" yaml:"LocalBlocking"`
}

func (s SchedulerJSONConfig) String() string {
	return fmt.Sprintf("SchedulerJSONConfig: Type: %s, TickInterval: %s, MaxTickInterval: %s, PollTimeout: %s, "+
		"AbortTimeout: %s, SkewThreshold: %.2f, SkewCheckEvery: %d, MaxWaves: %d, MinHostSpeed: %.3f, "+
		"LocalWorkers: %d, CurveCacheSize: %d, UseRemote: %t, MaxThreads: %d, MaxParallelism: %d, "+
		"Rescheduling: %s, ModelPolicy: %s, LocalBlocking: %t",
		s.Type, s.TickInterval, s.MaxTickInterval, s.PollTimeout,
		s.AbortTimeout, s.SkewThreshold, s.SkewCheckEvery, s.MaxWaves, s.MinHostSpeed,
		s.LocalWorkers, s.CurveCacheSize, s.UseRemote, s.MaxThreads, s.MaxParallelism,
		s.Rescheduling, s.ModelPolicy, s.LocalBlocking)
}

// GetConfigText returns the text of a named preset.
func GetConfigText(configSelector string) ([]byte, error) {
	configText, ok := Configs[configSelector]
	if !ok {
		keys := make([]string, 0, len(Configs))
		for k := range Configs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("invalid configuration %s, supported values are %v", configSelector, keys)
	}
	return []byte(configText), nil
}

// GetConfigs returns a named preset, or the contents of the file it names
// when it is not a preset. Sections whose Type is empty take the default
// preset's values.
func GetConfigs(configName string) (*JSONConfigs, error) {
	if _, ok := Configs[configName]; !ok {
		if _, err := os.Stat(configName); err == nil {
			return LoadFile(configName)
		}
	}
	configText, err := GetConfigText(configName)
	if err != nil {
		return nil, err
	}
	c := &JSONConfigs{}
	if err := json.Unmarshal(configText, c); err != nil {
		return nil, fmt.Errorf("couldn't parse config %s: %v", configName, err)
	}
	return c, withDefaults(c)
}

// LoadFile reads a config file, YAML when its extension says so and JSON
// otherwise.
func LoadFile(path string) (*JSONConfigs, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}
	c := &JSONConfigs{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(text, c)
	default:
		err = json.Unmarshal(text, c)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing config file %s", path)
	}
	log.Debugf("Loaded config file %s: %s", path, render.Render(c))
	return c, withDefaults(c)
}

func withDefaults(c *JSONConfigs) error {
	defaultConfig := &JSONConfigs{}
	if err := json.Unmarshal([]byte(Configs["default"]), defaultConfig); err != nil {
		return fmt.Errorf("couldn't parse the default config: %v", err)
	}
	if c.Registry.Type == "" {
		log.Infof("using default Registry config")
		c.Registry = defaultConfig.Registry
	}
	if c.Worker.Type == "" {
		log.Infof("using default Worker config")
		c.Worker = defaultConfig.Worker
	}
	if c.Scheduler.Type == "" {
		log.Infof("using default Scheduler config")
		c.Scheduler = defaultConfig.Scheduler
	}
	return nil
}

// parseDuration treats an empty string as zero, leaving the component's
// default in place.
func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", name)
	}
	return d, nil
}

func (r *RegistryJSONConfig) CreateRegistryConfig() (registry.Config, error) {
	timeout, err := parseDuration("RequestTimeout", r.RequestTimeout)
	if err != nil {
		return registry.Config{}, err
	}
	return registry.Config{
		RequestTimeout: timeout,
		ProbeRate:      r.ProbeRate,
		ProbeBurst:     r.ProbeBurst,
	}, nil
}

func (r *RegistryJSONConfig) CreateRefreshInterval() (time.Duration, error) {
	d, err := parseDuration("RefreshInterval", r.RefreshInterval)
	if err != nil || d > 0 {
		return d, err
	}
	return DefaultRefreshInterval, nil
}

func (w *WorkerJSONConfig) CreateClientConfig() (client.Config, error) {
	timeout, err := parseDuration("RequestTimeout", w.RequestTimeout)
	if err != nil {
		return client.Config{}, err
	}
	return client.Config{
		RequestTimeout: timeout,
		HttpTries:      w.HttpTries,
		ConnectRetries: w.ConnectRetries,
		UserID:         w.UserID,
	}, nil
}

type durationField struct {
	name  string
	value string
	dest  *time.Duration
}

func (s *SchedulerJSONConfig) CreateSchedulerConfig() (server.Config, error) {
	cfg := server.Config{
		SkewThreshold:  s.SkewThreshold,
		SkewCheckEvery: s.SkewCheckEvery,
		MaxWaves:       s.MaxWaves,
		MinHostSpeed:   s.MinHostSpeed,
		LocalWorkers:   s.LocalWorkers,
		CurveCacheSize: s.CurveCacheSize,
	}
	for _, d := range []durationField{
		{"TickInterval", s.TickInterval, &cfg.TickInterval},
		{"MaxTickInterval", s.MaxTickInterval, &cfg.MaxTickInterval},
		{"PollTimeout", s.PollTimeout, &cfg.PollTimeout},
		{"AbortTimeout", s.AbortTimeout, &cfg.AbortTimeout},
	} {
		v, err := parseDuration(d.name, d.value)
		if err != nil {
			return server.Config{}, err
		}
		*d.dest = v
	}
	return cfg, nil
}

// CreateOptions returns the batch defaults.
func (s *SchedulerJSONConfig) CreateOptions() (domain.Options, error) {
	opts := domain.Options{
		UseRemote:      s.UseRemote,
		MaxThreads:     s.MaxThreads,
		MaxParallelism: s.MaxParallelism,
		LocalBlocking:  s.LocalBlocking,
	}
	var err error
	if opts.Rescheduling, err = ParseReschedulePolicy(s.Rescheduling); err != nil {
		return opts, err
	}
	if s.ModelPolicy != "" {
		if opts.ModelPolicy, err = perf.ParsePolicy(s.ModelPolicy); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func ParseReschedulePolicy(s string) (domain.ReschedulePolicy, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return domain.None, nil
	case "internal":
		return domain.InternalLoadBalance, nil
	case "external":
		return domain.ExternalReschedule, nil
	}
	return domain.None, fmt.Errorf("unknown rescheduling policy %q", s)
}
