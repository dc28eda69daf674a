package config

// Configs maps preset names to their JSON text. Sections left out of a
// preset, or with an empty Type, come from "default".
var Configs = map[string]string{
	"default": defaultConfig,
	"local":   localConfig,
	"test":    testConfig,
}

// defaultConfig the values used for sections a preset or file leaves out.
const defaultConfig = `{
  "Registry": {
    "Type": "http",
    "AddressServer": "localhost:9098",
    "RequestTimeout": "5s",
    "RefreshInterval": "30s",
    "ProbeRate": 50,
    "ProbeBurst": 8
  },
  "Worker": {
    "Type": "http",
    "RequestTimeout": "5s",
    "HttpTries": 2,
    "ConnectRetries": 2
  },
  "Scheduler": {
    "Type": "loadbalanced",
    "TickInterval": "100ms",
    "MaxTickInterval": "2s",
    "PollTimeout": "5s",
    "AbortTimeout": "5s",
    "SkewThreshold": 0.5,
    "SkewCheckEvery": 1,
    "MaxWaves": 5,
    "CurveCacheSize": 64,
    "UseRemote": true,
    "MaxThreads": 4,
    "MaxParallelism": 16,
    "Rescheduling": "internal",
    "ModelPolicy": "homogeneous"
  }
}`

// localConfig runs against "simsched cluster" on this machine.
const localConfig = `{
  "Registry": {
    "Type": "http",
    "AddressServer": "localhost:9098",
    "RequestTimeout": "1s",
    "RefreshInterval": "5s"
  },
  "Scheduler": {
    "Type": "loadbalanced",
    "TickInterval": "50ms",
    "MaxTickInterval": "500ms",
    "PollTimeout": "1s",
    "AbortTimeout": "1s",
    "SkewThreshold": 0.5,
    "SkewCheckEvery": 2,
    "MaxWaves": 5,
    "UseRemote": true,
    "MaxThreads": 2,
    "MaxParallelism": 8,
    "Rescheduling": "internal",
    "ModelPolicy": "crfp0"
  }
}`

// testConfig keeps every timer short.
const testConfig = `{
  "Registry": {
    "Type": "http",
    "AddressServer": "localhost:0",
    "RequestTimeout": "500ms",
    "RefreshInterval": "1s"
  },
  "Worker": {
    "Type": "http",
    "RequestTimeout": "500ms",
    "HttpTries": 1,
    "ConnectRetries": 1
  },
  "Scheduler": {
    "Type": "loadbalanced",
    "TickInterval": "1ms",
    "MaxTickInterval": "20ms",
    "PollTimeout": "500ms",
    "AbortTimeout": "500ms",
    "MaxWaves": 3,
    "LocalWorkers": 2,
    "UseRemote": true,
    "MaxThreads": 1,
    "MaxParallelism": 4,
    "Rescheduling": "none",
    "ModelPolicy": "basic",
    "LocalBlocking": true
  }
}`
