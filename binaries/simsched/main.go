package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/twitter/remotesim/common/log/hooks"
	"github.com/twitter/remotesim/scheduler/client/cli"
)

// CLI binary to run simulation batches on remote worker hosts
//	Supported commands: (see "-h" for all options)
//		cluster		serve a host directory and simulated worker hosts
//		run		run a batch of synthetic jobs
//	Global flags:
//		--config [<preset name> or path to a YAML or JSON file]
//		--log_level [<error|info|debug> level and above should be logged]

func main() {
	log.AddHook(hooks.NewContextHook())

	cl, err := cli.NewSimpleCLIClient()
	if err != nil {
		log.Fatal("Failed to create new simsched CLI client: ", err)
	}

	err = cl.Exec()
	if err != nil {
		log.Fatal("Error running simsched ", err)
	}
}
