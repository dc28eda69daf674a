package client

import (
	"github.com/spf13/cobra"

	"github.com/twitter/remotesim/common/stats"
	"github.com/twitter/remotesim/config"
)

// Client interface that includes CLI handling
type CLIClient interface {
	Exec() error
}

// SimpleClient includes base fields required for implementing client
type SimpleClient struct {
	RootCmd    *cobra.Command
	ConfigName string
	LogLevel   string
	Config     *config.JSONConfigs
	Stat       stats.StatsReceiver
}

// Command interface used to run client commands
type Cmd interface {
	RegisterFlags() *cobra.Command
	Run(cl *SimpleClient, cmd *cobra.Command, args []string) error
}
