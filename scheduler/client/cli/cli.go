package cli

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	commoncli "github.com/twitter/remotesim/common/client"
	"github.com/twitter/remotesim/common/stats"
	"github.com/twitter/remotesim/config"
)

// SimCLIClient includes fields required for CLI client handling
type SimCLIClient struct {
	commoncli.SimpleClient
}

func (c *SimCLIClient) Exec() error {
	return c.RootCmd.Execute()
}

func NewSimpleCLIClient() (commoncli.CLIClient, error) {
	c := &SimCLIClient{}

	c.RootCmd = &cobra.Command{
		Use:               "simsched",
		Short:             "simsched runs simulation batches on remote worker hosts",
		PersistentPreRunE: c.Init,
		Run:               func(*cobra.Command, []string) {},
	}
	c.RootCmd.PersistentFlags().StringVar(&c.ConfigName, "config", "local", "Config preset (default|local|test) or path to a YAML or JSON config file")
	c.RootCmd.PersistentFlags().StringVar(&c.LogLevel, "log_level", "info", "Log everything at this level and above (error|info|debug)")

	c.addCmd(&clusterCmd{})
	c.addCmd(&runBatchCmd{})

	return c, nil
}

// Can only be called from cobra command run or hook
func (c *SimCLIClient) Init(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Error(err)
		return err
	}
	log.SetLevel(level)

	c.Config, err = config.GetConfigs(c.ConfigName)
	if err != nil {
		return err
	}
	log.Infof("Using config %s:%s", c.ConfigName, c.Config)

	c.Stat = stats.DefaultStatsReceiver().Precision(time.Millisecond)
	return nil
}

func (c *SimCLIClient) addCmd(cmd commoncli.Cmd) {
	cobraCmd := cmd.RegisterFlags()
	cobraCmd.RunE = func(innerCmd *cobra.Command, args []string) error {
		return cmd.Run(&c.SimpleClient, innerCmd, args)
	}
	c.RootCmd.AddCommand(cobraCmd)
}
