package cmd

import (
	"fmt"
	"github.com/ValentinKolb/kvd/cmd/kv"
	"github.com/ValentinKolb/kvd/cmd/serve"
	"github.com/ValentinKolb/kvd/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kvd",
		Short: "persistent key-value store",
		Long: fmt.Sprintf(`kvd (v%s)

A persistent key-value store written in Go. Every write is appended to a
checksummed log file before it is acknowledged. Stores are served over RPC
(tcp, unix, http) and a REST gateway.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvd",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kvd v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper (env files and KVD_ variables)
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
