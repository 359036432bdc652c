package kv

import (
	"github.com/ValentinKolb/kvd/cmd/util"
	"github.com/ValentinKolb/kvd/lib/store"
	"github.com/ValentinKolb/kvd/rpc/client"
	"github.com/ValentinKolb/kvd/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcStore store.IStore

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value store operations",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	KeyValueCommands.PersistentFlags().Int("shard", 1, util.WrapString("ID of the shard to connect to"))
	KeyValueCommands.PersistentFlags().String("log-level", "warn", util.WrapString("LogLevel of the client (debug, info, warn, error)"))

	// Add subcommands
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(existsCmd)
	KeyValueCommands.AddCommand(infoCmd)
	KeyValueCommands.AddCommand(createCmd)
	KeyValueCommands.AddCommand(updateCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(delPrefixCmd)
	KeyValueCommands.AddCommand(listCmd)
	KeyValueCommands.AddCommand(searchCmd)
	KeyValueCommands.AddCommand(batchCmd)
	KeyValueCommands.AddCommand(compactCmd)
	KeyValueCommands.AddCommand(backupCmd)
	KeyValueCommands.AddCommand(statsCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient initializes the RPC store client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	common.InitLoggers(viper.GetString("log-level"))

	// Get client configuration components
	config := util.GetClientConfig()
	shardId := util.GetShardID()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	// Create the KV store client
	rpcStore, err = client.NewRPCStore(
		shardId,
		*config,
		t,
		s,
	)

	return err
}

// closeKVClient closes the connections of the client
func closeKVClient(_ *cobra.Command, _ []string) error {
	if rpcStore == nil {
		return nil
	}
	return rpcStore.Close()
}
