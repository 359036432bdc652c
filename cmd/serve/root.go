package serve

import (
	"fmt"
	cmdUtil "github.com/ValentinKolb/kvd/cmd/util"
	"github.com/ValentinKolb/kvd/rpc/common"
	"github.com/ValentinKolb/kvd/rpc/gateway"
	"github.com/ValentinKolb/kvd/rpc/server"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"io"
	"os"
	"os/signal"
	"syscall"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the kvd server",
		Long: `Start the kvd server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is KVD_<flag> (e.g. KVD_AUTO_COMPACT=500).

Every shard is an independent store with its own data file. Clients address a shard by its ID, the HTTP gateway with ?shard=<id> (default: the lowest ID).`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "shards"
	ServeCmd.PersistentFlags().String(key, "1=kvstore.db", cmdUtil.WrapString("Comma-separated list of shards to serve. Format: ID=PATH where PATH is the data file of the shard"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:7070", cmdUtil.WrapString("The address on which the RPC API will listen (e.g. localhost:7070, /tmp/kvd.sock, ...)"))

	key = "gateway"
	ServeCmd.PersistentFlags().String(key, "127.0.0.1:8080", cmdUtil.WrapString("The address of the HTTP gateway (REST API and /metrics). Empty to disable"))

	key = "auto-compact"
	ServeCmd.PersistentFlags().Int(key, 1000, cmdUtil.WrapString("Compact a data file as soon as it holds this many stale records (0 to disable)"))

	key = "no-sync"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Do not fsync after every write. Faster, but a crash may lose acknowledged writes"))

	key = "backup-dir"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Directory for backups (default: next to the data file)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds of a request (only for http)"))

	key = "transport-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Size of the frame buffers in KB (0 = transport default)"))

	key = "transport-workers"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("Maximum number of requests handled in parallel per connection"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	cmdUtil.SetupTransportFlags(ServeCmd)
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	config, err := cmdUtil.GetServerConfig()
	if err != nil {
		return err
	}
	*serveCmdConfig = *config

	common.InitLoggers(serveCmdConfig.LogLevel)
	return nil
}

// run starts the kvd server (and the gateway) and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(*serveCmdConfig, t, s)
	if err := serv.Init(); err != nil {
		return err
	}

	// every component reports its exit here, nil means it was closed
	errCh := make(chan error, 2)

	go func() {
		errCh <- serv.Serve()
	}()

	var gw *gateway.Gateway
	if serveCmdConfig.GatewayEndpoint != "" {
		gw = gateway.NewGateway(serv, gateway.Options{
			DefaultShard: serv.ShardIDs()[0],
			Metrics:      []func(io.Writer){serv.WritePrometheus},
			Debug:        serveCmdConfig.LogLevel == "debug",
		})
		go func() {
			errCh <- gw.Listen(serveCmdConfig.GatewayEndpoint)
		}()
	}

	// wait for a signal or a failing component
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var result *multierror.Error
	select {
	case sig := <-sigCh:
		cmdUtil.Logger.Infof("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			result = multierror.Append(result, err)
		}
	}

	// shutdown: gateway first, so no request reaches a closed store
	if gw != nil {
		if err := gw.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("gateway: %w", err))
		}
	}
	if err := serv.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	cmdUtil.Logger.Infof("kvd stopped")
	return result.ErrorOrNil()
}
