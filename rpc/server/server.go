package server

import (
	"fmt"
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/ValentinKolb/kvd/lib/db/engines/logdb"
	"github.com/ValentinKolb/kvd/lib/store"
	"github.com/ValentinKolb/kvd/lib/store/lstore"
	"github.com/ValentinKolb/kvd/rpc/common"
	"github.com/ValentinKolb/kvd/rpc/serializer"
	"github.com/ValentinKolb/kvd/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/go-multierror"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"io"
	"os/signal"
	"runtime"
	"sort"
	"sync"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("rpc/server")

// serverShard is a struct that represents a shard in the RPC server
// It contains the store it encapsulates and the adapter
// that handles requests for the store
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters.
// Every shard of the config is served by a local store over its own data file.
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	return NewRPCServerWithFactory(config, transport, serializer, LocalShardFactory(config))
}

// NewRPCServerWithFactory creates a new RPC server whose shard stores are created by factory
func NewRPCServerWithFactory(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	factory ShardFactory,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	// Create the RPC server
	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		factory:    factory,
		shards:     xsync.NewMapOf[uint64, serverShard](),
		metrics:    metrics.NewSet(),
	}
}

// LocalShardFactory returns a ShardFactory that opens a logdb data file per shard
// with the engine options of config.
func LocalShardFactory(config common.ServerConfig) ShardFactory {
	return func(shard common.ServerShard) (store.IStore, error) {
		return lstore.NewLocalStore(func() (db.KVDB, error) {
			return logdb.NewLogDB(&logdb.DBOptions{
				Path:                 shard.Path,
				BackupDir:            config.BackupDir,
				NoSync:               config.NoSync,
				AutoCompactThreshold: config.AutoCompactThreshold,
			})
		})
	}
}

// RPCServer serves the stores of all configured shards over one transport.
//
// Thread-safety: request handling is safe for concurrent use. Init, Serve and Close
// must not be called concurrently with each other.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	factory    ShardFactory
	shards     *xsync.MapOf[uint64, serverShard]
	metrics    *metrics.Set
	initOnce   sync.Once
	initErr    error
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Init opens the stores of all shards. If one of them fails, the stores already
// opened are closed again. Init runs only once, later calls return the first result.
func (s *RPCServer) Init() error {
	s.initOnce.Do(func() {
		s.initErr = s.init()
	})
	return s.initErr
}

func (s *RPCServer) init() error {
	if len(s.config.Shards) == 0 {
		return fmt.Errorf("no shards configured")
	}

	// CREATE SHARDS

	/*
		Note: A single RPC Server can have any number of shards. Each shard is an
		independent store with its own data file (and its own file lock).
	*/

	for _, shardConfig := range s.config.Shards {
		if _, exists := s.shards.Load(shardConfig.ShardID); exists {
			return s.abortInit(fmt.Errorf("duplicate shard id %d", shardConfig.ShardID))
		}

		st, err := s.factory(shardConfig)
		if err != nil {
			return s.abortInit(fmt.Errorf("failed to open shard %d (%s): %w", shardConfig.ShardID, shardConfig.Path, err))
		}

		s.shards.Store(shardConfig.ShardID, serverShard{
			Store:   st,
			Adapter: NewIStoreServerAdapter(),
		})
		s.registerShardMetrics(shardConfig.ShardID, st)
		Logger.Infof("created local store for shard %d (%s)", shardConfig.ShardID, shardConfig.Path)
	}

	Logger.Infof("kvd setup completed successfully")

	// Configure the transport layer
	s.registerTransportHandler()

	return nil
}

// abortInit closes all shards opened so far and returns cause
func (s *RPCServer) abortInit(cause error) error {
	if err := s.closeShards(); err != nil {
		Logger.Errorf("failed to close shards after failed init: %v", err)
	}
	return cause
}

// Serve starts the RPC server
// This function will also initialize the server plus the shards and start the transport layer.
// It blocks until Close is called.
func (s *RPCServer) Serve() error {
	if err := s.Init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Close stops the transport and closes the stores of all shards.
// All failures are collected into one error.
func (s *RPCServer) Close() error {
	var result *multierror.Error

	if err := s.transport.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("transport: %w", err))
	}
	if err := s.closeShards(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// closeShards closes and removes every shard
func (s *RPCServer) closeShards() error {
	var result *multierror.Error

	s.shards.Range(func(shardId uint64, shard serverShard) bool {
		if err := shard.Store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("shard %d: %w", shardId, err))
		}
		s.shards.Delete(shardId)
		return true
	})

	return result.ErrorOrNil()
}

// --------------------------------------------------------------------------
// Accessors (used by the gateway)
// --------------------------------------------------------------------------

// Store returns the store of a shard
func (s *RPCServer) Store(shardId uint64) (store.IStore, bool) {
	shard, ok := s.shards.Load(shardId)
	if !ok {
		return nil, false
	}
	return shard.Store, true
}

// ShardIDs returns the ids of all shards in ascending order
func (s *RPCServer) ShardIDs() []uint64 {
	ids := make([]uint64, 0, s.shards.Size())
	s.shards.Range(func(shardId uint64, _ serverShard) bool {
		ids = append(ids, shardId)
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// WritePrometheus writes the request metrics of the server in Prometheus text format
func (s *RPCServer) WritePrometheus(w io.Writer) {
	s.metrics.WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Request Handling
// --------------------------------------------------------------------------

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(s.handle)
}

// handle processes one serialized request for a shard and returns the serialized response
func (s *RPCServer) handle(shardId uint64, req []byte) []byte {
	var msg common.Message
	var respMsg *common.Message

	start := time.Now()

	// Get appropriate shard
	shard, ok := s.shards.Load(shardId)

	// Case shard does not exist -> error
	if !ok {
		respMsg = common.NewErrorResponse(fmt.Sprintf("shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		// Case request can not be decoded -> error
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		// Let the adapter handle the request
		respMsg = shard.Adapter.Handle(&msg, shard.Store)
	}

	s.observe(shardId, msg.MsgType, respMsg, start)

	// Return result
	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

// observe records count, failures and duration of one request
func (s *RPCServer) observe(shardId uint64, op common.MessageType, resp *common.Message, start time.Time) {
	s.metrics.GetOrCreateCounter(fmt.Sprintf(`kvd_requests_total{shard="%d",op="%s"}`, shardId, op)).Inc()
	s.metrics.GetOrCreateHistogram(fmt.Sprintf(`kvd_request_duration_seconds{shard="%d",op="%s"}`, shardId, op)).UpdateDuration(start)

	if resp.Err != "" {
		s.metrics.GetOrCreateCounter(fmt.Sprintf(`kvd_request_errors_total{shard="%d",op="%s",code="%s"}`, shardId, op, resp.Code)).Inc()
	}
}

// registerShardMetrics exports the size of a shard as gauges, read from the store on scrape
func (s *RPCServer) registerShardMetrics(shardId uint64, st store.IStore) {
	stat := func(f func(stats db.Stats) float64) func() float64 {
		return func() float64 {
			stats, err := st.Stats()
			if err != nil {
				return 0
			}
			return f(stats)
		}
	}

	s.metrics.GetOrCreateGauge(fmt.Sprintf(`kvd_keys{shard="%d"}`, shardId), stat(func(stats db.Stats) float64 {
		return float64(stats.TotalKeys)
	}))
	s.metrics.GetOrCreateGauge(fmt.Sprintf(`kvd_value_bytes{shard="%d"}`, shardId), stat(func(stats db.Stats) float64 {
		return float64(stats.TotalSizeBytes)
	}))
	s.metrics.GetOrCreateGauge(fmt.Sprintf(`kvd_file_bytes{shard="%d"}`, shardId), stat(func(stats db.Stats) float64 {
		return float64(stats.FileSizeBytes)
	}))
	s.metrics.GetOrCreateGauge(fmt.Sprintf(`kvd_stale_records{shard="%d"}`, shardId), stat(func(stats db.Stats) float64 {
		return float64(stats.StaleRecords)
	}))
}
