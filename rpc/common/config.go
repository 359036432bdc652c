package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Transport configuration struct
// --------------------------------------------------------------------------

// TransportConfig holds the settings shared by all socket transports.
// Not every transport uses every field (e.g. http ignores the socket options).
type TransportConfig struct {
	// Endpoint the server listens on (host:port, socket path or http address)
	Endpoint string
	// Endpoints the client connects to
	Endpoints []string
	// ConnectionsPerEndpoint is the number of connections the client opens per endpoint
	ConnectionsPerEndpoint int
	// RetryCount is the number of retries of the client for a failed request
	RetryCount int

	// Socket options
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
	WriteBufferSize int
	ReadBufferSize  int

	// BufferSize is the size of the frame buffers (bytes)
	BufferSize int
	// MaxWorkersPerConn limits the number of requests handled in parallel per connection
	MaxWorkersPerConn int
}

// addTo writes the transport section of a config String() output.
func (t *TransportConfig) addTo(addSection func(string), addField func(string, string)) {
	addSection("Transport")
	if t.Endpoint != "" {
		addField("Endpoint", t.Endpoint)
	}
	for i, endpoint := range t.Endpoints {
		addField("Endpoint "+strconv.Itoa(i), endpoint)
	}
	if len(t.Endpoints) > 0 {
		addField("Retry Count", strconv.Itoa(t.RetryCount))
		addField("Connections Per Endpoint", strconv.Itoa(max(1, t.ConnectionsPerEndpoint)))
	}
	addField("TCP No Delay", strconv.FormatBool(t.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", t.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", t.TCPLingerSec))
	addField("Write Buffer Size", fmt.Sprintf("%d bytes", t.WriteBufferSize))
	addField("Read Buffer Size", fmt.Sprintf("%d bytes", t.ReadBufferSize))
	addField("Frame Buffer Size", fmt.Sprintf("%d bytes", t.BufferSize))
	if t.MaxWorkersPerConn > 0 {
		addField("Workers Per Connection", strconv.Itoa(t.MaxWorkersPerConn))
	}
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerShard is one store served by the server. Every shard has its own data file.
type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// Path is the data file of the shard
	Path string
}

// ServerConfig holds all configuration parameters of the server.
type ServerConfig struct {
	// Shards served by this process
	Shards []ServerShard

	// Engine parameters
	AutoCompactThreshold int
	NoSync               bool
	BackupDir            string

	// Timeout for requests to a shard
	TimeoutSecond int64

	// RPC transport settings
	Transport TransportConfig

	// HTTP gateway settings (empty = disabled)
	GatewayEndpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-24s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	c.Transport.addTo(addSection, addField)

	// Gateway
	addSection("HTTP Gateway")
	if c.GatewayEndpoint == "" {
		addField("Endpoint", "disabled")
	} else {
		addField("Endpoint", c.GatewayEndpoint)
	}

	// Engine
	addSection("Storage")
	if c.AutoCompactThreshold > 0 {
		addField("Auto Compact Threshold", fmt.Sprintf("%d stale records", c.AutoCompactThreshold))
	} else {
		addField("Auto Compact Threshold", "disabled")
	}
	addField("Fsync", strconv.FormatBool(!c.NoSync))
	if c.BackupDir != "" {
		addField("Backup Directory", c.BackupDir)
	} else {
		addField("Backup Directory", "next to data file")
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Shards
	addSection("Shards")
	for _, shard := range c.Shards {
		addField(strconv.FormatUint(shard.ShardID, 10), shard.Path)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	TimeoutSecond int
	Transport     TransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-24s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	c.Transport.addTo(addSection, addField)

	return sb.String()
}
