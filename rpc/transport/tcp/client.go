package tcp

import (
	"github.com/ValentinKolb/kvd/rpc/common"
	"github.com/ValentinKolb/kvd/rpc/transport"
	"github.com/ValentinKolb/kvd/rpc/transport/base"
	"net"
	"time"
)

// dialTimeout bounds the time to establish a connection (also on reconnect)
const dialTimeout = 5 * time.Second

// clientConnector dials TCP connections and applies the socket options of the config
type clientConnector struct {
	dialer net.Dialer
}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "tcp"
}

func (c *clientConnector) Connect(endpoint string) (net.Conn, error) {
	return c.dialer.Dial("tcp", endpoint)
}

func (c *clientConnector) UpgradeConnection(conn net.Conn, config common.TransportConfig) error {
	return upgradeConnection(conn, config)
}

// --------------------------------------------------------------------------
// Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPClientTransport creates a new client transport using TCP sockets
func NewTCPClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{
		// keep-alive is configured by upgradeConnection
		dialer: net.Dialer{Timeout: dialTimeout, KeepAlive: -1},
	})
}
