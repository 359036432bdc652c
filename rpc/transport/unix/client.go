package unix

import (
	"github.com/ValentinKolb/kvd/rpc/common"
	"github.com/ValentinKolb/kvd/rpc/transport"
	"github.com/ValentinKolb/kvd/rpc/transport/base"
	"net"
	"strings"
	"time"
)

const dialTimeout = 5 * time.Second

// clientConnector dials Unix domain sockets. Endpoints are socket paths, an optional
// unix:// prefix is stripped.
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "unix"
}

func (c *clientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.DialTimeout("unix", strings.TrimPrefix(endpoint, "unix://"), dialTimeout)
}

func (c *clientConnector) UpgradeConnection(net.Conn, common.TransportConfig) error {
	return nil // no socket options for unix sockets
}

// --------------------------------------------------------------------------
// Transport Factory Method
// --------------------------------------------------------------------------

// NewUnixClientTransport creates a new client transport using Unix sockets
func NewUnixClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{})
}
