package zmq

import (
	"fmt"
	"time"
)

// Config describes the socket layout.
//
// The pilot subscribes to DataPort on Host and publishes commands on
// ControlPort. Each direction is synchronized over a REQ/REP side channel on
// the next port up.
type Config struct {
	Host        string
	BindAddress string
	DataPort    int
	ControlPort int

	// HandshakeTimeout bounds the whole handshake. Zero waits forever.
	HandshakeTimeout time.Duration

	// DialRetry is the pause between connection attempts.
	DialRetry time.Duration

	// ReceiveBuffer and SendBuffer size the queues between the sockets and the
	// control loop.
	ReceiveBuffer int
	SendBuffer    int
}

func (c Config) dataEndpoint() string     { return fmt.Sprintf("tcp://%s:%d", c.Host, c.DataPort) }
func (c Config) dataSyncEndpoint() string { return fmt.Sprintf("tcp://%s:%d", c.Host, c.DataPort+1) }
func (c Config) controlEndpoint() string {
	return fmt.Sprintf("tcp://%s:%d", c.BindAddress, c.ControlPort)
}
func (c Config) controlSyncEndpoint() string {
	return fmt.Sprintf("tcp://%s:%d", c.BindAddress, c.ControlPort+1)
}
