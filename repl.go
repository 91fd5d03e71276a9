package rethinkdb

import "sync"

// The REPL default connection: Run falls back to it when given a nil
// connection, which keeps interactive sessions short.
var (
	replMu   sync.Mutex
	replConn *Connection
)

// Repl registers the connection as the process-wide default for Run calls
// that pass a nil connection, and returns it for chaining.
func (c *Connection) Repl() *Connection {
	replMu.Lock()
	replConn = c
	replMu.Unlock()
	return c
}

func replConnection() *Connection {
	replMu.Lock()
	defer replMu.Unlock()
	return replConn
}
