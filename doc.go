// Package rethinkdb is a client driver for RethinkDB: a composable query
// builder, a connection speaking the framed JSON wire protocol over TCP
// with a SCRAM-SHA-256 authenticated handshake, and cursors streaming
// multi-batch results with demand-driven continuation.
//
// Queries are built from terms and submitted with Run:
//
//	conn, err := rethinkdb.Connect(ctx, rethinkdb.ConnectOpts{
//		Host:     "localhost",
//		Port:     28015,
//		Username: "admin",
//	})
//	if err != nil {
//		// handle
//	}
//	defer conn.Close(ctx)
//
//	res, err := rethinkdb.Table("users").Filter(func(user rethinkdb.Term) rethinkdb.Term {
//		return user.Field("age").Gt(21)
//	}).Run(ctx, conn)
//
// Run returns a scalar value for single results and a *Cursor for
// sequences. Changefeeds (Changes) return cursors that never complete on
// their own and must be closed by the caller.
//
// One connection multiplexes any number of concurrent queries: each gets a
// token, responses are matched by token, and per-query ordering follows
// server emission order.
package rethinkdb
