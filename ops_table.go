package rethinkdb

import "github.com/rethinkdb/rethinkdb-go/pkg/proto"

// DB references a database by name.
func DB(name any) Term {
	return opTerm(proto.TermDB, "db", styleTopLevel, name)
}

// Table references a table in the connection's default database.
func Table(name any, opts ...OptArgs) Term {
	return opTermOpts(proto.TermTable, "table", styleTopLevel, mergeOptArgs(opts), name)
}

// Table references a table inside the receiver database.
func (t Term) Table(name any, opts ...OptArgs) Term {
	return opTermOpts(proto.TermTable, "table", styleMethod, mergeOptArgs(opts), t, name)
}

// Get fetches one document by primary key.
func (t Term) Get(key any) Term {
	return opTerm(proto.TermGet, "get", styleMethod, t, key)
}

// GetAll fetches documents by key against the primary or a named index.
func (t Term) GetAll(args ...any) Term {
	rest, opts := splitTrailingOpts(args)
	return opTermOpts(proto.TermGetAll, "get_all", styleMethod, opts, prepend(t, rest)...)
}

// Between selects the documents whose index value lies in [lower, upper).
func (t Term) Between(lower, upper any, opts ...OptArgs) Term {
	return opTermOpts(proto.TermBetween, "between", styleMethod, mergeOptArgs(opts), t, lower, upper)
}

// Insert writes new documents into a table.
func (t Term) Insert(docs any, opts ...OptArgs) Term {
	return opTermOpts(proto.TermInsert, "insert", styleMethod, mergeOptArgs(opts), t, docs)
}

// Update patches the selected documents with an object or a function.
func (t Term) Update(change any, opts ...OptArgs) Term {
	return opTermOpts(proto.TermUpdate, "update", styleMethod, mergeOptArgs(opts), t, funcWrap(change))
}

// Replace substitutes whole documents with an object or a function.
func (t Term) Replace(change any, opts ...OptArgs) Term {
	return opTermOpts(proto.TermReplace, "replace", styleMethod, mergeOptArgs(opts), t, funcWrap(change))
}

// Delete removes the selected documents.
func (t Term) Delete(opts ...OptArgs) Term {
	return opTermOpts(proto.TermDelete, "delete", styleMethod, mergeOptArgs(opts), t)
}

// Sync flushes soft-durability writes on a table to disk.
func (t Term) Sync() Term {
	return opTerm(proto.TermSync, "sync", styleMethod, t)
}

// DBCreate creates a database.
func DBCreate(name any) Term {
	return opTerm(proto.TermDBCreate, "db_create", styleTopLevel, name)
}

// DBDrop removes a database.
func DBDrop(name any) Term {
	return opTerm(proto.TermDBDrop, "db_drop", styleTopLevel, name)
}

// DBList lists database names.
func DBList() Term {
	return opTerm(proto.TermDBList, "db_list", styleTopLevel)
}

// TableCreate creates a table in the connection's default database.
func TableCreate(name any, opts ...OptArgs) Term {
	return opTermOpts(proto.TermTableCreate, "table_create", styleTopLevel, mergeOptArgs(opts), name)
}

// TableCreate creates a table in the receiver database.
func (t Term) TableCreate(name any, opts ...OptArgs) Term {
	return opTermOpts(proto.TermTableCreate, "table_create", styleMethod, mergeOptArgs(opts), t, name)
}

// TableDrop removes a table from the connection's default database.
func TableDrop(name any) Term {
	return opTerm(proto.TermTableDrop, "table_drop", styleTopLevel, name)
}

// TableDrop removes a table from the receiver database.
func (t Term) TableDrop(name any) Term {
	return opTerm(proto.TermTableDrop, "table_drop", styleMethod, t, name)
}

// TableList lists the tables of the connection's default database.
func TableList() Term {
	return opTerm(proto.TermTableList, "table_list", styleTopLevel)
}

// TableList lists the tables of the receiver database.
func (t Term) TableList() Term {
	return opTerm(proto.TermTableList, "table_list", styleMethod, t)
}

// IndexCreate creates a simple secondary index on a field of the receiver
// table.
func (t Term) IndexCreate(name any, opts ...OptArgs) Term {
	return opTermOpts(proto.TermIndexCreate, "index_create", styleMethod, mergeOptArgs(opts), t, name)
}

// IndexCreateFunc creates a secondary index computed by a function.
func (t Term) IndexCreateFunc(name, fn any, opts ...OptArgs) Term {
	return opTermOpts(proto.TermIndexCreate, "index_create", styleMethod, mergeOptArgs(opts), t, name, funcWrap(fn))
}

// IndexDrop removes a secondary index.
func (t Term) IndexDrop(name any) Term {
	return opTerm(proto.TermIndexDrop, "index_drop", styleMethod, t, name)
}

// IndexList lists the secondary indexes of a table.
func (t Term) IndexList() Term {
	return opTerm(proto.TermIndexList, "index_list", styleMethod, t)
}

// IndexRename renames a secondary index.
func (t Term) IndexRename(oldName, newName any, opts ...OptArgs) Term {
	return opTermOpts(proto.TermIndexRename, "index_rename", styleMethod, mergeOptArgs(opts), t, oldName, newName)
}

// IndexWait blocks until the named indexes (or all) are ready.
func (t Term) IndexWait(names ...any) Term {
	return opTerm(proto.TermIndexWait, "index_wait", styleMethod, prepend(t, names)...)
}

// IndexStatus reports the construction status of the named indexes (or
// all).
func (t Term) IndexStatus(names ...any) Term {
	return opTerm(proto.TermIndexStatus, "index_status", styleMethod, prepend(t, names)...)
}

// Config returns the configuration document of a table or database.
func (t Term) Config() Term {
	return opTerm(proto.TermConfig, "config", styleMethod, t)
}

// Status returns the status document of a table.
func (t Term) Status() Term {
	return opTerm(proto.TermStatus, "status", styleMethod, t)
}

// Wait blocks until a table or database is ready.
func (t Term) Wait(opts ...OptArgs) Term {
	return opTermOpts(proto.TermWait, "wait", styleMethod, mergeOptArgs(opts), t)
}

// Reconfigure changes the sharding or replication of a table or database.
func (t Term) Reconfigure(opts OptArgs) Term {
	return opTermOpts(proto.TermReconfigure, "reconfigure", styleMethod, opts, t)
}

// Rebalance redistributes table shards.
func (t Term) Rebalance() Term {
	return opTerm(proto.TermRebalance, "rebalance", styleMethod, t)
}

// Grant changes a user's permissions on the receiver scope.
func (t Term) Grant(user, permissions any) Term {
	return opTerm(proto.TermGrant, "grant", styleMethod, t, user, permissions)
}

// Grant changes a user's global permissions.
func Grant(user, permissions any) Term {
	return opTerm(proto.TermGrant, "grant", styleTopLevel, user, permissions)
}
