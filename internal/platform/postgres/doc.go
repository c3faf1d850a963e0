// Package postgres provides PostgreSQL implementations of the store
// interfaces, along with the embedded schema migrations they rely on.
// Queries run through store.DBTX so every store can operate inside a
// transaction via WithTx.
package postgres
