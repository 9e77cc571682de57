// Package pgqueue stores jobq queues in PostgreSQL.
//
// Messages live in jobq_messages with a promoted flag separating ready rows
// from delayed ones. Pop runs in one transaction: due delayed rows are
// promoted, then the oldest ready row is deleted and returned, both with
// FOR UPDATE SKIP LOCKED so concurrent workers never receive the same
// message. Unique pushes insert the content hash into jobq_unique in the same
// transaction as the message. Counters live in jobq_counters.
//
// Several configurations can share one database: every row is scoped by a
// namespace, taken from the config prefix.
//
// The schema ships as goose migrations in Migrations and is applied by
// Connect unless WithoutMigrations is given.
package pgqueue
