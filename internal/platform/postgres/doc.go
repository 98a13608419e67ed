// Package postgres provides PostgreSQL-backed implementations of the
// persistence interfaces defined in internal/store, using database/sql with
// the pgx stdlib driver. Status transition enforcement happens inside the
// UPDATE statements so concurrent terminal transitions are settled by the
// database.
package postgres
