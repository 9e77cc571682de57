// Package pg holds the PostgreSQL helpers used by the Postgres-backed queue
// store: a retrying pgxpool Connect, goose migrations from an fs.FS, and a
// small transaction helper.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, migrations, "migrations", cfg.MigrationsTable, slog.Default()); err != nil {
//		return err
//	}
//
// Config can be populated from PG_* environment variables with config.Load.
package pg
