// Package migrations carries the monitor's schema as embedded SQL so a
// binary can bootstrap its own Postgres and ClickHouse databases.
package migrations

import "embed"

//go:embed postgres/*.sql
var PostgresFS embed.FS

//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
