package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:fieldview.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/fieldview?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := EnsureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS forms (
  id TEXT PRIMARY KEY,
  mission_id TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL,
  published INTEGER NOT NULL DEFAULT 0,
  version_code TEXT NOT NULL DEFAULT '',
  definition_json TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS responses (
  id TEXT PRIMARY KEY,
  form_id TEXT NOT NULL REFERENCES forms(id),
  mission_id TEXT NOT NULL DEFAULT '',
  user_id TEXT,
  source TEXT NOT NULL DEFAULT 'odk',
  odk_hash TEXT,
  incomplete INTEGER NOT NULL DEFAULT 0,
  awaiting_media INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);

-- one in-progress response per identity hash per form
CREATE UNIQUE INDEX IF NOT EXISTS responses_odk_hash
  ON responses(odk_hash, form_id) WHERE odk_hash IS NOT NULL;

CREATE TABLE IF NOT EXISTS answer_nodes (
  id TEXT PRIMARY KEY,
  response_id TEXT NOT NULL REFERENCES responses(id) ON DELETE CASCADE,
  parent_id TEXT REFERENCES answer_nodes(id),
  questioning_id TEXT NOT NULL,
  node_type TEXT NOT NULL,
  new_rank INTEGER NOT NULL,
  rank INTEGER NOT NULL,
  inst_num INTEGER NOT NULL,
  value TEXT,
  option_id TEXT,
  choices_json TEXT,
  date_value TEXT,
  time_value TEXT,
  datetime_value TEXT,
  latitude REAL,
  longitude REAL,
  altitude REAL,
  accuracy REAL,
  pending_file_name TEXT,
  media_json TEXT
);

CREATE INDEX IF NOT EXISTS answer_nodes_response
  ON answer_nodes(response_id);

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT UNIQUE NOT NULL,
  role TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
  offset INTEGER PRIMARY KEY AUTOINCREMENT, -- BIGSERIAL in Postgres
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,                        -- e.g., SubmissionAccepted
  key TEXT NOT NULL,                        -- natural key: response id
  data TEXT NOT NULL,                       -- JSON payload
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS forms (
  id TEXT PRIMARY KEY,
  mission_id TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL,
  published BOOLEAN NOT NULL DEFAULT FALSE,
  version_code TEXT NOT NULL DEFAULT '',
  definition_json TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS responses (
  id TEXT PRIMARY KEY,
  form_id TEXT NOT NULL REFERENCES forms(id),
  mission_id TEXT NOT NULL DEFAULT '',
  user_id TEXT,
  source TEXT NOT NULL DEFAULT 'odk',
  odk_hash TEXT,
  incomplete BOOLEAN NOT NULL DEFAULT FALSE,
  awaiting_media BOOLEAN NOT NULL DEFAULT FALSE,
  created_at BIGINT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS responses_odk_hash
  ON responses(odk_hash, form_id) WHERE odk_hash IS NOT NULL;

CREATE TABLE IF NOT EXISTS answer_nodes (
  id TEXT PRIMARY KEY,
  response_id TEXT NOT NULL REFERENCES responses(id) ON DELETE CASCADE,
  parent_id TEXT REFERENCES answer_nodes(id),
  questioning_id TEXT NOT NULL,
  node_type TEXT NOT NULL,
  new_rank INTEGER NOT NULL,
  rank INTEGER NOT NULL,
  inst_num INTEGER NOT NULL,
  value TEXT,
  option_id TEXT,
  choices_json TEXT,
  date_value TEXT,
  time_value TEXT,
  datetime_value TEXT,
  latitude DOUBLE PRECISION,
  longitude DOUBLE PRECISION,
  altitude DOUBLE PRECISION,
  accuracy DOUBLE PRECISION,
  pending_file_name TEXT,
  media_json TEXT
);

CREATE INDEX IF NOT EXISTS answer_nodes_response
  ON answer_nodes(response_id);

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT UNIQUE NOT NULL,
  role TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
  "offset" BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
