package stores

import (
	"fmt"

	"github.com/theapemachine/sqlsession/pkg/session"
)

/*
Dialect captures the few places where the supported databases disagree.
Both dialects understand INSERT ... ON CONFLICT, quoted identifiers and
CREATE ... IF NOT EXISTS, so the statements below are shared.
*/
type Dialect struct {
	Name       string
	BinaryType string
}

var (
	SQLite   = Dialect{Name: "sqlite", BinaryType: "BLOB"}
	Postgres = Dialect{Name: "postgres", BinaryType: "BYTEA"}
)

/*
DialectFor maps a database/sql driver name to its dialect.
*/
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "pgx":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

/*
Schema returns the idempotent DDL statements for both session tables.
*/
func (dialect Dialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS session_metadata (
			session_id VARCHAR(45) NOT NULL PRIMARY KEY,
			"creationTime" BIGINT DEFAULT NULL,
			"maxInactiveInterval" INTEGER DEFAULT NULL,
			"lastAccessedTime" BIGINT DEFAULT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS session_attributes (
			"uniqueKey" VARCHAR(128) NOT NULL PRIMARY KEY,
			session_id VARCHAR(45) NOT NULL,
			"attributeName" TEXT NOT NULL,
			"attributeValue" %s DEFAULT NULL
		)`, dialect.BinaryType),
		`CREATE INDEX IF NOT EXISTS session_attributes_session_id_idx
			ON session_attributes (session_id)`,
	}
}

// metadataColumns is the allow-list of metadata fields that may be written
// through updateMetadataQuery.
var metadataColumns = map[session.Field]string{
	session.FieldCreationTime:        "creationTime",
	session.FieldMaxInactiveInterval: "maxInactiveInterval",
	session.FieldLastAccessedTime:    "lastAccessedTime",
}

const (
	insertMetadataQuery = `INSERT INTO session_metadata (session_id) VALUES (:session_id)
		ON CONFLICT (session_id) DO NOTHING`

	// updateMetadataQuery takes its column from metadataColumns only.
	updateMetadataQuery = `UPDATE session_metadata SET "%s" = :value WHERE session_id = :session_id`

	selectMetadataQuery = `SELECT session_id, "creationTime", "maxInactiveInterval", "lastAccessedTime"
		FROM session_metadata WHERE session_id = :session_id`

	selectAttributesQuery = `SELECT "attributeName", "attributeValue"
		FROM session_attributes WHERE session_id = :session_id`

	upsertAttributeQuery = `INSERT INTO session_attributes ("uniqueKey", session_id, "attributeName", "attributeValue")
		VALUES (:uniqueKey, :session_id, :attributeName, :attributeValue)
		ON CONFLICT ("uniqueKey") DO UPDATE SET "attributeValue" = excluded."attributeValue"`

	deleteAttributeQuery = `DELETE FROM session_attributes WHERE "uniqueKey" = :uniqueKey`

	deleteMetadataQuery = `DELETE FROM session_metadata WHERE session_id = :session_id`

	deleteAttributesQuery = `DELETE FROM session_attributes WHERE session_id = :session_id`

	// NULL columns are read the way loadMetadata reads them: a missing
	// interval is the store default and a missing access time is 0.
	selectExpiredQuery = `SELECT session_id FROM session_metadata
		WHERE COALESCE("maxInactiveInterval", :defaultInterval) >= 0
		AND COALESCE("lastAccessedTime", 0)
			+ CAST(COALESCE("maxInactiveInterval", :defaultInterval) AS BIGINT) * 1000 < :now`

	countQuery = `SELECT COUNT(*) FROM session_metadata`
)
