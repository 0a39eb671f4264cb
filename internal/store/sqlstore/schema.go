package sqlstore

import (
	"strconv"
	"strings"
)

// dialect captures what differs between the sqlite and postgres renderings
// of the bags table.
type dialect struct {
	name   string
	driver string

	// payloadType is the column type of the archived bag
	payloadType string

	// numbered placeholders ($1, $2) instead of ?
	numbered bool
}

var (
	sqliteDialect = dialect{
		name:        "sqlite",
		driver:      "sqlite",
		payloadType: "TEXT",
	}

	postgresDialect = dialect{
		name:        "postgres",
		driver:      "pgx",
		payloadType: "JSONB",
		numbered:    true,
	}
)

func (d dialect) createBags() string {
	return `CREATE TABLE IF NOT EXISTS bags (
    name TEXT PRIMARY KEY,
    revision TEXT NOT NULL,
    payload ` + d.payloadType + ` NOT NULL,
    updated_at TEXT NOT NULL
)`
}

// Queries are written with ? placeholders and rebound per dialect.
const (
	upsertBag = `INSERT INTO bags (name, revision, payload, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (name) DO UPDATE SET
    revision = excluded.revision,
    payload = excluded.payload,
    updated_at = excluded.updated_at`

	selectPayload = `SELECT payload FROM bags WHERE name = ?`
	selectInfo    = `SELECT revision, updated_at FROM bags WHERE name = ?`
	deleteBag     = `DELETE FROM bags WHERE name = ?`
	selectNames   = `SELECT name FROM bags ORDER BY name`
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}

	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
