package fix

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// QuoteQualified quotes schema.name as a Postgres identifier.
func QuoteQualified(schema, name string) string {
	if schema == "" {
		return pgx.Identifier{name}.Sanitize()
	}
	return pgx.Identifier{schema, name}.Sanitize()
}

// DropIndexStatement returns the statement removing one index.
func DropIndexStatement(schema, index string) string {
	return "DROP INDEX " + QuoteQualified(schema, index) + ";"
}

// VacuumStatement returns VACUUM ANALYZE, or plain VACUUM when analyze is false.
func VacuumStatement(schema, table string, analyze bool) string {
	if analyze {
		return "VACUUM ANALYZE " + QuoteQualified(schema, table) + ";"
	}
	return "VACUUM " + QuoteQualified(schema, table) + ";"
}

// AnalyzeStatement returns one ANALYZE over every given schema.table pair.
func AnalyzeStatement(tables ...[2]string) string {
	quoted := make([]string, 0, len(tables))
	for _, t := range tables {
		quoted = append(quoted, QuoteQualified(t[0], t[1]))
	}
	return "ANALYZE " + strings.Join(quoted, ", ") + ";"
}
