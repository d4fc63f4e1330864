package sqlite

import (
	"strings"

	// Registers the pure-Go "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

const sqliteDriver = "sqlite"

// pragma is a single PRAGMA applied by the driver to every new
// connection.
type pragma struct {
	name, value string
}

var (
	filePragmas   = []pragma{{"journal_mode", "WAL"}, {"foreign_keys", "1"}, {"busy_timeout", "5000"}}
	memoryPragmas = []pragma{{"foreign_keys", "1"}}
)

// connString appends pragmas to path as repeated _pragma query
// parameters, the form modernc.org/sqlite understands.
func connString(path string, pragmas []pragma) string {
	var b strings.Builder
	b.WriteString(path)
	sep := byte('?')
	for _, p := range pragmas {
		b.WriteByte(sep)
		sep = '&'
		b.WriteString("_pragma=")
		b.WriteString(p.name)
		b.WriteByte('(')
		b.WriteString(p.value)
		b.WriteByte(')')
	}
	return b.String()
}
