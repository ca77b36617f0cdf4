package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// dialect captures the differences between the supported SQL engines.
type dialect struct {
	name   string
	driver string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
	// returning inserts read the new id with RETURNING instead of LastInsertId
	returning   bool
	tableExists string
}

var dialects = map[string]dialect{
	"sqlite": {
		name:        "sqlite",
		driver:      "sqlite",
		tableExists: "SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?",
	},
	"postgres": {
		name:        "postgres",
		driver:      "postgres",
		numbered:    true,
		returning:   true,
		tableExists: "SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?",
	},
	"mysql": {
		name:        "mysql",
		driver:      "mysql",
		tableExists: "SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
	},
}

func lookupDialect(name string) (dialect, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported sql backend %q", name)
	}
	return d, nil
}

// rebind rewrites ? placeholders for engines that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isUniqueViolation reports whether err is a unique or primary key conflict.
func (d dialect) isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	switch d.name {
	case "postgres":
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == "23505"
	case "mysql":
		var myErr *mysql.MySQLError
		return errors.As(err, &myErr) && myErr.Number == 1062
	default:
		var coder interface{ Code() int }
		if errors.As(err, &coder) {
			switch coder.Code() {
			case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
				return true
			}
		}
		return strings.Contains(err.Error(), "UNIQUE constraint failed")
	}
}
