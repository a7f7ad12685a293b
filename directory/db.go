package directory

import (
	"fmt"
	"strings"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// OpenDB opens a gorm handle from a database URL. Supports
// "sqlite://<path>" (use "sqlite://:memory:" for tests) and
// "postgres://..." / "postgresql://...".
func OpenDB(dburl string) (*gorm.DB, error) {
	var dial gorm.Dialector
	isSqlite := false
	switch {
	case strings.HasPrefix(dburl, "sqlite://"):
		dial = sqlite.Open(strings.TrimPrefix(dburl, "sqlite://"))
		isSqlite = true
	case strings.HasPrefix(dburl, "postgres://"), strings.HasPrefix(dburl, "postgresql://"):
		dial = postgres.Open(dburl)
	default:
		return nil, fmt.Errorf("unsupported database URL: %s", dburl)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 slogGorm.New(),
	})
	if err != nil {
		return nil, err
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	if isSqlite {
		sqldb.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			return nil, err
		}
	} else {
		sqldb.SetMaxOpenConns(40)
		sqldb.SetMaxIdleConns(40)
	}
	return db, nil
}
