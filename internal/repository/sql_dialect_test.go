package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestDialectHelpersDefaultToSQLite(t *testing.T) {
	if got := dbDialectName(nil); got != "sqlite" {
		t.Fatalf("nil db should default to sqlite, got %s", got)
	}
	if supportsRowLock(nil) {
		t.Fatalf("sqlite should not use row locks")
	}
	if got := likeOperator(nil); got != "LIKE" {
		t.Fatalf("sqlite like operator mismatch, got %s", got)
	}
}

func TestDialectHelpersWithSQLiteDB(t *testing.T) {
	dsn := fmt.Sprintf("file:sql_dialect_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if got := dbDialectName(db); got != "sqlite" {
		t.Fatalf("dialect mismatch, got %s", got)
	}
	if supportsRowLock(db) {
		t.Fatalf("sqlite should not use row locks")
	}
}

func TestIsPostgres(t *testing.T) {
	for _, name := range []string{"postgres", "postgresql"} {
		if !isPostgres(name) {
			t.Fatalf("%s should be treated as postgres", name)
		}
	}
	if isPostgres("mysql") {
		t.Fatalf("mysql should not be treated as postgres")
	}
}
