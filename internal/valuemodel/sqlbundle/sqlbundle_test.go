package sqlbundle

import (
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	for name, ddl := range map[string]string{"sqlite": SQLite(), "postgres": Postgres()} {
		stmts := SplitStatements(ddl)
		if len(stmts) != 5 {
			t.Fatalf("%s: expected 5 statements, got %d", name, len(stmts))
		}
		for _, stmt := range stmts {
			if strings.HasPrefix(strings.TrimSpace(stmt), "--") {
				t.Fatalf("%s: statement unexpectedly starts with comment: %q", name, stmt)
			}
			if !strings.HasSuffix(strings.TrimSpace(stmt), ";") {
				t.Fatalf("%s: statement missing semicolon terminator: %q", name, stmt)
			}
		}
	}
}

func TestBundlesDeclareBothTables(t *testing.T) {
	for name, ddl := range map[string]string{"sqlite": SQLite(), "postgres": Postgres()} {
		for _, table := range []string{DataTable, ValuesTable} {
			if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS "+table+" (") {
				t.Fatalf("%s: expected DDL for %s", name, table)
			}
		}
	}
}

func TestSplitStatementsKeepsUnterminatedTail(t *testing.T) {
	stmts := SplitStatements("-- header\nCREATE TABLE a (id TEXT);\n\nCREATE TABLE b (id TEXT)")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %v", len(stmts), stmts)
	}
	if stmts[1] != "CREATE TABLE b (id TEXT)" {
		t.Fatalf("unexpected tail statement %q", stmts[1])
	}
}
