package main

import (
	"strings"
	"testing"
)

func TestSplitSQLSkipsCommentsAndSplitsStatements(t *testing.T) {
	statements := splitSQL(`-- +migrate Up
CREATE TABLE a (
    id text
);
-- a comment
CREATE INDEX a_idx ON a (id);
`)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if !strings.HasPrefix(statements[0], "CREATE TABLE a") || !strings.Contains(statements[1], "a_idx") {
		t.Fatalf("unexpected statements %q", statements)
	}
}

func TestSplitSQLKeepsTrailingStatement(t *testing.T) {
	statements := splitSQL("SELECT 1")
	if len(statements) != 1 || strings.TrimSpace(statements[0]) != "SELECT 1" {
		t.Fatalf("unexpected statements %q", statements)
	}
}
