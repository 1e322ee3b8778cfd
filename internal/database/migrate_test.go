package database

import (
	"strings"
	"testing"
)

// 埋め込みマイグレーションが読み込めることを検証
func TestMigrationsFS_ContainsUserMigration(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("failed to read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one migration file")
	}

	var hasUp, hasDown bool
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			hasUp = true
		}
		if strings.HasSuffix(e.Name(), ".down.sql") {
			hasDown = true
		}
	}
	if !hasUp || !hasDown {
		t.Errorf("migrations should contain up and down files: up=%v down=%v", hasUp, hasDown)
	}
}

// usersテーブルのマイグレーションにUNIQUE制約が含まれることを検証
func TestUserMigration_HasUniqueEmailConstraint(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/000001_create_users.up.sql")
	if err != nil {
		t.Fatalf("failed to read migration: %v", err)
	}
	if !strings.Contains(string(data), "UNIQUE") {
		t.Error("users migration should declare a UNIQUE email constraint")
	}
}
