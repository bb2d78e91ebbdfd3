package db

import (
	"strings"
	"testing"
)

func TestLatestMigrationVersion(t *testing.T) {
	v, err := LatestMigrationVersion()
	if err != nil {
		t.Fatalf("LatestMigrationVersion failed: %v", err)
	}
	if v != 2 {
		t.Errorf("expected latest version 2, got %d", v)
	}
}

func TestMigrateUpDown(t *testing.T) {
	db := openTestDB(t)

	v, dirty, err := db.MigrateVersion()
	if err != nil || v != 0 || dirty {
		t.Fatalf("fresh database: version=%d dirty=%v err=%v", v, dirty, err)
	}
	if err := db.CheckMigrations(); err == nil || !strings.Contains(err.Error(), "migrate up") {
		t.Errorf("expected out-of-date error, got %v", err)
	}

	if err := db.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if err := db.MigrateUp(); err != nil {
		t.Fatalf("second MigrateUp should be a no-op, got %v", err)
	}
	if v, _, _ := db.MigrateVersion(); v != 2 {
		t.Errorf("expected version 2 after up, got %d", v)
	}

	if err := db.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	if v, _, _ := db.MigrateVersion(); v != 1 {
		t.Errorf("expected version 1 after down, got %d", v)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name='frame_alignments'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Error("frame_alignments should be dropped by the down migration")
	}

	if err := db.MigrateTo(2); err != nil {
		t.Fatalf("MigrateTo failed: %v", err)
	}
	s, err := db.GetMigrationStatus()
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if !s.TableExists || s.Current != 2 || s.Latest != 2 || s.PendingCount != 0 || s.Dirty {
		t.Errorf("unexpected status %+v", s)
	}
}

func TestMigrateForceAndDirty(t *testing.T) {
	db := openTestDB(t)
	if err := db.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if _, err := db.Exec(`UPDATE schema_migrations SET dirty = 1`); err != nil {
		t.Fatal(err)
	}
	if err := db.CheckMigrations(); err == nil || !strings.Contains(err.Error(), "dirty") {
		t.Errorf("expected dirty error, got %v", err)
	}
	if err := db.MigrateForce(2); err != nil {
		t.Fatalf("MigrateForce failed: %v", err)
	}
	if err := db.CheckMigrations(); err != nil {
		t.Errorf("expected clean state after force, got %v", err)
	}
}

func TestBaselineAtVersion(t *testing.T) {
	db := openTestDB(t)
	if err := db.BaselineAtVersion(1); err != nil {
		t.Fatalf("BaselineAtVersion failed: %v", err)
	}
	if v, _, _ := db.MigrateVersion(); v != 1 {
		t.Errorf("expected version 1, got %d", v)
	}
	if err := db.BaselineAtVersion(1); err == nil {
		t.Error("expected error baselining twice")
	}
}
