package store

import (
	"testing"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRegistry(db)
}

func TestVerifyCommandInsertsDefaults(t *testing.T) {
	r := testRegistry(t)

	cfg, err := r.VerifyCommand("online", "", "private_message", "all")
	if err != nil {
		t.Fatalf("VerifyCommand failed: %v", err)
	}
	if cfg.AccessLevel != "all" || !cfg.Enabled {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
}

func TestVerifyCommandPreservesAdminEdits(t *testing.T) {
	r := testRegistry(t)

	if _, err := r.VerifyCommand("online", "", "private_message", "all"); err != nil {
		t.Fatal(err)
	}

	// An admin tightens the access level and disables the command.
	if _, err := r.db.Exec(
		`UPDATE command_config SET access_level = 'admin', enabled = 0 WHERE command = 'online'`); err != nil {
		t.Fatal(err)
	}

	// The next startup re-registers with the code default; the edits win.
	cfg, err := r.VerifyCommand("online", "", "private_message", "all")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AccessLevel != "admin" {
		t.Errorf("Expected access level 'admin' preserved, got %q", cfg.AccessLevel)
	}
	if cfg.Enabled {
		t.Error("Expected disabled flag preserved")
	}
}

func TestVerifyAndPruneLifecycle(t *testing.T) {
	r := testRegistry(t)

	if _, err := r.VerifyCommand("online", "", "private_message", "all"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.VerifyCommand("stale", "", "private_message", "all"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.VerifyEvent("connect", "", "h.connect"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.VerifySetting("greeting", "hello", "text"); err != nil {
		t.Fatal(err)
	}

	// Next startup: only "online" and the setting re-register.
	if err := r.MarkUnverified(); err != nil {
		t.Fatalf("MarkUnverified failed: %v", err)
	}
	if _, err := r.VerifyCommand("online", "", "private_message", "all"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.VerifySetting("greeting", "hello", "text"); err != nil {
		t.Fatal(err)
	}
	if err := r.PruneUnverified(); err != nil {
		t.Fatalf("PruneUnverified failed: %v", err)
	}

	var count int
	row := r.db.QueryRow(`SELECT COUNT(*) FROM command_config`)
	if err := row.Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 surviving command row, got %d", count)
	}

	row = r.db.QueryRow(`SELECT COUNT(*) FROM event_config`)
	if err := row.Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Expected the stale event row pruned, got %d", count)
	}
}

func TestSettings(t *testing.T) {
	r := testRegistry(t)

	value, err := r.VerifySetting("greeting", "hello", "text")
	if err != nil {
		t.Fatal(err)
	}
	if value != "hello" {
		t.Errorf("Expected default 'hello', got %q", value)
	}

	if err := r.SetSetting("greeting", "howdy"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	value, err = r.VerifySetting("greeting", "hello", "text")
	if err != nil {
		t.Fatal(err)
	}
	if value != "howdy" {
		t.Errorf("Expected stored value 'howdy', got %q", value)
	}

	if err := r.SetSetting("nosuchsetting", "x"); err == nil {
		t.Error("Expected error for an unknown setting")
	}
}

func TestAliases(t *testing.T) {
	r := testRegistry(t)

	if err := r.SetAlias("o", "online"); err != nil {
		t.Fatal(err)
	}
	if err := r.SetAlias("o", "onlineorg"); err != nil {
		t.Fatal(err)
	}

	aliases, err := r.Aliases()
	if err != nil {
		t.Fatal(err)
	}
	if len(aliases) != 1 || aliases["o"] != "onlineorg" {
		t.Errorf("Unexpected aliases: %v", aliases)
	}
}

func TestBans(t *testing.T) {
	r := testRegistry(t)

	if r.IsBanned(1234) {
		t.Error("Expected no ban initially")
	}
	if err := r.AddBan(1234, "spamming"); err != nil {
		t.Fatal(err)
	}
	if !r.IsBanned(1234) {
		t.Error("Expected character to be banned")
	}

	removed, err := r.RemoveBan(1234)
	if err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Error("Expected RemoveBan to report the ban lifted")
	}
	if r.IsBanned(1234) {
		t.Error("Expected ban gone")
	}
	removed, err = r.RemoveBan(1234)
	if err != nil {
		t.Fatal(err)
	}
	if removed {
		t.Error("Expected RemoveBan to report no ban")
	}
}

func TestTemplates(t *testing.T) {
	r := testRegistry(t)

	if _, ok := r.Template(20000, 42); ok {
		t.Error("Expected no template initially")
	}
	if err := r.PutTemplate(20000, 42, "Offline message to %s"); err != nil {
		t.Fatal(err)
	}
	tmpl, ok := r.Template(20000, 42)
	if !ok || tmpl != "Offline message to %s" {
		t.Errorf("Unexpected template: %q, %v", tmpl, ok)
	}
}
