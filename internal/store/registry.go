package store

import (
	"database/sql"
	"errors"
	"time"
)

// Registry persists dispatch-engine configuration: command and event rows
// with admin-toggleable enabled flags, command aliases, settings and bans.
//
// Reconciliation follows a verify-and-prune lifecycle: MarkUnverified at
// startup, every module registration re-verifies (or inserts) its row, and
// PruneUnverified deletes whatever no current module claimed.
type Registry struct {
	db DB
}

func NewRegistry(db DB) *Registry {
	return &Registry{db: db}
}

// MarkUnverified flags every config row ahead of module registration.
func (r *Registry) MarkUnverified() error {
	return r.db.Transaction(func(tx *sql.Tx) error {
		for _, q := range []string{
			`UPDATE command_config SET verified = 0`,
			`UPDATE event_config SET verified = 0`,
			`UPDATE setting SET verified = 0`,
		} {
			if _, err := tx.Exec(q); err != nil {
				return err
			}
		}
		return nil
	})
}

// PruneUnverified deletes rows no module re-registered this startup.
func (r *Registry) PruneUnverified() error {
	return r.db.Transaction(func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM command_config WHERE verified = 0`,
			`DELETE FROM event_config WHERE verified = 0`,
			`DELETE FROM setting WHERE verified = 0`,
		} {
			if _, err := tx.Exec(q); err != nil {
				return err
			}
		}
		return nil
	})
}

// CommandConfig is the persisted, admin-editable state of one command row.
type CommandConfig struct {
	AccessLevel string
	Enabled     bool
}

// VerifyCommand upserts a command row, preserving any admin-edited access
// level and enabled flag, and returns the effective config.
func (r *Registry) VerifyCommand(command, subCommand, channel, accessLevel string) (CommandConfig, error) {
	cfg := CommandConfig{AccessLevel: accessLevel, Enabled: true}
	row := r.db.QueryRow(
		`SELECT access_level, enabled FROM command_config
		 WHERE command = ? AND sub_command = ? AND channel = ?`,
		command, subCommand, channel)
	var enabled int
	err := row.Scan(&cfg.AccessLevel, &enabled)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = r.db.Exec(
			`INSERT INTO command_config (command, sub_command, channel, access_level, enabled, verified)
			 VALUES (?, ?, ?, ?, 1, 1)`,
			command, subCommand, channel, accessLevel)
		return cfg, err
	case err != nil:
		return cfg, err
	}
	cfg.Enabled = enabled != 0
	_, err = r.db.Exec(
		`UPDATE command_config SET verified = 1
		 WHERE command = ? AND sub_command = ? AND channel = ?`,
		command, subCommand, channel)
	return cfg, err
}

// SetCommandEnabled toggles a command row.
func (r *Registry) SetCommandEnabled(command, subCommand, channel string, enabled bool) error {
	_, err := r.db.Exec(
		`UPDATE command_config SET enabled = ?
		 WHERE command = ? AND sub_command = ? AND channel = ?`,
		boolInt(enabled), command, subCommand, channel)
	return err
}

// VerifyEvent upserts an event handler row and returns its enabled state.
func (r *Registry) VerifyEvent(eventType, subType, handler string) (bool, error) {
	row := r.db.QueryRow(
		`SELECT enabled FROM event_config
		 WHERE event_type = ? AND sub_type = ? AND handler = ?`,
		eventType, subType, handler)
	var enabled int
	err := row.Scan(&enabled)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = r.db.Exec(
			`INSERT INTO event_config (event_type, sub_type, handler, enabled, verified)
			 VALUES (?, ?, ?, 1, 1)`,
			eventType, subType, handler)
		return true, err
	case err != nil:
		return false, err
	}
	_, err = r.db.Exec(
		`UPDATE event_config SET verified = 1
		 WHERE event_type = ? AND sub_type = ? AND handler = ?`,
		eventType, subType, handler)
	return enabled != 0, err
}

// VerifySetting upserts a setting, keeping any stored value, and returns
// the effective value.
func (r *Registry) VerifySetting(name, defaultValue, kind string) (string, error) {
	row := r.db.QueryRow(`SELECT value FROM setting WHERE name = ?`, name)
	var value string
	err := row.Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = r.db.Exec(
			`INSERT INTO setting (name, value, kind, verified) VALUES (?, ?, ?, 1)`,
			name, defaultValue, kind)
		return defaultValue, err
	case err != nil:
		return defaultValue, err
	}
	_, err = r.db.Exec(`UPDATE setting SET verified = 1 WHERE name = ?`, name)
	return value, err
}

// SetSetting stores a new value for an existing setting.
func (r *Registry) SetSetting(name, value string) error {
	n, err := r.db.Exec(`UPDATE setting SET value = ? WHERE name = ?`, value, name)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("store: unknown setting " + name)
	}
	return nil
}

// SetAlias stores or replaces a command alias.
func (r *Registry) SetAlias(alias, command string) error {
	_, err := r.db.Exec(
		`INSERT INTO command_alias (alias, command) VALUES (?, ?)
		 ON CONFLICT(alias) DO UPDATE SET command = excluded.command`,
		alias, command)
	return err
}

// Aliases returns the full alias redirect table.
func (r *Registry) Aliases() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT alias, command FROM command_alias`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var alias, command string
		if err := rows.Scan(&alias, &command); err != nil {
			return nil, err
		}
		out[alias] = command
	}
	return out, rows.Err()
}

// AddBan records a banned character.
func (r *Registry) AddBan(charID uint32, reason string) error {
	_, err := r.db.Exec(
		`INSERT INTO ban (char_id, reason, banned_at) VALUES (?, ?, ?)
		 ON CONFLICT(char_id) DO UPDATE SET reason = excluded.reason`,
		charID, reason, time.Now().UTC().Format(time.RFC3339))
	return err
}

// RemoveBan lifts a ban; reports whether one existed.
func (r *Registry) RemoveBan(charID uint32) (bool, error) {
	n, err := r.db.Exec(`DELETE FROM ban WHERE char_id = ?`, charID)
	return n > 0, err
}

// IsBanned reports whether the character is banned. Errors fail open so a
// broken database cannot silence the whole bot.
func (r *Registry) IsBanned(charID uint32) bool {
	row := r.db.QueryRow(`SELECT 1 FROM ban WHERE char_id = ?`, charID)
	var one int
	return row.Scan(&one) == nil
}

// Template implements protocol.TemplateSource against the
// extended_template table.
func (r *Registry) Template(category, instance int64) (string, bool) {
	row := r.db.QueryRow(
		`SELECT template FROM extended_template WHERE category_id = ? AND instance_id = ?`,
		category, instance)
	var tmpl string
	if err := row.Scan(&tmpl); err != nil {
		return "", false
	}
	return tmpl, true
}

// PutTemplate loads one template row, used by import tooling and tests.
func (r *Registry) PutTemplate(category, instance int64, template string) error {
	_, err := r.db.Exec(
		`INSERT INTO extended_template (category_id, instance_id, template) VALUES (?, ?, ?)
		 ON CONFLICT(category_id, instance_id) DO UPDATE SET template = excluded.template`,
		category, instance, template)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
