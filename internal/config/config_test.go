package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_FromEnvFile(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	data := "ODOO_URL=http://erp.local:8069\nODOO_DB=prod\nODOO_USERNAME=import\nODOO_PASSWORD=secret\n"
	if err := os.WriteFile(env, []byte(data), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}

	got, err := Load(env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.URL != "http://erp.local:8069" || got.Database != "prod" || got.Username != "import" || got.Password != "secret" {
		t.Fatalf("unexpected credentials: %+v", got)
	}
}

func TestLoad_MissingVariable(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	if err := os.WriteFile(env, []byte("ODOO_URL=http://erp.local\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("ODOO_DB", "")
	t.Setenv("ODOO_USERNAME", "")
	t.Setenv("ODOO_PASSWORD", "")

	if _, err := Load(env); err == nil {
		t.Fatalf("expected error for incomplete credentials")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
