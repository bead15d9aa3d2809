package bot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const baseConfig = `
telegram:
  token: "123:abc"
  admin_id: 42
  run_mode: longpoll
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, baseConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != BackendFile {
		t.Fatalf("backend = %q, want file default", cfg.Store.Backend)
	}
	if cfg.Store.CatalogFile != "courses.json" || cfg.Store.UsersFile != "users.json" {
		t.Fatalf("file defaults = %q, %q", cfg.Store.CatalogFile, cfg.Store.UsersFile)
	}
	if cfg.Health.Listen != ":8080" {
		t.Fatalf("health listen = %q, want :8080", cfg.Health.Listen)
	}
	if cfg.CoreConfig().Telegram.AdminID != 42 {
		t.Fatalf("admin id = %d", cfg.CoreConfig().Telegram.AdminID)
	}
}

func TestLoadRequiresAdminID(t *testing.T) {
	content := `
telegram:
  token: "123:abc"
  run_mode: longpoll
`
	if _, err := Load(writeConfig(t, content)); err == nil || !strings.Contains(err.Error(), "admin_id") {
		t.Fatalf("err = %v, want admin_id requirement", err)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	content := baseConfig + `
store:
  backend: dynamo
`
	if _, err := Load(writeConfig(t, content)); err == nil || !strings.Contains(err.Error(), "store.backend") {
		t.Fatalf("err = %v, want backend validation", err)
	}
}

func TestLoadPostgresNeedsHost(t *testing.T) {
	content := baseConfig + `
store:
  backend: postgres
`
	if _, err := Load(writeConfig(t, content)); err == nil || !strings.Contains(err.Error(), "database.host") {
		t.Fatalf("err = %v, want database.host requirement", err)
	}
}

func TestLoadRedisNeedsURL(t *testing.T) {
	content := baseConfig + `
store:
  backend: redis
`
	if _, err := Load(writeConfig(t, content)); err == nil || !strings.Contains(err.Error(), "redis_url") {
		t.Fatalf("err = %v, want redis_url requirement", err)
	}
}

func TestLoadNormalizesBackendCase(t *testing.T) {
	content := baseConfig + `
store:
  backend: " File "
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != BackendFile {
		t.Fatalf("backend = %q, want normalized file", cfg.Store.Backend)
	}
}
