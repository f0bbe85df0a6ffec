package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/golang-migrate/migrate/v4"

	"github.com/riskibarqy/softball-stats/internal/platform/logging"
)

type fakeMigrator struct {
	upErr    error
	steps    []int
	target   uint
	forced   int
	version  uint
	dirty    bool
	versionE error
}

func (f *fakeMigrator) Up() error                    { return f.upErr }
func (f *fakeMigrator) Steps(n int) error            { f.steps = append(f.steps, n); return nil }
func (f *fakeMigrator) Migrate(version uint) error   { f.target = version; return nil }
func (f *fakeMigrator) Force(version int) error      { f.forced = version; return nil }
func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, f.versionE }

func runCommand(t *testing.T, m migrator, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := commands[args[0]].run(m, args[1:], &out, logging.NewNop())
	return out.String(), err
}

func TestCommands_UpTreatsNoChangeAsSuccess(t *testing.T) {
	if _, err := runCommand(t, &fakeMigrator{upErr: migrate.ErrNoChange}, "up"); err != nil {
		t.Fatalf("expected no change to succeed, got %v", err)
	}
	boom := errors.New("dirty database")
	if _, err := runCommand(t, &fakeMigrator{upErr: boom}, "up"); !errors.Is(err, boom) {
		t.Fatalf("expected migrate error, got %v", err)
	}
}

func TestCommands_DownGotoForce(t *testing.T) {
	m := &fakeMigrator{}

	if _, err := runCommand(t, m, "down"); err != nil {
		t.Fatalf("down: %v", err)
	}
	if _, err := runCommand(t, m, "down", "2"); err != nil {
		t.Fatalf("down 2: %v", err)
	}
	if len(m.steps) != 2 || m.steps[0] != -1 || m.steps[1] != -2 {
		t.Fatalf("unexpected steps: %v", m.steps)
	}

	if _, err := runCommand(t, m, "migrate", "1"); err != nil || m.target != 1 {
		t.Fatalf("migrate alias: target=%d err=%v", m.target, err)
	}
	if _, err := runCommand(t, m, "force", "1"); err != nil || m.forced != 1 {
		t.Fatalf("force: forced=%d err=%v", m.forced, err)
	}
	if _, err := runCommand(t, m, "force"); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error for force without version, got %v", err)
	}
}

func TestCommands_Version(t *testing.T) {
	out, err := runCommand(t, &fakeMigrator{versionE: migrate.ErrNilVersion}, "version")
	if err != nil || out != "version: none\ndirty: false\n" {
		t.Fatalf("unexpected nil version output %q err=%v", out, err)
	}

	out, err = runCommand(t, &fakeMigrator{version: 1, dirty: true}, "version")
	if err != nil || out != "version: 1\ndirty: true\n" {
		t.Fatalf("unexpected version output %q err=%v", out, err)
	}
}

func TestRun_RejectsUnknownCommandBeforeConnecting(t *testing.T) {
	t.Setenv("DB_URL", "")
	if err := run([]string{"sideways"}, logging.NewNop()); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run(nil, logging.NewNop()); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error for no args, got %v", err)
	}
	if err := run([]string{"up"}, logging.NewNop()); err == nil || errors.Is(err, errUsage) {
		t.Fatalf("expected DB_URL error, got %v", err)
	}
}

func TestParseSteps(t *testing.T) {
	if got, err := parseSteps(nil); err != nil || got != 1 {
		t.Fatalf("expected default of 1 step, got %d err=%v", got, err)
	}
	for _, raw := range []string{"0", "-2", "two"} {
		if _, err := parseSteps([]string{raw}); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
	if _, err := parseVersion("-1"); err == nil {
		t.Fatal("expected negative version to fail")
	}
	if _, err := parseTarget("latest"); err == nil {
		t.Fatal("expected non-numeric target to fail")
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("postgres://stats:hunter2@db:5432/softball_stats?sslmode=disable")
	if got != "postgres://stats:xxxxx@db:5432/softball_stats?sslmode=disable" {
		t.Fatalf("unexpected redaction: %q", got)
	}
	if redactURL("host=db password=hunter2") != "<db_url>" {
		t.Fatal("expected key/value dsn to be hidden entirely")
	}
}

func TestResolveMigrationsDir_PrefersEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MIGRATIONS_DIR", dir)
	t.Setenv("MIGRATIONS_PATH", "")

	got, err := resolveMigrationsDir()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want, _ := filepath.Abs(dir)
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
