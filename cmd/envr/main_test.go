package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)+"\n"), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("ENVR_HOME", filepath.Join(t.TempDir(), "home"))
	var stdout, stderr bytes.Buffer
	c := &cli{stdout: &stdout, stderr: &stderr}
	code := c.run(args)
	return code, stdout.String(), stderr.String()
}

func fixture(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yml")
	writeFile(t, base, `
name: base
levels:
  - {a: 1, b: 2, c: 3}
`)
	app := filepath.Join(dir, "app.yml")
	writeFile(t, app, `
name: app
extends: {path: base.yml}
levels:
  - {d: 4}
  - {e: 5, d: 6}
`)
	return app, base
}

func TestRunVersion(t *testing.T) {
	code, out, _ := runCLI(t, "--version")
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d", code, exitOK)
	}
	if strings.TrimSpace(out) != cliToolVersion {
		t.Fatalf("version output = %q, want %q", out, cliToolVersion)
	}
}

func TestRunNoArgs(t *testing.T) {
	code, _, errOut := runCLI(t)
	if code != exitFailure {
		t.Fatalf("exit code = %d, want %d", code, exitFailure)
	}
	if !strings.Contains(errOut, "usage: envr") {
		t.Fatalf("stderr missing usage: %q", errOut)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	code, _, errOut := runCLI(t, "explode")
	if code != exitFailure || !strings.Contains(errOut, `unknown command "explode"`) {
		t.Fatalf("run = %d, stderr %q", code, errOut)
	}
}

func TestRunGet(t *testing.T) {
	app, _ := fixture(t)
	tests := []struct {
		key  string
		code int
		out  string
	}{
		{key: "d", code: exitOK, out: "6\n"},
		{key: "a", code: exitOK, out: "1\n"},
		{key: "zzz", code: exitMissing, out: ""},
	}
	for _, tc := range tests {
		code, out, _ := runCLI(t, "get", app, tc.key)
		if code != tc.code {
			t.Fatalf("get %s exit code = %d, want %d", tc.key, code, tc.code)
		}
		if out != tc.out {
			t.Fatalf("get %s output = %q, want %q", tc.key, out, tc.out)
		}
	}
}

func TestRunGetArgCount(t *testing.T) {
	app, _ := fixture(t)
	code, _, errOut := runCLI(t, "get", app)
	if code != exitFailure || !strings.Contains(errOut, "envr get requires <doc> <key>") {
		t.Fatalf("run = %d, stderr %q", code, errOut)
	}
}

func TestRunKeys(t *testing.T) {
	app, _ := fixture(t)
	code, out, _ := runCLI(t, "keys", app)
	if code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	if want := "a\nb\nc\nd\ne\n"; out != want {
		t.Fatalf("keys output = %q, want %q", out, want)
	}

	code, out, _ = runCLI(t, "keys", "--levels", app)
	if code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	if want := "0: d e\n1: d\n2: a b c\n"; out != want {
		t.Fatalf("keys --levels output = %q, want %q", out, want)
	}
}

func TestRunStack(t *testing.T) {
	app, _ := fixture(t)
	code, out, _ := runCLI(t, "stack", app, "d")
	if code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	if out != "6\n4\n" {
		t.Fatalf("stack output = %q, want %q", out, "6\n4\n")
	}
}

func TestRunFlatten(t *testing.T) {
	app, _ := fixture(t)
	code, out, _ := runCLI(t, "flatten", app)
	if code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	want := "{\n  a = 1,\n  b = 2,\n  c = 3,\n  d = 6,\n  e = 5,\n}\n"
	if out != want {
		t.Fatalf("flatten output = %q, want %q", out, want)
	}
}

func TestRunDiff(t *testing.T) {
	app, base := fixture(t)
	code, out, _ := runCLI(t, "diff", app, base)
	if code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	want := "{\n  d = 6,\n  e = 5,\n}\n"
	if out != want {
		t.Fatalf("diff output = %q, want %q", out, want)
	}
}

func TestRunShowAndSize(t *testing.T) {
	_, base := fixture(t)
	code, out, _ := runCLI(t, "show", base)
	if code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	if want := "{\n  a = 1,\n  b = 2,\n  c = 3,\n}\n"; out != want {
		t.Fatalf("show output = %q, want %q", out, want)
	}

	app, _ := fixture(t)
	code, out, _ = runCLI(t, "size", app)
	if code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	if want := "bindings: 6\nlevels: 3\n"; out != want {
		t.Fatalf("size output = %q, want %q", out, want)
	}
}

func TestRunDebugTrace(t *testing.T) {
	_, base := fixture(t)
	t.Setenv("ENVR_DEBUG", "1")
	code, out, errOut := runCLI(t, "debug", base)
	if code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.HasPrefix(out, "Environment(map[string]interface {}{") {
		t.Fatalf("debug output = %q", out)
	}
	if !strings.Contains(errOut, "scope base:") {
		t.Fatalf("stderr missing trace: %q", errOut)
	}
}

func TestRunLoadFailure(t *testing.T) {
	code, _, errOut := runCLI(t, "show", filepath.Join(t.TempDir(), "missing.yml"))
	if code != exitFailure || !strings.Contains(errOut, "failed to load") {
		t.Fatalf("run = %d, stderr %q", code, errOut)
	}
}
