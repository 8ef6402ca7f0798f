package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/euancatapang/Exploration-to-Bedrock/pkg/savegen"
)

// clearEnv unsets the EXP2BR_* variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvWorldHeight, EnvWorkers, EnvTemplate, EnvLogFile} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func writeGeneratedSave(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "save01.dat")
	gen := savegen.NewGenerator(savegen.DefaultConfig(2, 1))
	if err := savegen.WriteFile(path, gen.Save()); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunNoArgs(t *testing.T) {
	err := Run(context.Background(), nil, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error with no args")
	}
	if !strings.Contains(err.Error(), "usage") {
		t.Errorf("expected usage message, got: %v", err)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	err := Run(context.Background(), []string{"unknown"}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error with unknown command")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("expected 'unknown command' error, got: %v", err)
	}
}

func TestConvertMissingOut(t *testing.T) {
	clearEnv(t)
	_, err := parseConvert([]string{"--env", noEnvFile(t), "save01.dat"})
	if err == nil {
		t.Fatal("expected error with missing --out")
	}
	if !strings.Contains(err.Error(), "--out") {
		t.Errorf("expected '--out' error, got: %v", err)
	}
}

func TestConvertMissingInput(t *testing.T) {
	clearEnv(t)
	_, err := parseConvert([]string{"--env", noEnvFile(t), "--out", "/out"})
	if err == nil {
		t.Fatal("expected error with missing save file")
	}
	if !strings.Contains(err.Error(), "save file") {
		t.Errorf("expected save file error, got: %v", err)
	}
}

func TestConvertInvalidWorkers(t *testing.T) {
	clearEnv(t)
	_, err := parseConvert([]string{"--env", noEnvFile(t), "--out", "/out", "--workers", "0", "save01.dat"})
	if err == nil || !strings.Contains(err.Error(), "--workers") {
		t.Errorf("expected '--workers' error, got: %v", err)
	}
}

func TestConvertDefaults(t *testing.T) {
	clearEnv(t)
	o, err := parseConvert([]string{"--env", noEnvFile(t), "--out", "/out", "s3://saves/save01.dat"})
	if err != nil {
		t.Fatalf("parseConvert: %v", err)
	}
	if o.workers != 1 {
		t.Errorf("workers = %d, want 1", o.workers)
	}
	if o.height != 0 {
		t.Errorf("height = %d, want 0", o.height)
	}
	if o.input != "s3://saves/save01.dat" {
		t.Errorf("input = %q", o.input)
	}
}

func TestConvertEnvFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvWorkers, "3")
	t.Setenv(EnvWorldHeight, "64")
	t.Setenv(EnvTemplate, "/templates/flat")
	t.Setenv(EnvLogFile, "/var/log/exp2bedrock.log")

	o, err := parseConvert([]string{"--env", noEnvFile(t), "--out", "/out", "save01.dat"})
	if err != nil {
		t.Fatalf("parseConvert: %v", err)
	}
	if o.workers != 3 {
		t.Errorf("workers = %d, want 3", o.workers)
	}
	if o.height != 64 {
		t.Errorf("height = %d, want 64", o.height)
	}
	if o.template != "/templates/flat" {
		t.Errorf("template = %q", o.template)
	}
	if o.logFile != "/var/log/exp2bedrock.log" {
		t.Errorf("logFile = %q", o.logFile)
	}
}

func TestConvertFlagOverridesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvWorkers, "3")
	t.Setenv(EnvTemplate, "/templates/flat")

	o, err := parseConvert([]string{
		"--env", noEnvFile(t), "--out", "/out",
		"--workers", "8", "--template", "s3://worlds/templates/flat/",
		"save01.dat",
	})
	if err != nil {
		t.Fatalf("parseConvert: %v", err)
	}
	if o.workers != 8 {
		t.Errorf("workers = %d, want 8", o.workers)
	}
	if o.template != "s3://worlds/templates/flat/" {
		t.Errorf("template = %q", o.template)
	}
}

func TestConvertDotenvFile(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	content := EnvWorkers + "=4\n" + EnvWorldHeight + "=128\n"
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	o, err := parseConvert([]string{"--env", envFile, "--out", "/out", "save01.dat"})
	if err != nil {
		t.Fatalf("parseConvert: %v", err)
	}
	if o.workers != 4 || o.height != 128 {
		t.Errorf("workers/height = %d/%d, want 4/128", o.workers, o.height)
	}

	// The process environment wins over the file.
	t.Setenv(EnvWorkers, "2")
	o, err = parseConvert([]string{"--env", envFile, "--out", "/out", "save01.dat"})
	if err != nil {
		t.Fatalf("parseConvert: %v", err)
	}
	if o.workers != 2 {
		t.Errorf("workers = %d, want 2", o.workers)
	}
}

func TestConvertInvalidEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvWorldHeight, "tall")

	_, err := parseConvert([]string{"--env", noEnvFile(t), "--out", "/out", "save01.dat"})
	if err == nil {
		t.Fatal("expected error with invalid env height")
	}
	if !strings.Contains(err.Error(), EnvWorldHeight) {
		t.Errorf("expected %s in error, got: %v", EnvWorldHeight, err)
	}
}

func TestConvertCommand(t *testing.T) {
	clearEnv(t)
	save := writeGeneratedSave(t)
	out := filepath.Join(t.TempDir(), "world")

	var stdout bytes.Buffer
	err := Run(context.Background(), []string{
		"convert", "--env", noEnvFile(t), "--out", out, "--tmp", t.TempDir(), "--workers", "2", save,
	}, &stdout)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	got := stdout.String()
	for _, want := range []string{"chunks converted:  2", "voxels processed:  16,384"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in summary:\n%s", want, got)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "columns")); err != nil {
		t.Errorf("world columns missing: %v", err)
	}
}

func TestInspectCommand(t *testing.T) {
	save := writeGeneratedSave(t)

	var stdout bytes.Buffer
	if err := Run(context.Background(), []string{"inspect", "--chunks", save}, &stdout); err != nil {
		t.Fatalf("inspect: %v", err)
	}

	got := stdout.String()
	for _, want := range []string{"world height: 32", "chunks:       2 (0 broken)", "chunk (0, 0)"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in output:\n%s", want, got)
		}
	}
}

func TestInspectMissingFile(t *testing.T) {
	err := Run(context.Background(), []string{"inspect", filepath.Join(t.TempDir(), "nope.dat")}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for missing save file")
	}
}
