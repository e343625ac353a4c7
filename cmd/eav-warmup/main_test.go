package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eavcore/internal/infra/persistence/sqlite"
	"eavcore/internal/registry"
)

const libraryYAML = `families:
  - code: Book
    data_type: Book
    attributes:
      - code: title
        type: string
      - code: tags
        type: string
        collection: true
  - code: Magazine
    parent: Book
    attributes:
      - code: issue
        type: integer
  - code: Chapter
    data_type: Chapter
    attributes:
      - code: heading
        type: string
`

// workspace switches into a fresh directory holding library.yaml.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("library.yaml", []byte(libraryYAML), 0o600))
	return dir
}

func invoke(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestValidate(t *testing.T) {
	workspace(t)
	code, out, errOut := invoke("validate", "--registry", "library.yaml")
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "registry library.yaml is valid: 3 families, 4 attributes")
}

func TestValidateReportsConfigurationErrors(t *testing.T) {
	workspace(t)
	require.NoError(t, os.WriteFile("cycle.yaml", []byte("families:\n  - code: A\n    parent: B\n  - code: B\n    parent: A\n"), 0o600))
	code, _, errOut := invoke("validate", "--registry", "cycle.yaml")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "eav-warmup:")

	code, _, errOut = invoke("validate", "--registry", "missing.yaml")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "read registry")
}

func TestWarmupWritesFiles(t *testing.T) {
	dir := workspace(t)
	code, out, errOut := invoke("warmup", "--registry", "library.yaml", "--format", "markdown",
		"--out-dir", "out", "--prefix", "units", "--metrics-textfile", "warmup.prom")
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "wrote 3 units")
	assert.Contains(t, out, "format markdown")

	raw, err := os.ReadFile(filepath.Join(dir, "out", "units", "Magazine.md"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "getIssue")
	assert.FileExists(t, filepath.Join(dir, "out", "units", "Chapter.md"))

	prom, err := os.ReadFile(filepath.Join(dir, "warmup.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), `eavcore_warmup_units_total{format="markdown"} 3`)
	assert.Contains(t, errOut, "unit written", "logs go to stderr")
}

func TestWarmupFromEnvironment(t *testing.T) {
	dir := workspace(t)
	t.Setenv("EAVCORE_REGISTRY_PATH", "library.yaml")
	t.Setenv("EAVCORE_RENDER_FORMAT", "go")
	t.Setenv("EAVCORE_RENDER_PACKAGE", "library")
	t.Setenv("EAVCORE_OUTPUT_FS_ROOT", "gen")
	code, _, errOut := invoke("warmup")
	require.Equal(t, exitOK, code, errOut)
	raw, err := os.ReadFile(filepath.Join(dir, "gen", "Book.go"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "package library")
}

func TestWarmupDryRun(t *testing.T) {
	workspace(t)
	code, out, errOut := invoke("warmup", "--registry", "library.yaml", "--format", "yaml", "--dry-run")
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "Book.yaml\t6 declarations")
	assert.Contains(t, out, "to memory")
	assert.NoDirExists(t, "generated")
}

func TestWarmupWriteFailure(t *testing.T) {
	workspace(t)
	require.NoError(t, os.MkdirAll("out", 0o750))
	require.NoError(t, os.WriteFile(filepath.Join("out", "units"), []byte("not a directory"), 0o600))
	code, _, errOut := invoke("warmup", "--registry", "library.yaml", "--out-dir", "out", "--prefix", "units")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, `output fs: write "units/Book.go"`)
}

func TestUsageErrors(t *testing.T) {
	workspace(t)
	code, _, _ := invoke("warmup", "--no-such-flag")
	assert.Equal(t, exitUsage, code)

	code, _, _ = invoke("describe")
	assert.Equal(t, exitUsage, code)

	code, _, errOut := invoke("warmup", "--registry", "library.yaml", "--format", "pdf")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "hint:")

	code, _, errOut = invoke("describe", "Novel", "--registry", "library.yaml")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, `unknown family "Novel"`)
	assert.Contains(t, errOut, "hint: run validate")
}

func TestDescribe(t *testing.T) {
	workspace(t)
	code, out, errOut := invoke("describe", "Magazine", "--registry", "library.yaml")
	require.Equal(t, exitOK, code, errOut)
	for _, want := range []string{
		"family: Magazine",
		"parent: Book",
		"data_type: Book",
		"declared_by: Book",
		"inherited: true",
		"name: getIssue",
		"name: setIssue",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "name: getTitle", "inherited accessors stay on the declaring family")
}

func TestStoreInitAndShow(t *testing.T) {
	dir := workspace(t)
	dbPath := filepath.Join(dir, "eav.db")
	ctx := context.Background()

	code, out, errOut := invoke("store", "init", "--storage", "sqlite", "--sqlite-path", dbPath)
	if code != exitOK {
		t.Skipf("sqlite unavailable: %s", errOut)
	}
	assert.Contains(t, out, "store ready (driver sqlite)")

	loaded, err := registry.Load("library.yaml")
	require.NoError(t, err)
	store, err := sqlite.NewStore(ctx, dbPath)
	require.NoError(t, err)
	book, err := loaded.Registry.NewData("Book")
	require.NoError(t, err)
	require.NoError(t, book.Set("title", "Dune", nil))
	require.NoError(t, book.Add("tags", "classic", nil))
	require.NoError(t, book.Add("tags", "scifi", nil))
	require.NoError(t, store.SaveData(ctx, book))
	require.NoError(t, store.Close())

	code, out, errOut = invoke("store", "show", book.ID(), "--registry", "library.yaml", "--storage", "sqlite", "--sqlite-path", dbPath)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "id: "+book.ID())
	assert.Contains(t, out, "family: Book")
	assert.Contains(t, out, "value: Dune")
	assert.Contains(t, out, "value: scifi")

	code, _, errOut = invoke("store", "show", "missing", "--registry", "library.yaml", "--storage", "sqlite", "--sqlite-path", dbPath)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "hint: check the id")
}

func TestMainUsesExitFunc(t *testing.T) {
	workspace(t)
	var codes []int
	old := exitFunc
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc = old }()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"eav-warmup", "validate", "--registry", "library.yaml"}
	main()
	os.Args = []string{"eav-warmup", "validate", "--registry", "nope.yaml"}
	main()
	assert.Equal(t, []int{exitOK, exitUsage}, codes)
}
