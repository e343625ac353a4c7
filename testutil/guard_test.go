package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingT struct {
	messages []string
}

func (r *recordingT) Fatalf(format string, args ...any) {
	r.messages = append(r.messages, fmt.Sprintf(format, args...))
}

func TestPredicates(t *testing.T) {
	assert.True(t, InternalImportForbidden("eavcore/internal/core"))
	assert.False(t, InternalImportForbidden("eavcore/pkg/domain"))
	assert.True(t, InfraImportForbidden("eavcore/internal/infra/output/fs"))
	assert.False(t, InfraImportForbidden("eavcore/internal/output"))

	for path, want := range map[string]bool{
		"database/sql":                            true,
		"database/sql/driver":                     true,
		"github.com/jackc/pgx/v5/stdlib":          true,
		"modernc.org/sqlite":                      true,
		"github.com/aws/aws-sdk-go-v2/service/s3": true,
		"github.com/cockroachdb/errors":           false,
		"database/sqlite":                         false,
	} {
		assert.Equal(t, want, StorageDriverForbidden(path), path)
	}

	either := AnyOf(InternalImportForbidden, StorageDriverForbidden)
	assert.True(t, either("modernc.org/sqlite"))
	assert.True(t, either("x/internal/y"))
	assert.False(t, either("fmt"))
}

func writeGo(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600))
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "package tmp\n\nimport (\n\t\"fmt\"\n\t\"database/sql\"\n)\n\nvar _ = fmt.Sprint\nvar _ sql.DB\n")
	writeGo(t, dir, "a_test.go", "package tmp\n\nimport \"modernc.org/sqlite\"\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o750))

	viols, err := directImportViolations(dir, StorageDriverForbidden)
	require.NoError(t, err)
	assert.Equal(t, []string{"database/sql (in a.go)"}, viols, "test files are ignored")

	AssertNoDirectImports(t, dir, InternalImportForbidden, "no internal imports")

	_, err = directImportViolations(filepath.Join(dir, "missing"), StorageDriverForbidden)
	require.Error(t, err)

	writeGo(t, dir, "broken.go", "package tmp\nimport (")
	_, err = directImportViolations(dir, StorageDriverForbidden)
	require.Error(t, err)
}

func TestFailHelpers(t *testing.T) {
	rec := &recordingT{}
	failIfDirectViolations(rec, "reason", nil)
	failIfTransitiveViolations(rec, "reason", nil)
	assert.Empty(t, rec.messages)

	failIfDirectViolations(rec, "domain", []string{"database/sql (in a.go)"})
	failIfTransitiveViolations(rec, "domain", []string{"modernc.org/sqlite"})
	require.Len(t, rec.messages, 2)
	assert.Contains(t, rec.messages[0], "forbidden direct imports detected (domain)")
	assert.Contains(t, rec.messages[1], "modernc.org/sqlite")
}

func TestAssertNoTransitiveDependencyUsesLoader(t *testing.T) {
	old := loadDeps
	t.Cleanup(func() { loadDeps = old })
	loadDeps = func(pattern string) ([]string, error) {
		assert.Equal(t, "eavcore/pkg/domain", pattern)
		return []string{"fmt", "github.com/cockroachdb/errors"}, nil
	}
	AssertNoTransitiveDependency(t, "eavcore/pkg/domain", StorageDriverForbidden, "stub")
	assert.Equal(t, []string{"modernc.org/sqlite"}, matching([]string{"fmt", "modernc.org/sqlite"}, StorageDriverForbidden))
}
