package domain

import (
	"testing"

	"eavcore/testutil"
)

// The domain layer stays storage-agnostic: drivers and implementation
// packages live under internal/.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.AnyOf(testutil.InternalImportForbidden, testutil.StorageDriverForbidden),
		"pkg/domain must not import internal packages or storage drivers")
}

func TestDomainHasNoTransitiveInfraDependency(t *testing.T) {
	testutil.AssertNoTransitiveDependency(t, "eavcore/pkg/domain",
		testutil.AnyOf(testutil.InternalImportForbidden, func(path string) bool {
			return path != "database/sql" && testutil.StorageDriverForbidden(path)
		}),
		"pkg/domain must not pull in drivers transitively")
}
