package domain

import (
	"testing"

	"pictocore/testutil"
)

func TestDomainHasNoBackendDependencies(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.Any(testutil.InternalImportForbidden, testutil.StorageDriverImportForbidden),
		"domain types stay independent of adapters and drivers")
}
