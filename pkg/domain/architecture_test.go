package domain

import (
	"testing"

	"custodyledger/testutil"
)

func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain holds contracts only")
}
