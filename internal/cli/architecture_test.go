package cli

import (
	"testing"

	"strata/testutil"
)

func TestCLIDoesNotPickEngines(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.EngineImportForbidden,
		"commands reach storage through core.OpenPersistentStore")
}
