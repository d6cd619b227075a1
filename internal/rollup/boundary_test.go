package rollup_test

import (
	"testing"

	"genorollup/testutil"
)

func TestRollupReadsOnlyThroughSource(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(testutil.DriverImport, testutil.AdapterImport), "rollup core")
}

func TestRollupHasNoDriverDependency(t *testing.T) {
	if testing.Short() {
		t.Skip("runs go list")
	}
	testutil.AssertNoTransitiveDependency(t, "genorollup/internal/rollup", testutil.AnyOf(
		func(p string) bool { return testutil.DriverImport(p) && p != "database/sql" && p != "database/sql/driver" },
		testutil.AdapterImport,
	), "rollup core")
}
