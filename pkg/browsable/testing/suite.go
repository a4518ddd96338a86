// Package testing provides a conformance suite for LevelIterator backends.
//
// Backends run it from their own tests:
//
//	suite := &browsabletest.IteratorTestSuite{
//	    NewElement: func(t *testing.T) browsable.Element { ... },
//	    Expected:   []string{"a", "b.txt"},
//	    Containers: []string{"a"},
//	}
//	suite.Run(t)
package testing

import (
	"testing"

	"github.com/marmos91/dittobrowse/pkg/browsable"
)

// IteratorTestSuite checks the LevelIterator contract of one backend.
// It tests the interface contract, not implementation details.
type IteratorTestSuite struct {
	// NewElement creates a fresh container element for each test
	NewElement func(t *testing.T) browsable.Element

	// Expected lists the names of the element's children (any order)
	Expected []string

	// Containers lists the children that must report ChildrenYes and
	// yield a non-nil children iterator
	Containers []string

	// Missing is a name that must not be found (default "does-not-exist")
	Missing string
}

// Run executes all tests in the suite.
func (suite *IteratorTestSuite) Run(t *testing.T) {
	t.Run("Enumerate", suite.testEnumerate)
	t.Run("ResetRestarts", suite.testResetRestarts)
	t.Run("ExhaustedHasNoItem", suite.testExhausted)
	t.Run("FindExisting", suite.testFindExisting)
	t.Run("FindMissing", suite.testFindMissing)
	t.Run("Containers", suite.testContainers)
	t.Run("CreateItem", suite.testCreateItem)
	t.Run("DefaultSortPutsContainersFirst", suite.testDefaultSort)
	t.Run("SessionNavigation", suite.testSessionNavigation)
}

func (suite *IteratorTestSuite) missing() string {
	if suite.Missing != "" {
		return suite.Missing
	}
	return "does-not-exist"
}
