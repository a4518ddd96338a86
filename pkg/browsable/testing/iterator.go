package testing

import (
	"testing"

	"github.com/marmos91/dittobrowse/pkg/browsable"
	"github.com/stretchr/testify/require"
)

func (suite *IteratorTestSuite) iterator(t *testing.T) browsable.LevelIterator {
	t.Helper()

	elem := suite.NewElement(t)
	require.NotNil(t, elem)

	it := elem.ChildrenIterator()
	require.NotNil(t, it, "container element must return an iterator")
	return it
}

func collectNames(it browsable.LevelIterator) []string {
	var names []string
	for it.Next() {
		names = append(names, it.Name())
	}
	return names
}

func (suite *IteratorTestSuite) testEnumerate(t *testing.T) {
	it := suite.iterator(t)

	require.True(t, it.Reset())
	require.ElementsMatch(t, suite.Expected, collectNames(it))
}

func (suite *IteratorTestSuite) testResetRestarts(t *testing.T) {
	it := suite.iterator(t)

	require.True(t, it.Reset())
	first := collectNames(it)

	require.True(t, it.Reset())
	second := collectNames(it)

	require.Equal(t, first, second)
}

func (suite *IteratorTestSuite) testExhausted(t *testing.T) {
	it := suite.iterator(t)

	require.True(t, it.Reset())
	for it.Next() {
		require.True(t, it.HasItem())
	}
	require.False(t, it.HasItem())
	require.False(t, it.Next())
}

func (suite *IteratorTestSuite) testFindExisting(t *testing.T) {
	for _, name := range suite.Expected {
		it := suite.iterator(t)

		require.True(t, browsable.Find(it, name), "find %q", name)
		require.True(t, it.HasItem())
		require.Equal(t, name, it.Name())
		require.NotNil(t, it.Element(), "element for %q", name)
	}
}

func (suite *IteratorTestSuite) testFindMissing(t *testing.T) {
	it := suite.iterator(t)

	require.False(t, browsable.Find(it, suite.missing()))
}

func (suite *IteratorTestSuite) testContainers(t *testing.T) {
	for _, name := range suite.Containers {
		it := suite.iterator(t)

		require.True(t, browsable.Find(it, name))
		require.Equal(t, browsable.ChildrenYes, it.CanHaveChildren(), "container %q", name)

		elem := it.Element()
		require.NotNil(t, elem)
		require.NotNil(t, elem.ChildrenIterator(), "container %q must be listable", name)
	}
}

func (suite *IteratorTestSuite) testCreateItem(t *testing.T) {
	it := suite.iterator(t)

	containers := make(map[string]bool, len(suite.Containers))
	for _, name := range suite.Containers {
		containers[name] = true
	}

	require.True(t, it.Reset())
	for it.Next() {
		item := it.CreateItem()
		require.NotNil(t, item)
		require.Equal(t, it.Name(), item.Name)
		if containers[item.Name] {
			require.True(t, item.IsFolder(), "item %q", item.Name)
		}
	}
}

func (suite *IteratorTestSuite) testDefaultSort(t *testing.T) {
	it := suite.iterator(t)

	var items []*browsable.Item
	require.True(t, it.Reset())
	for it.Next() {
		items = append(items, it.CreateItem())
	}

	browsable.Sort(it, items, browsable.SortDefault)

	seenLeaf := false
	for _, item := range items {
		if item.IsFolder() {
			require.False(t, seenLeaf, "container %q listed after a leaf", item.Name)
		} else {
			seenLeaf = true
		}
	}
}

func (suite *IteratorTestSuite) testSessionNavigation(t *testing.T) {
	session := browsable.NewSession(suite.NewElement(t))

	for _, name := range suite.Containers {
		require.True(t, session.Navigate([]string{name}))
		require.Equal(t, 1, session.Depth())
	}

	require.False(t, session.Navigate([]string{suite.missing()}))
	require.Equal(t, 0, session.Depth())
}
