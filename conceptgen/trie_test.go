package conceptgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrieAllowedNarrowsWithPrefix(t *testing.T) {
	tr := newTrie()
	tr.insert([]Token{'c', 'a', 't'})
	tr.insert([]Token{'c', 'a', 'r'})
	tr.insert([]Token{'d', 'o', 'g'})

	root := tr.allowed(nil)
	assert.ElementsMatch(t, []Token{'c', 'd'}, root.Values())

	afterCA := tr.allowed([]Token{'c', 'a'})
	assert.ElementsMatch(t, []Token{'t', 'r'}, afterCA.Values())

	assert.True(t, tr.complete([]Token{'c', 'a', 't'}))
	assert.False(t, tr.complete([]Token{'c', 'a'}))
}

func TestTrieWalkUnknownPrefixReturnsNil(t *testing.T) {
	tr := newTrie()
	tr.insert([]Token{'a', 'b'})
	assert.Nil(t, tr.walk([]Token{'z'}))
	assert.Equal(t, 0, tr.allowed([]Token{'z'}).Size())
}

func TestAllowedExcludingPrunesFullyExcludedSubtrees(t *testing.T) {
	tr := newTrie()
	tr.insertLeaf([]Token{'r', 'a', 'd', 'i', 'u', 's', ':'}, "radius")
	tr.insertLeaf([]Token{'r', 'a', 'd', 'o', 'n', ':'}, "radon")
	tr.insertLeaf([]Token{'p', 'o', 's', ':'}, "pos")

	none := tr.allowedExcluding(nil, func(string) bool { return false })
	require.Equal(t, 2, none.Size())

	onlyPos := tr.allowedExcluding(nil, func(name string) bool { return name != "pos" })
	assert.ElementsMatch(t, []Token{'p'}, onlyPos.Values())

	atRad := tr.allowedExcluding([]Token{'r', 'a', 'd'}, func(name string) bool { return name == "radius" })
	assert.ElementsMatch(t, []Token{'o'}, atRad.Values(), "the 'i' branch is fully excluded (its only leaf is radius)")
}
