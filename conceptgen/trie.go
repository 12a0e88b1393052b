package conceptgen

import (
	"github.com/emirpasic/gods/v2/maps/treemap"
	"github.com/emirpasic/gods/v2/sets/treeset"
)

// trieNode is one node of a prefix-acceptor trie: the set of tokens
// that legally extend the prefix reaching this node is the sorted key
// set of children. A node with isEnd set additionally accepts the
// empty continuation, i.e. the prefix reaching it is itself a complete
// entry (used for the PARAM_TRIE ":"-terminated names).
type trieNode struct {
	children *treemap.Map[Token, *trieNode]
	isEnd    bool
	leafName string
}

func newTrieNode() *trieNode {
	return &trieNode{children: treemap.New[Token, *trieNode]()}
}

// trie is a prefix acceptor over token sequences, built once at init
// and read-only thereafter (safe for concurrent use across generation
// streams, per the resource model in SPEC_FULL.md §5).
type trie struct {
	root *trieNode
}

func newTrie() *trie {
	return &trie{root: newTrieNode()}
}

// insert adds a complete token sequence (e.g. an encoded category,
// template, or parameter name) to the trie.
func (t *trie) insert(seq []Token) {
	node := t.root
	for _, tok := range seq {
		child, ok := node.children.Get(tok)
		if !ok {
			child = newTrieNode()
			node.children.Put(tok, child)
		}
		node = child
	}
	node.isEnd = true
}

// insertLeaf is insert plus a name label on the terminal node, used for
// PARAM_TRIE entries so allowedExcluding can prune whole subtrees whose
// only completions are already-emitted parameter names.
func (t *trie) insertLeaf(seq []Token, name string) {
	t.insert(seq)
	node := t.walk(seq)
	node.leafName = name
}

// hasUnexcludedLeaf reports whether the subtree rooted at node contains
// at least one complete entry whose leaf name does not satisfy excluded.
func hasUnexcludedLeaf(node *trieNode, excluded func(name string) bool) bool {
	if node.isEnd && !excluded(node.leafName) {
		return true
	}
	for _, child := range node.children.Values() {
		if hasUnexcludedLeaf(child, excluded) {
			return true
		}
	}
	return false
}

// allowedExcluding is like allowed, but a candidate token is dropped
// when every completion reachable through it satisfies excluded (e.g.
// because it names an already-emitted parameter).
func (t *trie) allowedExcluding(prefix []Token, excluded func(name string) bool) *treeset.Set[Token] {
	out := treeset.New[Token]()
	node := t.walk(prefix)
	if node == nil {
		return out
	}
	for _, tok := range node.children.Keys() {
		child, _ := node.children.Get(tok)
		if hasUnexcludedLeaf(child, excluded) {
			out.Add(tok)
		}
	}
	return out
}

// walk returns the trie node reached after consuming prefix, or nil if
// prefix is not a valid prefix of any inserted sequence.
func (t *trie) walk(prefix []Token) *trieNode {
	node := t.root
	for _, tok := range prefix {
		child, ok := node.children.Get(tok)
		if !ok {
			return nil
		}
		node = child
	}
	return node
}

// allowed returns the sorted set of tokens that may legally follow
// prefix. An empty result means prefix is already a complete entry (or
// is not a valid prefix at all) — callers distinguish those cases via
// walk's nil return and node.isEnd.
func (t *trie) allowed(prefix []Token) *treeset.Set[Token] {
	out := treeset.New[Token]()
	node := t.walk(prefix)
	if node == nil {
		return out
	}
	for _, tok := range node.children.Keys() {
		out.Add(tok)
	}
	return out
}

// complete reports whether prefix names a fully-formed entry in the
// trie (i.e. some inserted sequence equals prefix exactly).
func (t *trie) complete(prefix []Token) bool {
	node := t.walk(prefix)
	return node != nil && node.isEnd
}

// allTokens returns every distinct token id appearing as an edge
// anywhere in the trie, used only for the init-time vocabulary
// collision scan (CheckVocabularyCollision in literals.go) — never
// called on the generation hot path.
func (t *trie) allTokens() []Token {
	seen := map[Token]bool{}
	var walk func(n *trieNode)
	walk = func(n *trieNode) {
		for _, tok := range n.children.Keys() {
			seen[tok] = true
			child, _ := n.children.Get(tok)
			walk(child)
		}
	}
	walk(t.root)
	out := make([]Token, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	return out
}
