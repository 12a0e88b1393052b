package conceptgen

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/emirpasic/gods/v2/sets/treeset"
)

// Encoder is the subset of the Tokenizer Adapter the schema builder
// needs: deterministic literal encoding, called only at init.
type Encoder interface {
	EncodeLiteral(s string) ([]Token, error)
}

// ParamSpec maps a parameter name to its admissible arities, as read
// from a training corpus or a param_dims.json-style asset. When a
// parameter was observed with more than one arity, ArityPolicyMax (the
// default, and the only one implemented — see SPEC_FULL.md §9 open
// question (ii)) keeps the largest.
type ParamSpec map[string][]int

// TemplateSpec maps a template name to its parameter specs.
type TemplateSpec map[string]ParamSpec

// SchemaSource is the raw, ordered schema definition fed to BuildSchema.
type SchemaSource struct {
	Categories []string                 // ordered
	Templates  map[string]TemplateSpec   // category -> template -> params
}

// ArityPolicy decides which arity to keep when a parameter was observed
// with more than one. Only ArityPolicyMax is implemented.
type ArityPolicy func(arities []int) int

// ArityPolicyMax keeps the largest observed arity (spec.md §3: "if the
// source lists multiple admissible arities, the largest is used").
func ArityPolicyMax(arities []int) int {
	max := 0
	for _, a := range arities {
		if a > max {
			max = a
		}
	}
	return max
}

// Schema holds the prefix-acceptor tables built once at init: CAT_TRIE,
// TPL_TRIE[c], PARAM_TRIE[c][t], and PARAM_DIMS[c][t][p]. All fields are
// read-only after BuildSchema returns and may be shared across
// concurrently-running generation streams.
type Schema struct {
	Categories []string

	catTrie         *trie
	catNameByTokens map[string]string

	tplTrie         map[string]*trie
	tplNameByTokens map[string]map[string]string

	paramTrie map[string]map[string]*trie
	paramDims map[string]map[string]map[string]int

	paramNameEnd []Token
}

func tokenSeqKey(seq []Token) string {
	var b strings.Builder
	for i, t := range seq {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(t))
	}
	return b.String()
}

// BuildSchema encodes every category/template/parameter name with enc
// and constructs the three prefix-acceptor trie families. paramNameEnd
// is the literal token sequence that signals a parameter name is fully
// emitted (the source's `":` marker) — encode it once with
// enc.EncodeLiteral(`":`) and pass the result in.
func BuildSchema(src SchemaSource, enc Encoder, paramNameEnd []Token, policy ArityPolicy) (*Schema, error) {
	if policy == nil {
		policy = ArityPolicyMax
	}
	if len(paramNameEnd) == 0 {
		return nil, fmt.Errorf("BuildSchema: paramNameEnd must be non-empty")
	}

	s := &Schema{
		Categories:      append([]string(nil), src.Categories...),
		catTrie:         newTrie(),
		catNameByTokens: map[string]string{},
		tplTrie:         map[string]*trie{},
		tplNameByTokens: map[string]map[string]string{},
		paramTrie:       map[string]map[string]*trie{},
		paramDims:       map[string]map[string]map[string]int{},
		paramNameEnd:    append([]Token(nil), paramNameEnd...),
	}

	for _, cat := range src.Categories {
		catSeq, err := enc.EncodeLiteral(cat)
		if err != nil {
			return nil, fmt.Errorf("BuildSchema: encode category %q: %w", cat, err)
		}
		if len(catSeq) == 0 {
			return nil, fmt.Errorf("BuildSchema: category %q encodes to no tokens", cat)
		}
		s.catTrie.insert(catSeq)
		s.catNameByTokens[tokenSeqKey(catSeq)] = cat

		tplTrie := newTrie()
		s.tplTrie[cat] = tplTrie
		s.tplNameByTokens[cat] = map[string]string{}
		s.paramTrie[cat] = map[string]*trie{}
		s.paramDims[cat] = map[string]map[string]int{}

		templates := src.Templates[cat]
		// Deterministic iteration: sort template names.
		tplNames := make([]string, 0, len(templates))
		for name := range templates {
			tplNames = append(tplNames, name)
		}
		sort.Strings(tplNames)

		for _, tplName := range tplNames {
			tplSeq, err := enc.EncodeLiteral(tplName)
			if err != nil {
				return nil, fmt.Errorf("BuildSchema: encode template %q: %w", tplName, err)
			}
			if len(tplSeq) == 0 {
				return nil, fmt.Errorf("BuildSchema: template %q encodes to no tokens", tplName)
			}
			tplTrie.insert(tplSeq)
			s.tplNameByTokens[cat][tokenSeqKey(tplSeq)] = tplName

			paramTrie := newTrie()
			s.paramTrie[cat][tplName] = paramTrie
			s.paramDims[cat][tplName] = map[string]int{}

			params := templates[tplName]
			paramNames := make([]string, 0, len(params))
			for name := range params {
				paramNames = append(paramNames, name)
			}
			sort.Strings(paramNames)

			for _, paramName := range paramNames {
				paramSeq, err := enc.EncodeLiteral(paramName)
				if err != nil {
					return nil, fmt.Errorf("BuildSchema: encode param %q: %w", paramName, err)
				}
				if len(paramSeq) == 0 {
					return nil, fmt.Errorf("BuildSchema: param %q encodes to no tokens", paramName)
				}
				full := append(append([]Token(nil), paramSeq...), s.paramNameEnd...)
				paramTrie.insertLeaf(full, paramName)
				s.paramDims[cat][tplName][paramName] = policy(params[paramName])
			}
		}
	}

	return s, nil
}

// CategoryAllowed returns the allowed next tokens given the category
// tokens emitted so far.
func (s *Schema) CategoryAllowed(prefix []Token) *treeset.Set[Token] {
	return s.catTrie.allowed(prefix)
}

// ResolveCategory maps a completed category token sequence back to its
// name. ok is false if the sequence is not a known category.
func (s *Schema) ResolveCategory(tokens []Token) (string, bool) {
	name, ok := s.catNameByTokens[tokenSeqKey(tokens)]
	return name, ok
}

// TemplateAllowed returns the allowed next tokens for a template name
// under category cat, given the template tokens emitted so far.
func (s *Schema) TemplateAllowed(cat string, prefix []Token) *treeset.Set[Token] {
	t, ok := s.tplTrie[cat]
	if !ok {
		return treeset.New[Token]()
	}
	return t.allowed(prefix)
}

// ResolveTemplate maps a completed template token sequence back to its
// name under category cat.
func (s *Schema) ResolveTemplate(cat string, tokens []Token) (string, bool) {
	m, ok := s.tplNameByTokens[cat]
	if !ok {
		return "", false
	}
	name, ok := m[tokenSeqKey(tokens)]
	return name, ok
}

// ParamAllowed returns the allowed next tokens for a parameter name
// under (cat, tpl), given the param-name tokens emitted so far, with
// already-emitted parameter names pruned from the candidate set (see
// SPEC_FULL.md §4.3, resolving spec.md §9 open question (i)).
func (s *Schema) ParamAllowed(cat, tpl string, prefix []Token, emitted map[string]bool) *treeset.Set[Token] {
	byTpl, ok := s.paramTrie[cat]
	if !ok {
		return treeset.New[Token]()
	}
	t, ok := byTpl[tpl]
	if !ok {
		return treeset.New[Token]()
	}
	return t.allowedExcluding(prefix, func(name string) bool { return emitted[name] })
}

// ParamEndTokens returns the literal token sequence that terminates a
// parameter name.
func (s *Schema) ParamEndTokens() []Token {
	return s.paramNameEnd
}

// ParamNameIfComplete reports whether tokens (name bytes followed by
// however much of the terminator has been generated so far) exactly
// completes a parameter entry, returning its name if so. Unlike the
// single-token terminator check the constrained-generation literature
// typically assumes, this walks the trie directly, so it degrades
// correctly regardless of how many vocabulary tokens the terminator
// happens to tokenize to (see the fsm.go entry in DESIGN.md).
func (s *Schema) ParamNameIfComplete(cat, tpl string, tokens []Token) (string, bool) {
	byTpl, ok := s.paramTrie[cat]
	if !ok {
		return "", false
	}
	t, ok := byTpl[tpl]
	if !ok {
		return "", false
	}
	node := t.walk(tokens)
	if node == nil || !node.isEnd {
		return "", false
	}
	return node.leafName, true
}

// ResolveParamName maps a completed parameter-name token sequence (not
// including the terminator) back to its name under (cat, tpl).
func (s *Schema) ResolveParamName(cat, tpl string, nameTokens []Token) (string, bool) {
	byTpl, ok := s.paramTrie[cat]
	if !ok {
		return "", false
	}
	t, ok := byTpl[tpl]
	if !ok {
		return "", false
	}
	full := append(append([]Token(nil), nameTokens...), s.paramNameEnd...)
	node := t.walk(full)
	if node == nil || !node.isEnd {
		return "", false
	}
	return node.leafName, true
}

// ParamDims returns the expected arity for parameter p under (cat, tpl).
// ok is false for an unknown (cat, tpl, p) triple.
func (s *Schema) ParamDims(cat, tpl, p string) (int, bool) {
	byTpl, ok := s.paramDims[cat]
	if !ok {
		return 0, false
	}
	byParam, ok := byTpl[tpl]
	if !ok {
		return 0, false
	}
	d, ok := byParam[p]
	return d, ok
}

// LiteralTokens returns every distinct token id used anywhere in the
// category, template, and parameter acceptor tries. Used only by the
// init-time VocabularyCollision check (CheckVocabularyCollision); not
// consulted during generation.
func (s *Schema) LiteralTokens() []Token {
	var out []Token
	out = append(out, s.catTrie.allTokens()...)
	for _, t := range s.tplTrie {
		out = append(out, t.allTokens()...)
	}
	for _, byTpl := range s.paramTrie {
		for _, t := range byTpl {
			out = append(out, t.allTokens()...)
		}
	}
	return out
}

// ParamNames returns the full set of parameter names under (cat, tpl),
// used by the FSM to detect "all parameters of this template have been
// emitted".
func (s *Schema) ParamNames(cat, tpl string) []string {
	byTpl, ok := s.paramDims[cat]
	if !ok {
		return nil
	}
	byParam, ok := byTpl[tpl]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(byParam))
	for name := range byParam {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
