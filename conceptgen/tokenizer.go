package conceptgen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Tokenizer wraps sugarme/tokenizer as the kernel's Tokenizer Adapter
// (SPEC_FULL.md §4.1): literal-string-to-token-ids at init time, plus
// the vocabulary size and id-to-text decoding of the final output. It
// holds no per-generation state.
type Tokenizer struct {
	tok *tokenizer.Tokenizer
}

// autoTokenizer is the HF-style static dispatcher, kept from the
// teacher's AutoTokenizer convention:
//
//	tok, err := AutoTokenizer.FromPretrained(tokenizerPath)
type autoTokenizer struct{}

var AutoTokenizer autoTokenizer

// FromPretrained loads a tokenizer.json previously fetched by the
// Asset Retrieval component (hub.go) or already present on disk.
func (autoTokenizer) FromPretrained(tokenizerPath string) (*Tokenizer, error) {
	sanitizedPath, err := sanitizeTokenizerJSON(tokenizerPath)
	if err != nil {
		return nil, err
	}

	tok, err := pretrained.FromFile(sanitizedPath)
	if err != nil {
		return nil, fmt.Errorf("AutoTokenizer: %w", err)
	}

	return &Tokenizer{tok: tok}, nil
}

// EncodeLiteral encodes a fixed string into its token-id sequence with
// no special tokens added. It is called only at init (spec.md §4.1): it
// is deterministic and is what BuildSchema and BuildLiterals call.
func (t *Tokenizer) EncodeLiteral(s string) ([]Token, error) {
	enc, err := t.tok.EncodeSingle(s, false)
	if err != nil {
		return nil, fmt.Errorf("EncodeLiteral(%q): %w", s, err)
	}
	out := make([]Token, len(enc.Ids))
	for i, v := range enc.Ids {
		out[i] = int(v)
	}
	return out, nil
}

// Decode is used only for debugging/demo output; downstream value
// tokens are interpreted by the Parameter Processor, not the
// tokenizer's vocabulary.
func (t *Tokenizer) Decode(ids []Token) string {
	return t.tok.Decode(ids, true)
}

// VocabSize backs the init-time VocabularyCollision check.
func (t *Tokenizer) VocabSize() int {
	return t.tok.GetVocabSize(true)
}

func (t *Tokenizer) Info() string {
	return fmt.Sprintf("Tokenizer(vocab=%d)", t.VocabSize())
}

// sanitizeTokenizerJSON rewrites unsupported regex patterns (like
// negative lookaheads) into Go-regexp-compatible forms and returns a
// path to the sanitized copy.
func sanitizeTokenizerJSON(origPath string) (string, error) {
	raw, err := os.ReadFile(origPath)
	if err != nil {
		return "", err
	}

	// Replace unsupported negative lookahead with a simpler equivalent for Go regex.
	// Original: \s+(?!\S) -> \s+
	content := string(raw)
	content = strings.ReplaceAll(content, `\s+(?!\S)`, `\s+`)
	content = strings.ReplaceAll(content, `\\s+(?!\\S)`, `\\s+`)

	dir := filepath.Dir(origPath)
	sanitizedPath := filepath.Join(dir, "tokenizer_sanitized.json")
	if err := os.WriteFile(sanitizedPath, []byte(content), 0o644); err != nil {
		return "", err
	}
	return sanitizedPath, nil
}
