package conceptgen

import "fmt"

// Literals holds every fixed token sequence and small token group the
// FSM consults: the "add" states' literal JSON fragments, the wait
// state's recognition sequence, and the short character groups that
// drive number formatting in GEN_POSITION_VALUE/GEN_ROTATION_VALUE/
// GEN_PARAM_VALUE (SPEC_FULL.md §4.3). Built once at init from the
// Tokenizer Adapter and read-only thereafter.
type Literals struct {
	WaitCode []Token
	Add      map[State][]Token

	PoseStart    []Token // ' [-', ' ['
	PositionEnd  []Token // '],'
	RotationEnd  []Token // ']},'
	Zero         []Token // '0'
	Natural      []Token // '0'..'9'
	Positive     []Token // '1'..'9'
	Comma        []Token // ','
	Negative     []Token // ' -'
	Blank        []Token // ' '
	ParamNameEnd []Token // '":'
	NextTemplate []Token // ']}'
	End          []Token // ']'

	ValueTokens []Token // [V0, V0+NumBins)
}

// addSegments is the literal JSON text emitted in each "add" state.
var addSegments = map[State]string{
	AddCategoryKey:     `category": "`,
	AddPositionKey:     `", "pose": {"global_position":`,
	AddRotationKey:     ` "global_rotation":`,
	AddConceptKey:      ` "conceptualization": [{"template": "`,
	AddParamCon:        `", "parameters": {"`,
	AddParamKVCon:      ` [`,
	AddParamValueCon:   `], "`,
	AddNextTemplateCon: `}, {"template": "`,
	AddEnd:             `}}]}</code>`,
}

const waitCodeSegment = `<code>{"`

// BuildLiterals encodes every fixed segment and character group through
// enc and precomputes the reserved value-token range
// [v0, v0+numBins).
func BuildLiterals(enc Encoder, v0, numBins int) (*Literals, error) {
	lit := &Literals{Add: map[State][]Token{}}

	waitCode, err := enc.EncodeLiteral(waitCodeSegment)
	if err != nil {
		return nil, err
	}
	lit.WaitCode = waitCode

	for state, seg := range addSegments {
		toks, err := enc.EncodeLiteral(seg)
		if err != nil {
			return nil, err
		}
		lit.Add[state] = toks
	}

	group := func(segs ...string) ([]Token, error) {
		var out []Token
		for _, s := range segs {
			toks, err := enc.EncodeLiteral(s)
			if err != nil {
				return nil, err
			}
			out = append(out, toks...)
		}
		return out, nil
	}

	var groupErr error
	must := func(segs ...string) []Token {
		toks, err := group(segs...)
		if err != nil && groupErr == nil {
			groupErr = err
		}
		return toks
	}

	lit.PoseStart = must(" [-", " [")
	lit.PositionEnd = must("],")
	lit.RotationEnd = must("]},")
	lit.Zero = must("0")
	lit.Natural = must("0", "1", "2", "3", "4", "5", "6", "7", "8", "9")
	lit.Positive = must("1", "2", "3", "4", "5", "6", "7", "8", "9")
	lit.Comma = must(",")
	lit.Negative = must(" -")
	lit.Blank = must(" ")
	lit.ParamNameEnd = must(`":`)
	lit.NextTemplate = must("]}")
	lit.End = must("]")
	if groupErr != nil {
		return nil, groupErr
	}

	lit.ValueTokens = make([]Token, numBins)
	for i := 0; i < numBins; i++ {
		lit.ValueTokens[i] = v0 + i
	}

	return lit, nil
}

// LiteralTokens returns every distinct token id used in any fixed
// segment or character group. Used only by the init-time
// VocabularyCollision check; not consulted during generation.
func (l *Literals) LiteralTokens() []Token {
	var out []Token
	out = append(out, l.WaitCode...)
	for _, seg := range l.Add {
		out = append(out, seg...)
	}
	out = append(out, l.PoseStart...)
	out = append(out, l.PositionEnd...)
	out = append(out, l.RotationEnd...)
	out = append(out, l.Zero...)
	out = append(out, l.Natural...)
	out = append(out, l.Positive...)
	out = append(out, l.Comma...)
	out = append(out, l.Negative...)
	out = append(out, l.Blank...)
	out = append(out, l.ParamNameEnd...)
	out = append(out, l.NextTemplate...)
	out = append(out, l.End...)
	return out
}

// CheckVocabularyCollision enforces spec.md §3/§7: the reserved value-
// token range [V0, V0+NumBins) must fit inside the tokenizer's actual
// vocabulary and must be disjoint from every literal- or enumeration-
// token id the schema and literals tables encode. Call this once at
// init, after BuildSchema and BuildLiterals and before any generation
// stream runs — a collision here means a later GEN_PARAM_VALUE mask
// would either silently alias a value token onto a literal/enum token
// or index past the end of the logits vector, so it is fatal rather
// than degraded.
func CheckVocabularyCollision(vocabSize int, schema *Schema, lit *Literals) error {
	if len(lit.ValueTokens) == 0 {
		return nil
	}
	v0 := lit.ValueTokens[0]
	vEnd := v0 + len(lit.ValueTokens) // exclusive

	if v0 < 0 || vEnd > vocabSize {
		return newVocabularyCollision(fmt.Sprintf(
			"reserved value range [%d, %d) does not fit inside vocabulary size %d", v0, vEnd, vocabSize))
	}

	inRange := func(tok Token) bool { return tok >= v0 && tok < vEnd }
	for _, tok := range schema.LiteralTokens() {
		if inRange(tok) {
			return newVocabularyCollision(fmt.Sprintf(
				"schema token %d falls inside reserved value range [%d, %d)", tok, v0, vEnd))
		}
	}
	for _, tok := range lit.LiteralTokens() {
		if inRange(tok) {
			return newVocabularyCollision(fmt.Sprintf(
				"literal token %d falls inside reserved value range [%d, %d)", tok, v0, vEnd))
		}
	}
	return nil
}

func containsToken(xs []Token, v Token) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
