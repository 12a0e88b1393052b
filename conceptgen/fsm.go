package conceptgen

import (
	"fmt"

	"github.com/google/uuid"
)

// transitions is the FSM's state transition table (spec.md §4.3.2),
// keyed by the named action a state's update logic selects.
var transitions = map[State]map[string]State{
	WaitCode:           {"remain": WaitCode, "continue": AddCategoryKey},
	AddCategoryKey:     {"continue": GenCategoryValue},
	GenCategoryValue:   {"remain": GenCategoryValue, "continue": AddPositionKey},
	AddPositionKey:     {"continue": GenPositionValue},
	GenPositionValue:   {"remain": GenPositionValue, "continue": AddRotationKey},
	AddRotationKey:     {"continue": GenRotationValue},
	GenRotationValue:   {"remain": GenRotationValue, "continue": AddConceptKey},
	AddConceptKey:      {"continue": GenTemplateName},
	GenTemplateName:    {"remain": GenTemplateName, "continue": AddParamCon},
	AddParamCon:        {"continue": GenParamKey},
	GenParamKey:        {"remain": GenParamKey, "continue": AddParamKVCon},
	AddParamKVCon:      {"continue": GenParamValue},
	GenParamValue:      {"remain": GenParamValue, "continue": AddParamValueCon, "wait": GenTemplateOrEnd},
	AddParamValueCon:   {"continue": GenParamKey},
	GenTemplateOrEnd:   {"continue": AddNextTemplateCon, "end": AddEnd},
	AddNextTemplateCon: {"continue": GenTemplateName},
	AddEnd:             {"continue": End},
}

func nextState(s State, action string) State {
	if m, ok := transitions[s]; ok {
		if next, ok := m[action]; ok {
			return next
		}
	}
	return s
}

// GenerationContext is the per-stream mutable state the FSM threads
// through a single generation (spec.md §3). Each stream owns its own
// context; the Schema and Literals it consults are read-only and may
// be shared across streams (SPEC_FULL.md §5).
type GenerationContext struct {
	ID uuid.UUID

	State State

	CategoryTokens []Token
	Category       string

	PositionTokens []Token
	RotationTokens []Token
	PoseDigitBuf   []Token
	CommasInArray  int

	TemplateTokens []Token
	Template       string

	ParamNameTokens []Token
	ParamName       string
	EmittedParams   []string

	ParamValueTokens []Token
	ParamValueIndex  int

	FixedLiteralPos int

	Generated []Token
}

// NewGenerationContext starts a fresh stream at WAIT_CODE.
func NewGenerationContext() *GenerationContext {
	return &GenerationContext{ID: uuid.New(), State: WaitCode}
}

func (c *GenerationContext) emittedSet() map[string]bool {
	m := make(map[string]bool, len(c.EmittedParams))
	for _, p := range c.EmittedParams {
		m[p] = true
	}
	return m
}

// FSM computes allowed-token sets and context transitions against a
// fixed Schema and Literals table. An FSM value is immutable and safe
// for concurrent use by multiple GenerationContext streams.
type FSM struct {
	schema       *Schema
	lit          *Literals
	eosTokenID   Token
	poseDigitCap int
}

// NewFSM binds a Schema and Literals table (both built once at init)
// with the model's end-of-sequence token id. poseDigitCap is the
// maximum digit count a single position/rotation coordinate may reach
// before the FSM forces a comma or array close (spec.md §9 open
// question (iii)); pass 0 (or omit) for the spec's default of 3,
// exposed as Config.PoseDigitCap for callers that need to change it.
func NewFSM(schema *Schema, lit *Literals, eosTokenID Token, poseDigitCap ...int) *FSM {
	cap := 3
	if len(poseDigitCap) > 0 && poseDigitCap[0] > 0 {
		cap = poseDigitCap[0]
	}
	return &FSM{schema: schema, lit: lit, eosTokenID: eosTokenID, poseDigitCap: cap}
}

// Mask computes, for the context's current state, the boolean
// allow-list over vocabSize token ids (SPEC_FULL.md §6 Stepper
// contract: true entries are left unmodified, false entries get
// -Inf). At END, only the eos token is allowed. At a wait state with
// no recognition condition pending, every token is allowed (nil,
// meaning "no masking").
func (f *FSM) Mask(ctx *GenerationContext, vocabSize int) ([]bool, error) {
	if ctx.State == End {
		mask := make([]bool, vocabSize)
		mask[f.eosTokenID] = true
		return mask, nil
	}

	switch ctx.State.kind() {
	case kindWait:
		return nil, nil

	case kindAdd:
		segment, ok := f.lit.Add[ctx.State]
		if !ok || len(segment) == 0 {
			return nil, newSchemaEmptyAcceptor(ctx.State, "no literal segment registered for add state")
		}
		if ctx.FixedLiteralPos >= len(segment) {
			return nil, &Error{Kind: SchemaEmptyAcceptor, State: ctx.State,
				Detail: fmt.Sprintf("fixed literal position %d out of range for segment of length %d", ctx.FixedLiteralPos, len(segment))}
		}
		mask := make([]bool, vocabSize)
		mask[segment[ctx.FixedLiteralPos]] = true
		return mask, nil

	default: // kindGen
		allowed, err := f.allowedTokens(ctx)
		if err != nil {
			return nil, err
		}
		if len(allowed) == 0 {
			return nil, newSchemaEmptyAcceptor(ctx.State, "computed allowed set is empty")
		}
		mask := make([]bool, vocabSize)
		for _, t := range allowed {
			mask[t] = true
		}
		return mask, nil
	}
}

// allowedTokens is get_allowed_tokens (constraint_generation.py),
// dispatched per gen state.
func (f *FSM) allowedTokens(ctx *GenerationContext) ([]Token, error) {
	switch ctx.State {
	case GenCategoryValue:
		return f.schema.CategoryAllowed(ctx.CategoryTokens).Values(), nil

	case GenPositionValue, GenRotationValue:
		pose := ctx.PositionTokens
		if ctx.State == GenRotationValue {
			pose = ctx.RotationTokens
		}
		return f.poseAllowed(ctx, pose), nil

	case GenTemplateName:
		return f.schema.TemplateAllowed(ctx.Category, ctx.TemplateTokens).Values(), nil

	case GenParamKey:
		return f.schema.ParamAllowed(ctx.Category, ctx.Template, ctx.ParamNameTokens, ctx.emittedSet()).Values(), nil

	case GenParamValue:
		if len(ctx.ParamValueTokens) == 0 || containsToken(f.lit.Blank, lastToken(ctx.ParamValueTokens)) {
			return f.lit.ValueTokens, nil
		}
		last := lastToken(ctx.ParamValueTokens)
		if last >= f.lit.ValueTokens[0] && last < f.lit.ValueTokens[0]+len(f.lit.ValueTokens) {
			return f.lit.Comma, nil
		}
		if containsToken(f.lit.Comma, last) {
			return f.lit.Blank, nil
		}
		return nil, &Error{Kind: SchemaEmptyAcceptor, State: ctx.State,
			Detail: fmt.Sprintf("malformed param value buffer, last token %d", last)}

	case GenTemplateOrEnd:
		out := append([]Token(nil), f.lit.NextTemplate...)
		out = append(out, f.lit.End...)
		return out, nil

	default:
		return nil, &Error{Kind: SchemaEmptyAcceptor, State: ctx.State, Detail: "allowedTokens called on a non-gen state"}
	}
}

func lastToken(ts []Token) Token {
	return ts[len(ts)-1]
}

func (f *FSM) poseAllowed(ctx *GenerationContext, pose []Token) []Token {
	switch {
	case len(pose) == 0:
		return f.lit.PoseStart
	case containsToken(f.lit.PoseStart, lastToken(pose)):
		return f.lit.Natural
	case containsToken(f.lit.Blank, lastToken(pose)):
		return f.lit.Natural
	case containsToken(f.lit.Comma, lastToken(pose)):
		return append(append([]Token(nil), f.lit.Blank...), f.lit.Negative...)
	case containsToken(f.lit.Negative, lastToken(pose)):
		return f.lit.Positive
	default:
		var allowed []Token
		notLast := len(ctx.PoseDigitBuf) < f.poseDigitCap &&
			!(len(ctx.PoseDigitBuf) == 1 && containsToken(f.lit.Zero, ctx.PoseDigitBuf[0]))
		if notLast {
			allowed = append(allowed, f.lit.Natural...)
		}
		if ctx.CommasInArray == 2 {
			if ctx.State == GenPositionValue {
				allowed = append(allowed, f.lit.PositionEnd...)
			} else {
				allowed = append(allowed, f.lit.RotationEnd...)
			}
		} else {
			allowed = append(allowed, f.lit.Comma...)
		}
		return allowed
	}
}

// Advance consumes one sampled token, updates ctx in place per
// update_context (constraint_generation.py), and transitions ctx.State.
func (f *FSM) Advance(ctx *GenerationContext, token Token) error {
	ctx.Generated = append(ctx.Generated, token)
	action := "continue"

	switch ctx.State {
	case WaitCode:
		action = f.advanceLiteralTail(ctx.Generated, f.lit.WaitCode)

	case GenCategoryValue:
		ctx.CategoryTokens = append(ctx.CategoryTokens, token)
		if f.schema.CategoryAllowed(ctx.CategoryTokens).Size() != 0 {
			action = "remain"
		} else if name, ok := f.schema.ResolveCategory(ctx.CategoryTokens); ok {
			ctx.Category = name
		}

	case AddPositionKey, AddRotationKey:
		action = f.advanceAddLiteral(ctx, token)
		if action == "continue" {
			ctx.CommasInArray = 0
			ctx.PoseDigitBuf = nil
		}

	case GenPositionValue, GenRotationValue:
		endGroup := f.lit.PositionEnd
		if ctx.State == GenRotationValue {
			ctx.RotationTokens = append(ctx.RotationTokens, token)
			endGroup = f.lit.RotationEnd
		} else {
			ctx.PositionTokens = append(ctx.PositionTokens, token)
		}
		if containsToken(f.lit.Comma, token) {
			ctx.CommasInArray++
			ctx.PoseDigitBuf = nil
		} else if containsToken(f.lit.Natural, token) {
			ctx.PoseDigitBuf = append(ctx.PoseDigitBuf, token)
		}
		if !containsToken(endGroup, token) {
			action = "remain"
		}

	case GenTemplateName:
		ctx.TemplateTokens = append(ctx.TemplateTokens, token)
		if f.schema.TemplateAllowed(ctx.Category, ctx.TemplateTokens).Size() != 0 {
			action = "remain"
		} else if name, ok := f.schema.ResolveTemplate(ctx.Category, ctx.TemplateTokens); ok {
			ctx.Template = name
		}

	case GenParamKey:
		ctx.ParamNameTokens = append(ctx.ParamNameTokens, token)
		if name, ok := f.schema.ParamNameIfComplete(ctx.Category, ctx.Template, ctx.ParamNameTokens); ok {
			ctx.ParamName = name
			ctx.EmittedParams = append(ctx.EmittedParams, name)
		} else {
			action = "remain"
		}

	case GenParamValue:
		ctx.ParamValueTokens = append(ctx.ParamValueTokens, token)
		if token >= f.lit.ValueTokens[0] && token < f.lit.ValueTokens[0]+len(f.lit.ValueTokens) {
			ctx.ParamValueIndex++
		}
		dims, ok := f.schema.ParamDims(ctx.Category, ctx.Template, ctx.ParamName)
		if !ok {
			return newSchemaEmptyAcceptor(ctx.State, "param value generated for unknown parameter "+ctx.ParamName)
		}
		if ctx.ParamValueIndex >= dims {
			ctx.ParamValueTokens = nil
			ctx.ParamValueIndex = 0
			if len(ctx.EmittedParams) == len(f.schema.ParamNames(ctx.Category, ctx.Template)) {
				action = "wait"
			}
		} else {
			action = "remain"
		}

	case GenTemplateOrEnd:
		if containsToken(f.lit.End, token) {
			action = "end"
		}

	case AddParamCon, AddParamValueCon:
		action = f.advanceAddLiteral(ctx, token)
		if action == "continue" {
			ctx.ParamNameTokens = nil
			ctx.ParamValueTokens = nil
			ctx.ParamName = ""
		}

	case AddParamKVCon:
		action = f.advanceAddLiteral(ctx, token)
		if action == "continue" {
			ctx.ParamValueTokens = nil
		}

	case AddNextTemplateCon:
		action = f.advanceAddLiteral(ctx, token)
		if action == "continue" {
			ctx.TemplateTokens = nil
			ctx.Template = ""
			ctx.ParamNameTokens = nil
			ctx.ParamName = ""
			ctx.EmittedParams = nil
			ctx.ParamValueTokens = nil
			ctx.ParamValueIndex = 0
		}

	default:
		action = f.advanceAddLiteral(ctx, token)
	}

	ctx.State = nextState(ctx.State, action)
	return nil
}

// advanceLiteralTail reports "remain" until generated's tail matches
// segment exactly, then "continue" (WAIT_CODE's recognition rule).
func (f *FSM) advanceLiteralTail(generated, segment []Token) string {
	if len(generated) < len(segment) {
		return "remain"
	}
	tail := generated[len(generated)-len(segment):]
	for i, t := range segment {
		if tail[i] != t {
			return "remain"
		}
	}
	return "continue"
}

// advanceAddLiteral advances an add state's fixed-position cursor and
// reports "continue" once the full segment has been walked.
func (f *FSM) advanceAddLiteral(ctx *GenerationContext, token Token) string {
	segment := f.lit.Add[ctx.State]
	ctx.FixedLiteralPos++
	if ctx.FixedLiteralPos >= len(segment) {
		ctx.FixedLiteralPos = 0
		return "continue"
	}
	return "remain"
}
