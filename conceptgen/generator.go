package conceptgen

import (
	"context"
	"fmt"
)

// Generator drives a Stepper under FSM control: mask, step, sample,
// advance, repeat, the same greedy decode loop as the teacher's
// generateSimpleCausal, but with every position's candidate set
// narrowed by the constrained generator instead of left open
// (SPEC_FULL.md §4.4).
type Generator struct {
	fsm       *FSM
	vocabSize int
	maxTokens int
}

// NewGenerator bounds a single generation stream to maxTokens steps
// (a runaway-FSM backstop; spec.md's own state machine always reaches
// END well before this in practice).
func NewGenerator(fsm *FSM, vocabSize, maxTokens int) *Generator {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Generator{fsm: fsm, vocabSize: vocabSize, maxTokens: maxTokens}
}

// Result is one finished generation stream.
type Result struct {
	Tokens []Token
	Ctx    *GenerationContext
}

// Run decodes greedily under step's Stepper until the FSM reaches END
// and the model emits its eos token, the token budget is exhausted, or
// ctx is cancelled between steps.
func (g *Generator) Run(ctx context.Context, step Stepper) (*Result, error) {
	genCtx := NewGenerationContext()

	for i := 0; i < g.maxTokens; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		mask, err := g.fsm.Mask(genCtx, g.vocabSize)
		if err != nil {
			return nil, fmt.Errorf("Generator.Run: step %d: %w", i, err)
		}

		logits, err := step.Step(ctx, genCtx.Generated, mask)
		if err != nil {
			return nil, fmt.Errorf("Generator.Run: step %d: %w", i, err)
		}

		token := argmaxF32(logits)

		if genCtx.State == End {
			if token == step.EOSTokenID() {
				genCtx.Generated = append(genCtx.Generated, token)
				return &Result{Tokens: genCtx.Generated, Ctx: genCtx}, nil
			}
			return nil, newLiteralMismatch(End, "model did not emit eos once forced")
		}

		if err := g.fsm.Advance(genCtx, token); err != nil {
			return nil, fmt.Errorf("Generator.Run: step %d: %w", i, err)
		}
	}

	return nil, newLiteralMismatch(genCtx.State, fmt.Sprintf("token budget of %d exhausted before reaching END", g.maxTokens))
}
