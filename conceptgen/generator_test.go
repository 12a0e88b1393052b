package conceptgen

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// scriptedPreambleStepper forces the model to emit the WAIT_CODE
// recognition literal immediately, then falls back to GreedyStepper's
// lowest-allowed-token behavior for every masked state. This is enough
// to drive a full stream to END deterministically without a real
// model.
func scriptedPreambleStepper(t *testing.T, lit *Literals, vocabSize, eosTokenID int) *GreedyStepper {
	t.Helper()
	g := NewGreedyStepper(vocabSize, eosTokenID)
	g.SeedLiteralPreamble(lit.WaitCode)
	return g
}

func TestGeneratorRunReachesEndOnSmallSchema(t *testing.T) {
	enc := charEncoder{}
	schema := buildSmallSchema(t)
	lit, err := BuildLiterals(enc, 1000, 8)
	require.NoError(t, err)

	const vocabSize = 1200
	const eosTokenID = 1199
	fsm := NewFSM(schema, lit, eosTokenID)
	gen := NewGenerator(fsm, vocabSize, 2000)

	step := scriptedPreambleStepper(t, lit, vocabSize, eosTokenID)

	result, err := gen.Run(context.Background(), step)
	require.NoError(t, err)
	require.Equal(t, End, result.Ctx.State)
	require.Equal(t, eosTokenID, result.Tokens[len(result.Tokens)-1])

	text := enc.Decode(result.Tokens)
	require.True(t, strings.HasPrefix(text, `<code>{"category": "`))
	require.Contains(t, text, `"conceptualization": [{"template": "`)
	require.Contains(t, text, `}}]}</code>`)
}

func TestGeneratorRunIsDeterministic(t *testing.T) {
	enc := charEncoder{}
	schema := buildSmallSchema(t)
	lit, err := BuildLiterals(enc, 1000, 8)
	require.NoError(t, err)

	const vocabSize = 1200
	const eosTokenID = 1199
	fsm := NewFSM(schema, lit, eosTokenID)

	run := func() []Token {
		gen := NewGenerator(fsm, vocabSize, 2000)
		step := scriptedPreambleStepper(t, lit, vocabSize, eosTokenID)
		result, err := gen.Run(context.Background(), step)
		require.NoError(t, err)
		return result.Tokens
	}

	first := run()
	second := run()
	require.Equal(t, first, second, "identical schema and stepper script must produce identical streams")
}
