package conceptgen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSmallFSM(t *testing.T) (*FSM, *Schema, *Literals) {
	t.Helper()
	enc := charEncoder{}
	schema := buildSmallSchema(t)
	lit, err := BuildLiterals(enc, 1000, 8)
	require.NoError(t, err)
	return NewFSM(schema, lit, 999), schema, lit
}

func TestMaskAtEndOnlyAllowsEOS(t *testing.T) {
	fsm, _, _ := buildSmallFSM(t)
	ctx := NewGenerationContext()
	ctx.State = End

	mask, err := fsm.Mask(ctx, 1200)
	require.NoError(t, err)
	for i, allowed := range mask {
		if i == 999 {
			require.True(t, allowed)
		} else {
			require.False(t, allowed, "token %d should be masked at END", i)
		}
	}
}

func TestMaskAtWaitStateIsUnconstrained(t *testing.T) {
	fsm, _, _ := buildSmallFSM(t)
	ctx := NewGenerationContext()

	mask, err := fsm.Mask(ctx, 1200)
	require.NoError(t, err)
	require.Nil(t, mask)
}

func TestAdvanceWaitCodeRecognizesLiteralTail(t *testing.T) {
	fsm, _, lit := buildSmallFSM(t)
	ctx := NewGenerationContext()

	// Free-text preamble before the literal appears.
	require.NoError(t, fsm.Advance(ctx, 'h'))
	require.Equal(t, WaitCode, ctx.State)

	for _, tok := range lit.WaitCode {
		require.NoError(t, fsm.Advance(ctx, tok))
	}
	require.Equal(t, AddCategoryKey, ctx.State)
}

func TestAdvanceAddStateWalksFixedSegmentThenTransitions(t *testing.T) {
	fsm, _, lit := buildSmallFSM(t)
	ctx := NewGenerationContext()
	ctx.State = AddCategoryKey

	segment := lit.Add[AddCategoryKey]
	for i, tok := range segment {
		require.NoError(t, fsm.Advance(ctx, tok))
		if i < len(segment)-1 {
			require.Equal(t, AddCategoryKey, ctx.State)
		}
	}
	require.Equal(t, GenCategoryValue, ctx.State)
}

func TestGenCategoryValueNarrowsThenResolves(t *testing.T) {
	fsm, _, _ := buildSmallFSM(t)
	ctx := NewGenerationContext()
	ctx.State = GenCategoryValue

	allowed, err := fsm.allowedTokens(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []Token{'M', 'B'}, allowed)

	for _, tok := range []Token{'M', 'u', 'g'} {
		require.NoError(t, fsm.Advance(ctx, tok))
	}
	require.Equal(t, "Mug", ctx.Category)
	require.Equal(t, AddPositionKey, ctx.State)
}

func TestGenParamKeyExcludesAlreadyEmittedParam(t *testing.T) {
	fsm, _, _ := buildSmallFSM(t)
	ctx := NewGenerationContext()
	ctx.State = GenParamKey
	ctx.Category = "Mug"
	ctx.Template = "Body"
	ctx.ParamNameTokens = []Token{'r', 'a', 'd'}
	ctx.EmittedParams = []string{"radius"}

	allowed, err := fsm.allowedTokens(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []Token{'o'}, allowed, "radius is excluded, only radon's divergent branch remains")
}
