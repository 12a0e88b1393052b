package conceptgen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckVocabularyCollisionPassesWhenRangeIsDisjoint(t *testing.T) {
	enc := charEncoder{}
	schema := buildSmallSchema(t)
	lit, err := BuildLiterals(enc, 1000, 8)
	require.NoError(t, err)

	require.NoError(t, CheckVocabularyCollision(1200, schema, lit))
}

func TestCheckVocabularyCollisionDetectsRangeExceedingVocab(t *testing.T) {
	enc := charEncoder{}
	schema := buildSmallSchema(t)
	lit, err := BuildLiterals(enc, 1000, 8)
	require.NoError(t, err)

	err = CheckVocabularyCollision(1004, schema, lit)
	require.Error(t, err)
	cgErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, VocabularyCollision, cgErr.Kind)
}

func TestCheckVocabularyCollisionDetectsLiteralOverlap(t *testing.T) {
	enc := charEncoder{}
	schema := buildSmallSchema(t)
	// ' ' (blank) is byte 32; a reserved range straddling it must be
	// rejected even though it comfortably fits inside vocabSize.
	lit, err := BuildLiterals(enc, 30, 5)
	require.NoError(t, err)

	err = CheckVocabularyCollision(1200, schema, lit)
	require.Error(t, err)
	cgErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, VocabularyCollision, cgErr.Kind)
}

func TestCheckVocabularyCollisionReplicatesDefaultConfigDemoMisconfiguration(t *testing.T) {
	// SmolLM-135M-ONNX-sized vocab with the spec's default V0/NumBins:
	// the reserved range [100000, 101024) does not fit, and must be
	// rejected at init rather than discovered as a mask index panic
	// once generation reaches GEN_PARAM_VALUE.
	enc := charEncoder{}
	schema := buildSmallSchema(t)
	lit, err := BuildLiterals(enc, 100000, 1024)
	require.NoError(t, err)

	err = CheckVocabularyCollision(49152, schema, lit)
	require.Error(t, err)
}
