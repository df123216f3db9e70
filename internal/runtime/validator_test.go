package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"axon/internal/ast"
	"axon/internal/runtime"
	"axon/internal/types"
)

func TestValidateStructuredRejectsOutOfRange(t *testing.T) {
	v := runtime.NewValidator()
	ty := &types.SemanticType{Name: "Score", Kind: types.KindNominal, Range: &types.Range{Lo: 0, Hi: 1}}

	err := v.ValidateStructured("score_step", 1.5, ty, nil)
	require.Error(t, err)

	rerr, ok := err.(*runtime.Error)
	require.True(t, ok)
	require.Equal(t, runtime.CodeValidation, rerr.Code)
}

func TestValidateStructuredAcceptsInRange(t *testing.T) {
	v := runtime.NewValidator()
	ty := &types.SemanticType{Name: "Score", Kind: types.KindNominal, Range: &types.Range{Lo: 0, Hi: 1}}

	err := v.ValidateStructured("score_step", 0.42, ty, nil)
	require.NoError(t, err)
}

func TestValidateStructuredEnforcesWhereClause(t *testing.T) {
	v := runtime.NewValidator()
	ty := &types.SemanticType{Name: "PositiveCount", Kind: types.KindNominal}
	def := &ast.TypeDefinition{Where: &ast.WherePredicate{Source: "value > 0"}}

	err := v.ValidateStructured("count_step", -3, ty, def)
	require.Error(t, err)

	err = v.ValidateStructured("count_step", 3, ty, def)
	require.NoError(t, err)
}

func TestValidateStructuredRequiresBodyFields(t *testing.T) {
	v := runtime.NewValidator()
	ty := &types.SemanticType{Name: "Claim", Kind: types.KindNominal}
	def := &ast.TypeDefinition{
		Body: []ast.FieldSpec{
			{Name: "text", Type: &ast.TypeRef{Name: "String"}},
			{Name: "source", Type: &ast.TypeRef{Name: "String"}},
		},
	}

	err := v.ValidateStructured("claim_step", map[string]any{"text": "hi"}, ty, def)
	require.Error(t, err)

	err = v.ValidateStructured("claim_step", map[string]any{"text": "hi", "source": "doc1"}, ty, def)
	require.NoError(t, err)
}

func TestValidateConfidenceBelowFloor(t *testing.T) {
	v := runtime.NewValidator()
	c := 0.4
	err := v.ValidateConfidence("reason_step", &c, 0.7)
	require.Error(t, err)
	rerr := err.(*runtime.Error)
	require.Equal(t, runtime.CodeConfidence, rerr.Code)
}

func TestValidateConfidenceNilIsAccepted(t *testing.T) {
	v := runtime.NewValidator()
	require.NoError(t, v.ValidateConfidence("reason_step", nil, 0.9))
}
