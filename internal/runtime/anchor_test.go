package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"axon/internal/ast"
	"axon/internal/runtime"
	"axon/internal/token"
)

func strLit(s string) *ast.Literal { return ast.NewLiteral(token.Position{}, ast.LiteralString, s, nil) }
func identLit(s string) *ast.Literal {
	return ast.NewLiteral(token.Position{}, ast.LiteralIdent, s, nil)
}
func floatLit(s string) *ast.Literal {
	return ast.NewLiteral(token.Position{}, ast.LiteralFloat, s, nil)
}
func listLit(els ...ast.Node) *ast.Literal {
	return ast.NewLiteral(token.Position{}, ast.LiteralList, "", els)
}

func TestBindAnchorDecodesFields(t *testing.T) {
	def := ast.NewAnchorDefinition(token.Position{}, "NoMedicalAdvice", []ast.Field{
		{Name: "require", Value: identLit("medical_context")},
		{Name: "reject", Value: listLit(strLit("diagnose"), strLit("prescribe"))},
		{Name: "confidence_floor", Value: floatLit("0.9")},
		{Name: "unknown_response", Value: strLit("I can't answer that.")},
		{Name: "on_violation", Value: identLit("raise MedicalAdviceError")},
	})

	a := runtime.BindAnchor(def)
	require.Equal(t, "NoMedicalAdvice", a.Name)
	require.Equal(t, "medical_context", a.Require)
	require.ElementsMatch(t, []string{"diagnose", "prescribe"}, a.Reject)
	require.InDelta(t, 0.9, a.ConfidenceFloor, 1e-9)
	require.Equal(t, runtime.ViolationRaise, a.OnViolation.Kind)
	require.Equal(t, "MedicalAdviceError", a.OnViolation.ErrorName)
}

func TestAnchorSetCheckPostRejectsPattern(t *testing.T) {
	a := &runtime.Anchor{Name: "NoDiagnosis", Reject: []string{"you have cancer"}}
	set := runtime.NewAnchorSet([]*runtime.Anchor{a})

	violator, err := set.CheckPost("step1", "Based on your symptoms, you have cancer.", 1.0)
	require.Error(t, err)
	require.Equal(t, a, violator)
}

func TestAnchorSetCheckPostEnforcesConfidenceFloor(t *testing.T) {
	a := &runtime.Anchor{Name: "HighConfidence", ConfidenceFloor: 0.9}
	set := runtime.NewAnchorSet([]*runtime.Anchor{a})

	_, err := set.CheckPost("step1", "looks fine", 0.5)
	require.Error(t, err)

	_, err = set.CheckPost("step1", "looks fine", 0.95)
	require.NoError(t, err)
}

func TestAnchorSetCheckPreDefaultsPermissive(t *testing.T) {
	a := &runtime.Anchor{Name: "NoRequirement"}
	set := runtime.NewAnchorSet([]*runtime.Anchor{a})

	violator, err := set.CheckPre("step1", map[string]bool{})
	require.NoError(t, err)
	require.Nil(t, violator)
}

func TestAnchorSetConfidenceFloorIsMostRestrictive(t *testing.T) {
	set := runtime.NewAnchorSet([]*runtime.Anchor{
		{Name: "A", ConfidenceFloor: 0.6},
		{Name: "B", ConfidenceFloor: 0.85},
	})
	require.InDelta(t, 0.85, set.ConfidenceFloor(), 1e-9)
}
