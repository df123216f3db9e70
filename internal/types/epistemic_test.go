package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axon/internal/types"
)

func TestCompatibleSameEpistemicKind(t *testing.T) {
	assert.True(t, types.Compatible(types.TFactualClaim, types.TFactualClaim))
}

func TestOpinionRejectedAsFactualClaim(t *testing.T) {
	assert.False(t, types.Compatible(types.TOpinion, types.TFactualClaim))
}

func TestUncertaintyFlowsIntoOpinion(t *testing.T) {
	assert.True(t, types.Compatible(types.TUncertainty, types.TOpinion))
}

func TestFactualClaimDoesNotFlowIntoOpinion(t *testing.T) {
	// Compatibility is directional and asymmetric; a FactualClaim is not
	// automatically an acceptable Opinion substitute.
	assert.False(t, types.Compatible(types.TFactualClaim, types.TOpinion))
}

func TestSpeculationRejectedAsFactualClaimOrCitedFact(t *testing.T) {
	assert.False(t, types.Compatible(types.TSpeculation, types.TFactualClaim))
	assert.False(t, types.Compatible(types.TSpeculation, types.TCitedFact))
}

func TestOpinionRejectedAsCitedFact(t *testing.T) {
	assert.False(t, types.Compatible(types.TOpinion, types.TCitedFact))
}

func TestCitedFactSubstitutesForFactualClaim(t *testing.T) {
	assert.True(t, types.Compatible(types.TCitedFact, types.TFactualClaim))
}

func TestFactualClaimSubstitutesForString(t *testing.T) {
	assert.True(t, types.Compatible(types.TFactualClaim, types.String))
}

func TestScoreEpistemicsSubstituteForFloat(t *testing.T) {
	assert.True(t, types.Compatible(types.TRiskScore, types.Float))
	assert.True(t, types.Compatible(types.TConfidenceScore, types.Float))
	assert.True(t, types.Compatible(types.TSentimentScore, types.Float))
}

func TestFloatDoesNotSubstituteForScoreEpistemics(t *testing.T) {
	assert.False(t, types.Compatible(types.Float, types.TRiskScore))
	assert.False(t, types.Compatible(types.Float, types.TConfidenceScore))
}

func TestFloatLiteralTypeSubstitutesForRefinedNominal(t *testing.T) {
	confidence := &types.SemanticType{Name: "Confidence", Kind: types.KindNominal, Range: &types.Range{Lo: 0, Hi: 1}}
	assert.True(t, types.Compatible(types.Float, confidence))
	assert.True(t, types.Compatible(types.Int, confidence))
	assert.False(t, types.Compatible(types.String, confidence))
}

func TestUncertaintyAssignableToAnySlot(t *testing.T) {
	assert.True(t, types.Compatible(types.TUncertainty, types.TFactualClaim))
	assert.True(t, types.Compatible(types.TUncertainty, types.String))
	assert.True(t, types.Compatible(types.TUncertainty, types.List(types.TFactualClaim)))
}

func TestNominalTypesRequireExactName(t *testing.T) {
	a := &types.SemanticType{Name: "Claim", Kind: types.KindNominal}
	b := &types.SemanticType{Name: "Claim", Kind: types.KindNominal}
	c := &types.SemanticType{Name: "OtherClaim", Kind: types.KindNominal}
	assert.True(t, types.Compatible(a, b))
	assert.False(t, types.Compatible(a, c))
}

func TestListCompatibilityRequiresElementCompatibility(t *testing.T) {
	listFC := types.List(types.TFactualClaim)
	listOp := types.List(types.TOpinion)
	assert.True(t, types.Compatible(listFC, listFC))
	assert.False(t, types.Compatible(listOp, listFC))
}

func TestRangeContains(t *testing.T) {
	r := &types.Range{Lo: 0, Hi: 1}
	assert.True(t, r.Contains(0))
	assert.True(t, r.Contains(1))
	assert.False(t, r.Contains(1.01))
}

func TestPromoteUncertainListElemWidensNonUncertainEpistemic(t *testing.T) {
	widened := types.PromoteUncertainListElem(types.TFactualClaim)
	assert.Equal(t, types.Uncertainty, widened.Epistemic)
}

func TestPromoteUncertainListElemIsIdempotent(t *testing.T) {
	widened := types.PromoteUncertainListElem(types.TUncertainty)
	assert.Same(t, types.TUncertainty, widened)
}

func TestAdmitPredicateAcceptsStructuralComparison(t *testing.T) {
	require.NoError(t, types.AdmitPredicate("value >= 0 && value <= 1"))
}

func TestAdmitPredicateAcceptsMembership(t *testing.T) {
	require.NoError(t, types.AdmitPredicate(`status in ["active", "done"]`))
}

func TestAdmitPredicateRejectsCall(t *testing.T) {
	err := types.AdmitPredicate(`len(value) > 0`)
	require.Error(t, err)
	var ipe *types.InvalidPredicateError
	require.ErrorAs(t, err, &ipe)
}

func TestAdmitPredicateRejectsMemberAccess(t *testing.T) {
	err := types.AdmitPredicate(`value.Confidence > 0.5`)
	require.Error(t, err)
}
