package services

import (
	"strings"

	"dealscout/models"
)

// InferredFinancials is the inference collaborator's output. Values land in
// the listing's inferred_* columns, never the canonical financial fields.
type InferredFinancials struct {
	EBITDA     *float64
	SDE        *float64
	Method     string
	Confidence float32
}

// FinancialInferrer estimates missing earnings figures from whatever a
// listing does disclose. Nil output means no estimate was possible.
type FinancialInferrer interface {
	InferFinancials(l *models.Listing) *InferredFinancials
}

const (
	// ebitdaFromSDE backs out a manager salary from owner earnings.
	ebitdaFromSDE = 0.85

	cashFlowProxyConfidence  = 0.75
	industryMarginConfidence = 0.40
	defaultSDEMargin         = 0.12
)

// industrySDEMargins holds observed SDE-to-revenue margins for the service
// industries the fund tracks, matched by substring against industry/category.
// First match wins, so more specific keys come first.
var industrySDEMargins = []struct {
	key    string
	margin float64
}{
	{"auto repair", 0.14},
	{"janitorial", 0.12},
	{"hvac", 0.16},
	{"plumbing", 0.17},
	{"electrical", 0.15},
	{"roofing", 0.14},
	{"landscap", 0.13},
	{"pool", 0.22},
	{"pest", 0.20},
	{"cleaning", 0.15},
	{"restoration", 0.15},
}

// MarginInferrer fills earnings gaps in two passes: a disclosed cash-flow
// figure is taken as an SDE proxy; failing that, revenue is haircut by an
// industry margin. Pure computation, no I/O.
type MarginInferrer struct{}

func NewMarginInferrer() *MarginInferrer {
	return &MarginInferrer{}
}

func (m *MarginInferrer) InferFinancials(l *models.Listing) *InferredFinancials {
	if l.CashFlow != nil && *l.CashFlow > 0 {
		sde := *l.CashFlow
		ebitda := sde * ebitdaFromSDE
		return &InferredFinancials{
			EBITDA:     &ebitda,
			SDE:        &sde,
			Method:     models.InferenceCashFlowProxy,
			Confidence: cashFlowProxyConfidence,
		}
	}

	if l.Revenue != nil && *l.Revenue > 0 {
		margin := marginFor(l)
		sde := *l.Revenue * margin
		ebitda := sde * ebitdaFromSDE
		return &InferredFinancials{
			EBITDA:     &ebitda,
			SDE:        &sde,
			Method:     models.InferenceIndustryMargin,
			Confidence: industryMarginConfidence,
		}
	}

	return nil
}

func marginFor(l *models.Listing) float64 {
	haystack := strings.ToLower(l.Industry + " " + l.Category + " " + l.Subcategory + " " + l.Title)
	for _, e := range industrySDEMargins {
		if strings.Contains(haystack, e.key) {
			return e.margin
		}
	}
	return defaultSDEMargin
}
