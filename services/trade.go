package services

import (
	"regexp"

	"dealscout/models"
)

// Trade identifiers persisted on listings.
const (
	TradeHVAC        = "hvac"
	TradePlumbing    = "plumbing"
	TradeElectrical  = "electrical"
	TradeRoofing     = "roofing"
	TradeLandscaping = "landscaping"
	TradePoolService = "pool_service"
	TradePestControl = "pest_control"
	TradeCleaning    = "cleaning"
	TradeAutoRepair  = "auto_repair"
	TradeRestoration = "restoration"
)

// tradePatterns is the fixed taxonomy. Order matters: earlier trades win when
// a listing mentions several (an HVAC company that "also does some plumbing"
// classifies as hvac).
var tradePatterns = []struct {
	trade string
	re    *regexp.Regexp
}{
	{TradeHVAC, regexp.MustCompile(`(?i)\b(hvac|heating|air conditioning|a/c|furnace|mechanical contractor)\b`)},
	{TradePlumbing, regexp.MustCompile(`(?i)\b(plumbing|plumber|drain|sewer|water heater)\b`)},
	{TradeElectrical, regexp.MustCompile(`(?i)\b(electrical|electrician|electric contractor)\b`)},
	{TradeRoofing, regexp.MustCompile(`(?i)\b(roofing|roofer|roof repair|roof replacement)\b`)},
	{TradeLandscaping, regexp.MustCompile(`(?i)\b(landscap\w*|lawn care|lawn maintenance|irrigation|tree service)\b`)},
	{TradePoolService, regexp.MustCompile(`(?i)\b(pool (service|route|cleaning|maintenance)|pool company)\b`)},
	{TradePestControl, regexp.MustCompile(`(?i)\b(pest control|exterminat\w*|termite)\b`)},
	{TradeCleaning, regexp.MustCompile(`(?i)\b(janitorial|commercial cleaning|maid service|carpet cleaning|window cleaning)\b`)},
	{TradeAutoRepair, regexp.MustCompile(`(?i)\b(auto repair|automotive repair|collision|body shop|transmission)\b`)},
	{TradeRestoration, regexp.MustCompile(`(?i)\b(restoration|water damage|fire damage|mold remediation)\b`)},
}

// DetectTrade classifies a listing against the trade taxonomy by matching the
// title, industry, category and description, in that order of authority.
// Returns "" when nothing matches.
func DetectTrade(l *models.Listing) string {
	fields := []string{l.Title, l.Industry, l.Category, l.Subcategory, l.Description}
	for _, f := range fields {
		if f == "" {
			continue
		}
		for _, p := range tradePatterns {
			if p.re.MatchString(f) {
				return p.trade
			}
		}
	}
	return ""
}
