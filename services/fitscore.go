package services

import (
	"time"

	"dealscout/models"
)

// Acquisition box: earnings band and price multiple the fund underwrites to.
const (
	fitSweetSpotMinSDE = 200_000
	fitSweetSpotMaxSDE = 1_000_000
	fitMaxSDEMultiple  = 3.5
	fitHighSDEMultiple = 5.0
)

// ComputeFitScore scores a listing 0-100 against the acquisition criteria and
// assigns a tier. The score rewards disclosed financials in the target band,
// a sane asking multiple, operating history and seller financing. Listings
// with no earnings signal at all score poorly by construction.
func ComputeFitScore(l *models.Listing) (*int, string) {
	score := 50

	earnings := l.SDE
	if earnings == nil {
		earnings = l.CashFlow
	}
	if earnings == nil {
		earnings = l.InferredSDE
	}

	if earnings != nil {
		score += 10
		switch {
		case *earnings >= fitSweetSpotMinSDE && *earnings <= fitSweetSpotMaxSDE:
			score += 15
		case *earnings > fitSweetSpotMaxSDE:
			score += 5
		}
	} else {
		score -= 15
	}

	if l.Revenue != nil {
		score += 5
	}

	if l.AskingPrice != nil {
		score += 5
		if earnings != nil && *earnings > 0 {
			multiple := *l.AskingPrice / *earnings
			switch {
			case multiple <= fitMaxSDEMultiple:
				score += 10
			case multiple > fitHighSDEMultiple:
				score -= 10
			}
		}
	}

	if l.EstablishedYear != nil {
		age := time.Now().Year() - *l.EstablishedYear
		switch {
		case age >= 10:
			score += 10
		case age >= 5:
			score += 5
		}
	}

	if l.Employees != nil && *l.Employees >= 5 && *l.Employees <= 50 {
		score += 5
	}

	if l.SellerFinancing != nil && *l.SellerFinancing {
		score += 5
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return &score, tierFor(score)
}

func tierFor(score int) string {
	switch {
	case score >= 80:
		return models.FitTierA
	case score >= 60:
		return models.FitTierB
	case score >= 40:
		return models.FitTierC
	default:
		return models.FitTierD
	}
}
