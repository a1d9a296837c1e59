package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/paper-trader/internal/config"
	"github.com/paper-trader/internal/logging"
)

// plausibilityChecker rejects price quotes that are obviously wrong for the
// token, using configured per-symbol reference bands.
type plausibilityChecker struct {
	ranges     map[string]config.PriceRange
	genericCap decimal.Decimal // upper bound for tokens without a band
	highValue  string          // token exempt from the generic upper bound
}

func newPlausibilityChecker(cfg *config.PricingConfig) *plausibilityChecker {
	return &plausibilityChecker{
		ranges:     cfg.Ranges,
		genericCap: cfg.GenericCap,
		highValue:  cfg.HighValue,
	}
}

// isPlausible reports whether a quote is inside the token's reference band.
// Tokens without a band only need to be positive and under the generic cap;
// the designated high-value token skips the cap but still must be positive.
func (p *plausibilityChecker) isPlausible(symbol string, price decimal.Decimal) bool {
	if price.Sign() <= 0 {
		return false
	}

	if band, ok := p.ranges[symbol]; ok {
		if price.LessThan(band.Min) || price.GreaterThan(band.Max) {
			logging.WithFields(map[string]interface{}{
				"token": symbol,
				"price": price.String(),
				"min":   band.Min.String(),
				"max":   band.Max.String(),
			}).Warn("Rejecting price outside reference band")
			return false
		}
		return true
	}

	if symbol == p.highValue {
		return true
	}

	if price.GreaterThan(p.genericCap) {
		logging.WithFields(map[string]interface{}{
			"token": symbol,
			"price": price.String(),
			"cap":   p.genericCap.String(),
		}).Warn("Rejecting price above generic ceiling")
		return false
	}

	return true
}

// typicalPrice returns the configured reference price for a token, if any
func (p *plausibilityChecker) typicalPrice(symbol string) (decimal.Decimal, bool) {
	band, ok := p.ranges[symbol]
	if !ok {
		return decimal.Decimal{}, false
	}
	return band.Typical, true
}
