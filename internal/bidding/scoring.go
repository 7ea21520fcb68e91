package bidding

import (
	"github.com/shopspring/decimal"

	"github.com/mateovidal/surtido-backend/pkg/config"
)

// scorePrecision fixes the stored scale so the same offer always produces
// the same score, byte for byte.
const scorePrecision = 6

var (
	hundred       = decimal.NewFromInt(100)
	one           = decimal.NewFromInt(1)
	priceDivisor  = decimal.NewFromInt(1000)
	reliabilityHi = decimal.NewFromInt(20)
)

// ComputeScore ranks an offer on price, delivery speed and the wholesaler's
// reliability rating (0 to 5). Each component maps into 0..100 and the
// configured weights blend them. Cheaper, faster and more reliable all push
// the score up; the function is strictly monotonic in each input.
func ComputeScore(cfg config.BiddingConfig, priceCents int64, etaHours int, reliability decimal.Decimal) decimal.Decimal {
	priceNorm := decimal.NewFromInt(priceCents).Div(priceDivisor)
	priceComponent := hundred.Div(one.Add(priceNorm))

	etaComponent := hundred.Div(one.Add(decimal.NewFromInt(int64(etaHours))))

	reliabilityComponent := reliabilityHi.Mul(reliability)

	score := weigh(cfg.PriceWeightPct, priceComponent).
		Add(weigh(cfg.EtaWeightPct, etaComponent)).
		Add(weigh(cfg.ReliabilityWeightPct, reliabilityComponent))

	return score.Round(scorePrecision)
}

func weigh(pct int, component decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(pct)).Div(hundred).Mul(component)
}
