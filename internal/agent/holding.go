package agent

import (
	"time"

	"go.uber.org/zap"
)

// Holding period classifications.
const (
	LongTerm    = "LONG-TERM"
	ShortTerm   = "SHORT-TERM"
	UnknownTerm = "UNKNOWN"
)

const dateLayout = "2006-01-02"

// HoldingStatus classifies a sale as long-term when it happens strictly
// after the first anniversary of the purchase. A Feb 29 purchase has its
// anniversary on Feb 28. Unparseable dates give UnknownTerm.
func HoldingStatus(purchase, sell string) string {
	p, err := time.Parse(dateLayout, purchase)
	if err != nil {
		zap.L().Warn("holding period: bad purchase date", zap.String("date", purchase), zap.Error(err))
		return UnknownTerm
	}
	s, err := time.Parse(dateLayout, sell)
	if err != nil {
		zap.L().Warn("holding period: bad sell date", zap.String("date", sell), zap.Error(err))
		return UnknownTerm
	}
	if s.After(anniversary(p)) {
		return LongTerm
	}
	return ShortTerm
}

func anniversary(p time.Time) time.Time {
	if p.Month() == time.February && p.Day() == 29 {
		return time.Date(p.Year()+1, time.February, 28, 0, 0, 0, 0, time.UTC)
	}
	return p.AddDate(1, 0, 0)
}
