// Package fx converts currency-denominated values into a requested target
// currency. Rates come from the pricing tier itself: each currency pair is a
// security of type FX whose ticker is the currency followed by USD, and its
// close price is the USD rate. Cross rates between two non-USD currencies are
// derived through USD.
//
// Conversion runs after revision resolution and override merging, so an
// overridden value converts like any other.
package fx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/quantfold/finstore/internal/model"
	"github.com/quantfold/finstore/internal/store"
)

// Error is an FX failure.
type Error struct {
	Code     ErrorCode
	Message  string
	Currency string
}

// ErrorCode categorizes FX errors.
type ErrorCode string

const (
	// ErrCodeBadCurrency indicates a currency code outside ISO 4217.
	ErrCodeBadCurrency ErrorCode = "BAD_CURRENCY"

	// ErrCodeMissingRate indicates no rate row exists for a pair on the
	// requested date.
	ErrCodeMissingRate ErrorCode = "MISSING_RATE"
)

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (currency=%s)", e.Code, e.Message, e.Currency)
}

// IsMissingRate reports whether err is a missing-rate condition.
func IsMissingRate(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Code == ErrCodeMissingRate
}

// Converter resolves cross rates and applies them to observations.
type Converter struct {
	store  *store.Store
	logger *slog.Logger
}

// New builds a Converter over the given store.
func New(s *store.Store, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{store: s, logger: logger}
}

// ValidateCurrency rejects codes outside ISO 4217.
func ValidateCurrency(code string) error {
	if _, err := currency.ParseISO(code); err != nil {
		return &Error{
			Code:     ErrCodeBadCurrency,
			Message:  "not an ISO 4217 currency code",
			Currency: code,
		}
	}
	return nil
}

// usdRate reads the USD rate for one currency on dt from the pricing tier.
func (c *Converter) usdRate(ctx context.Context, ccy string, dt model.Date) (decimal.Decimal, error) {
	var rate float64
	err := c.store.QueryRow(ctx, `
		SELECT p.PxClose
		FROM Pricing p
		JOIN SecurityMaster sm ON sm.Id = p.SecurityId
		WHERE sm.SecurityType = 'FX' AND sm.Ticker = ? AND p.ValueDate = ?
	`, ccy+"USD", dt.String()).Scan(&rate)
	if err != nil {
		return decimal.Zero, &Error{
			Code:     ErrCodeMissingRate,
			Message:  fmt.Sprintf("no USD rate on %s", dt),
			Currency: ccy,
		}
	}
	return decimal.NewFromFloat(rate), nil
}

// CrossRate returns the rate converting values denominated in from into to,
// on dt. Same-currency pairs are exactly one; USD legs skip the derivation.
func (c *Converter) CrossRate(ctx context.Context, from, to string, dt model.Date) (decimal.Decimal, error) {
	if err := ValidateCurrency(from); err != nil {
		return decimal.Zero, err
	}
	if err := ValidateCurrency(to); err != nil {
		return decimal.Zero, err
	}
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	fromUSD, err := c.usdRate(ctx, from, dt)
	if err != nil {
		return decimal.Zero, err
	}
	if to == "USD" {
		return fromUSD, nil
	}
	toUSD, err := c.usdRate(ctx, to, dt)
	if err != nil {
		return decimal.Zero, err
	}
	if toUSD.IsZero() {
		return decimal.Zero, &Error{
			Code:     ErrCodeMissingRate,
			Message:  fmt.Sprintf("zero USD rate on %s", dt),
			Currency: to,
		}
	}
	return fromUSD.Div(toUSD), nil
}

// Convert applies a cross rate to one value under the field's FX mode.
// Money values divide by the rate; return values compose through it.
// Non-double values and FX-neutral fields pass through untouched.
func Convert(v model.Value, mode model.FxMode, rate decimal.Decimal) model.Value {
	d, ok := v.(model.VDouble)
	if !ok {
		return v
	}
	val := decimal.NewFromFloat(float64(d))
	one := decimal.NewFromInt(1)

	switch mode {
	case model.FxMoney:
		if rate.IsZero() {
			return v
		}
		converted, _ := val.Div(rate).Float64()
		return model.VDouble(converted)
	case model.FxReturn:
		denom := rate.Add(one)
		if denom.IsZero() {
			return v
		}
		converted, _ := val.Add(one).Div(denom).Sub(one).Float64()
		return model.VDouble(converted)
	default:
		return v
	}
}

// ConvertSeries returns a converted copy of a resolved series: each
// observation is converted at its own valid date using the security's
// denomination currency. Dates with no rate row leave the value in its
// original currency, matching upstream vendor behavior; the gap is logged.
func (c *Converter) ConvertSeries(ctx context.Context, obs []model.Observation, secCurrency, target string, mode model.FxMode) ([]model.Observation, error) {
	if mode == model.FxNone || secCurrency == target || len(obs) == 0 {
		return obs, nil
	}
	if err := ValidateCurrency(target); err != nil {
		return nil, err
	}

	out := make([]model.Observation, len(obs))
	copy(out, obs)

	// Rates vary by date; cache per distinct valid date.
	rates := make(map[string]decimal.Decimal)
	for i := range out {
		key := out[i].ValidDate.String()
		rate, ok := rates[key]
		if !ok {
			var err error
			rate, err = c.CrossRate(ctx, secCurrency, target, out[i].ValidDate)
			if IsMissingRate(err) {
				c.logger.Warn("no fx rate, value left unconverted",
					"currency", secCurrency,
					"target", target,
					"valid_date", out[i].ValidDate,
				)
				rates[key] = decimal.Zero
				continue
			}
			if err != nil {
				return nil, err
			}
			rates[key] = rate
		}
		if rate.IsZero() {
			continue
		}
		out[i].Value = Convert(out[i].Value, mode, rate)
	}
	return out, nil
}
