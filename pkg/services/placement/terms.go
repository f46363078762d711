package placement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ramsey-B/fern/pkg/apperrors"
)

var hundred = decimal.NewFromInt(100)

// validateFeePercentage enforces 0 <= fee <= 100.
func validateFeePercentage(fee decimal.Decimal) error {
	if fee.IsNegative() || fee.GreaterThan(hundred) {
		return apperrors.Validation("fee_percentage must be between 0 and 100, got %s", fee.String())
	}
	return nil
}

func validateSalary(salary decimal.Decimal) error {
	if salary.IsNegative() {
		return apperrors.Validation("salary must not be negative, got %s", salary.String())
	}
	return nil
}

func validateGuaranteeDays(days int) error {
	if days < 0 {
		return apperrors.Validation("guarantee_days must not be negative, got %d", days)
	}
	return nil
}

// PlacementFee is salary * fee / 100 rounded half away from zero to cents.
func PlacementFee(salary, feePercentage decimal.Decimal) decimal.Decimal {
	return salary.Mul(feePercentage).Div(hundred).Round(2)
}

// StartOfDay truncates t to midnight of its UTC calendar day. Placement start dates
// carry no time of day.
func StartOfDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// GuaranteeExpiresAt is start plus days calendar days.
func GuaranteeExpiresAt(start time.Time, days int) time.Time {
	return start.AddDate(0, 0, days)
}

// pickDecimal prefers an explicit value over the stored one.
func pickDecimal(explicit *decimal.Decimal, stored decimal.Decimal, storedValid bool, field string) (decimal.Decimal, error) {
	if explicit != nil {
		return *explicit, nil
	}
	if storedValid {
		return stored, nil
	}
	return decimal.Zero, apperrors.Validation("%s is required", field)
}
