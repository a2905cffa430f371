package ledger

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	DefaultCurrencySymbol = "$"
	DefaultMaxHistory     = 50

	fallbackID = "pocket_money_item"
)

// AccountConfig is the setup-time configuration of one account.
type AccountConfig struct {
	ID             string          `json:"account_id" validate:"required,max=64,account_id"`
	Name           string          `json:"name" validate:"max=128"`
	CurrencySymbol string          `json:"currency_symbol" validate:"required,max=8"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	MaxHistory     int             `json:"max_history" validate:"gte=1"`
	CSVLogging     bool            `json:"csv_logging_enabled"`
}

var (
	invalidIDChars = regexp.MustCompile(`[^a-z0-9_]+`)
	accountIDRe    = regexp.MustCompile(`^[a-z0-9_]+$`)
	validate       = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("account_id", func(fl validator.FieldLevel) bool {
		return accountIDRe.MatchString(fl.Field().String())
	})

	return v
}

// SanitizeID turns a display name into a stable account identifier:
// lowercase, runs of anything outside [a-z0-9_] collapsed to one underscore.
func SanitizeID(name string) string {
	s := invalidIDChars.ReplaceAllString(strings.ToLower(name), "_")
	s = strings.Trim(s, "_")

	if s == "" {
		return fallbackID
	}

	return s
}

// ActionName is the per-account external action name that routes to Apply.
func ActionName(accountID string) string {
	return accountID + actionSuffix
}

const actionSuffix = "_add_transaction"

// WithDefaults fills unset fields. A missing ID is derived from Name.
func (c AccountConfig) WithDefaults() AccountConfig {
	if c.ID == "" {
		c.ID = SanitizeID(c.Name)
	}

	if c.Name == "" {
		c.Name = c.ID
	}

	if c.CurrencySymbol == "" {
		c.CurrencySymbol = DefaultCurrencySymbol
	}

	if c.MaxHistory == 0 {
		c.MaxHistory = DefaultMaxHistory
	}

	c.InitialBalance = c.InitialBalance.Round(amountPlaces)

	return c
}

func (c AccountConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrInvalidAccount, fe.Field(), fe.Tag())
		}

		return fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}

	return nil
}
