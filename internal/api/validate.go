package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"foodcart/internal/model"
)

// maxPrice is the largest value the NUMERIC(8,2) price columns hold.
var maxPrice = decimal.RequireFromString("999999.99")

func validateProduct(in *model.Product) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return errors.New("name is required")
	}
	if in.Price.IsNegative() {
		return errors.New("price must be >= 0")
	}
	if in.Price.GreaterThan(maxPrice) {
		return fmt.Errorf("price must be <= %s", maxPrice)
	}
	if !in.Price.Equal(in.Price.Round(2)) {
		return errors.New("price has more than 2 decimal places")
	}
	return nil
}

func validateOrderIn(in *model.OrderIn) error {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Address = strings.TrimSpace(in.Address)
	if in.FirstName == "" {
		return errors.New("firstname is required")
	}
	if in.Address == "" {
		return errors.New("address is required")
	}
	phone, err := normalizePhone(in.Phone)
	if err != nil {
		return err
	}
	in.Phone = phone
	if !in.Payment.Valid() {
		return fmt.Errorf("invalid payment: %s", in.Payment)
	}
	if len(in.Products) == 0 {
		return errors.New("products must not be empty")
	}
	for i, l := range in.Products {
		if l.ProductID <= 0 {
			return fmt.Errorf("products[%d]: product is required", i)
		}
		if l.Quantity < 1 {
			return fmt.Errorf("products[%d]: quantity must be >= 1", i)
		}
	}
	return nil
}

// normalizePhone accepts digits with common separators and returns the
// number in +<digits> form. A leading 8 on an 11-digit number is read as the
// Russian trunk prefix.
func normalizePhone(s string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return "", fmt.Errorf("invalid phonenumber: %q", s)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '8' {
		digits = "7" + digits[1:]
	}
	if len(digits) < 10 || len(digits) > 15 {
		return "", fmt.Errorf("invalid phonenumber: %q", s)
	}
	return "+" + digits, nil
}
