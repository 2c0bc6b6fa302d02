package product

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"powertrade/internal/model/enum"
)

var ErrUnresolvableSymbol = errors.New("product: symbol does not resolve to a delivery period")

// Kind is the granularity of a product delivery period.
type Kind uint8

const (
	_kind_beg Kind = iota
	KindYear
	KindQuarter
	KindMonth
	_kind_end
)

func (k Kind) IsAvailable() bool {
	return k > _kind_beg && k < _kind_end
}

// Period is the resolved delivery period of a product symbol. It is parsed
// once and passed around instead of re-splitting the symbol string.
type Period struct {
	Profile enum.Profile
	Kind    Kind
	Year    int
	Quarter int
	Month   int
}

// Parse resolves a product symbol into its typed delivery period.
//
// Grammar:
//
//	PROFILE_Y-YY     whole year 2000+YY
//	PROFILE_Q-q-YY   quarter q of year 2000+YY
//	PROFILE_M-MM-YY  single month MM of year 2000+YY
func Parse(symbol string) (Period, error) {
	parts := strings.SplitN(symbol, "_", 2)
	if len(parts) != 2 || parts[0] == "" {
		return Period{}, ErrUnresolvableSymbol
	}

	p := Period{Profile: ProfileOf(symbol)}
	fields := strings.Split(parts[1], "-")

	switch fields[0] {
	case "Y":
		if len(fields) != 2 {
			return Period{}, ErrUnresolvableSymbol
		}
		year, ok := parseYear(fields[1])
		if !ok {
			return Period{}, ErrUnresolvableSymbol
		}
		p.Kind = KindYear
		p.Year = year
	case "Q":
		if len(fields) != 3 {
			return Period{}, ErrUnresolvableSymbol
		}
		quarter, err := strconv.Atoi(fields[1])
		if err != nil || quarter < 1 || quarter > 4 {
			return Period{}, ErrUnresolvableSymbol
		}
		year, ok := parseYear(fields[2])
		if !ok {
			return Period{}, ErrUnresolvableSymbol
		}
		p.Kind = KindQuarter
		p.Year = year
		p.Quarter = quarter
	case "M":
		if len(fields) != 3 {
			return Period{}, ErrUnresolvableSymbol
		}
		month, err := strconv.Atoi(fields[1])
		if err != nil || month < 1 || month > 12 {
			return Period{}, ErrUnresolvableSymbol
		}
		year, ok := parseYear(fields[2])
		if !ok {
			return Period{}, ErrUnresolvableSymbol
		}
		p.Kind = KindMonth
		p.Year = year
		p.Month = month
	default:
		return Period{}, ErrUnresolvableSymbol
	}

	return p, nil
}

// ProfileOf derives the delivery profile from a symbol without requiring
// the period to resolve. Used for lock scoping.
func ProfileOf(symbol string) enum.Profile {
	if strings.Contains(symbol, "PEAK") {
		return enum.ProfilePeak
	}
	return enum.ProfileBase
}

// Months returns the ordered "YYYY-MM" tokens the period covers, nil for
// an unresolved period.
func (p Period) Months() []string {
	switch p.Kind {
	case KindYear:
		months := make([]string, 0, 12)
		for m := 1; m <= 12; m++ {
			months = append(months, monthToken(p.Year, m))
		}
		return months
	case KindQuarter:
		start := (p.Quarter-1)*3 + 1
		months := make([]string, 0, 3)
		for m := start; m < start+3; m++ {
			months = append(months, monthToken(p.Year, m))
		}
		return months
	case KindMonth:
		return []string{monthToken(p.Year, p.Month)}
	default:
		return nil
	}
}

// YearOfMonth extracts the year from a "YYYY-MM" token.
func YearOfMonth(token string) int {
	if len(token) < 4 {
		return 0
	}
	year, err := strconv.Atoi(token[:4])
	if err != nil {
		return 0
	}
	return year
}

func monthToken(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

func parseYear(field string) (int, bool) {
	if len(field) != 2 {
		return 0, false
	}
	yy, err := strconv.Atoi(field)
	if err != nil || yy < 0 {
		return 0, false
	}
	return 2000 + yy, true
}
