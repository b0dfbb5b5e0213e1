package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Format is the decomposed "container | price/unit" label.
type Format struct {
	Container  string
	PriceValue string
	PriceUnit  string
}

// ParseError describes a format label that did not have the expected shape.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("error parsing the format %q: %s", e.Input, e.Reason)
}

// ParseFormat splits "Bandeja 500 g | 3,95 €/kg" into container, price and
// unit. On failure it still returns a usable Format holding the raw input as
// container, along with a *ParseError.
func ParseFormat(s string) (Format, error) {
	fallback := Format{Container: s}

	segments := strings.Split(s, "|")
	if len(segments) != 2 {
		return fallback, &ParseError{Input: s, Reason: "expected one '|' separator"}
	}

	priceParts := strings.Split(segments[1], "/")
	if len(priceParts) != 2 {
		return fallback, &ParseError{Input: s, Reason: "expected one '/' between price and unit"}
	}

	price := strings.TrimSpace(priceParts[0])
	price = strings.TrimSpace(strings.TrimSuffix(price, "€"))
	price = strings.ReplaceAll(price, ",", ".")
	if _, err := strconv.ParseFloat(price, 64); err != nil {
		return fallback, &ParseError{Input: s, Reason: fmt.Sprintf("price %q is not numeric", price)}
	}

	unit := strings.TrimSpace(priceParts[1])
	if unit == "" {
		return fallback, &ParseError{Input: s, Reason: "missing price unit"}
	}

	return Format{
		Container:  strings.TrimSpace(segments[0]),
		PriceValue: price,
		PriceUnit:  unit,
	}, nil
}
