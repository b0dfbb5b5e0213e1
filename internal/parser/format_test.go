package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Format
		hasError bool
	}{
		{
			name:     "Container with price per kilo",
			input:    "Bandeja 500 g | 3,95/kg",
			expected: Format{Container: "Bandeja 500 g", PriceValue: "3.95", PriceUnit: "kg"},
		},
		{
			name:     "Price with euro sign",
			input:    "Botella 1 L | 1,20 €/L",
			expected: Format{Container: "Botella 1 L", PriceValue: "1.20", PriceUnit: "L"},
		},
		{
			name:     "Integer price",
			input:    "Paquete 6 ud. | 2/ud.",
			expected: Format{Container: "Paquete 6 ud.", PriceValue: "2", PriceUnit: "ud."},
		},
		{
			name:     "No separator",
			input:    "malformed string",
			expected: Format{Container: "malformed string"},
			hasError: true,
		},
		{
			name:     "No slash",
			input:    "Bandeja 500 g | 3,95 kg",
			expected: Format{Container: "Bandeja 500 g | 3,95 kg"},
			hasError: true,
		},
		{
			name:     "Non-numeric price",
			input:    "Bandeja | aprox/kg",
			expected: Format{Container: "Bandeja | aprox/kg"},
			hasError: true,
		},
		{
			name:     "Too many separators",
			input:    "a | b | 1,00/kg",
			expected: Format{Container: "a | b | 1,00/kg"},
			hasError: true,
		},
		{
			name:     "Empty input",
			input:    "",
			expected: Format{},
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			assert.Equal(t, tt.expected, got)

			if tt.hasError {
				var parseErr *ParseError
				require.True(t, errors.As(err, &parseErr), "expected *ParseError, got %v", err)
				assert.Equal(t, tt.input, parseErr.Input)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpscaleImageURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Both tokens",
			input:    "https://prod-mercadona.imgix.net/images/abc.jpg?fit=crop&h=300&w=300",
			expected: "https://prod-mercadona.imgix.net/images/abc.jpg?fit=crop&h=1600&w=1600",
		},
		{
			name:     "Tokens first in query",
			input:    "https://img.test/a.jpg?h=300&fit=crop&w=300",
			expected: "https://img.test/a.jpg?h=1600&fit=crop&w=1600",
		},
		{
			name:     "Missing width",
			input:    "https://img.test/a.jpg?fit=crop&h=300",
			expected: "https://img.test/a.jpg?fit=crop&h=1600",
		},
		{
			name:     "Neither token",
			input:    "https://img.test/a.jpg?fit=crop",
			expected: "https://img.test/a.jpg?fit=crop",
		},
		{
			name:     "Longer numbers are left alone",
			input:    "https://img.test/a.jpg?h=3000&w=300",
			expected: "https://img.test/a.jpg?h=3000&w=1600",
		},
		{
			name:     "Empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, UpscaleImageURL(tt.input, 300, 1600))
		})
	}
}
