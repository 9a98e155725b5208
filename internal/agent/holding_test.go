package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHoldingStatus(t *testing.T) {
	tests := []struct {
		purchase, sell string
		want           string
	}{
		{"2022-01-01", "2023-01-01", ShortTerm},
		{"2022-01-01", "2023-01-02", LongTerm},
		{"2022-01-01", "2022-06-30", ShortTerm},
		{"2020-02-29", "2021-02-28", ShortTerm},
		{"2020-02-29", "2021-03-01", LongTerm},
		{"2023-06-15", "2020-01-01", ShortTerm},
		{"2022-01-01", "", UnknownTerm},
		{"", "2023-01-01", UnknownTerm},
		{"01/01/2022", "2023-01-02", UnknownTerm},
		{"2022-13-01", "2023-01-02", UnknownTerm},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HoldingStatus(tt.purchase, tt.sell), "%s -> %s", tt.purchase, tt.sell)
	}
}
