package catalog

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogShape(t *testing.T) {
	require.Equal(t, 47, Count)
	require.Len(t, All(), Count)
	require.Len(t, SGAComponents(), 34)

	computedCount, summaryCount := 0, 0
	for _, a := range All() {
		if a.IsComputed() {
			computedCount++
		}
		if a.IsSummary() {
			summaryCount++
		}
	}
	assert.Equal(t, 6, computedCount)
	assert.Equal(t, 8, summaryCount)

	assert.Equal(t, []Account{Sales, CostOfSales, Outsourcing, Advertising, Travel, Rent}, SubAccountParents())
}

func TestCatalogOrder(t *testing.T) {
	names := Names()
	assert.Equal(t, "Sales", names[0])
	assert.Equal(t, "Cost of Sales", names[1])
	assert.Equal(t, "Gross Profit", names[2])
	assert.Equal(t, "Officers' Compensation", names[3])
	assert.Equal(t, "Minor Entertainment", names[36])
	assert.Equal(t, "Total SG&A", names[37])
	assert.Equal(t, "Net Income", names[Count-1])

	sga := SGAComponents()
	assert.Equal(t, OfficersCompensation, sga[0])
	assert.Equal(t, MinorEntertainment, sga[len(sga)-1])
}

func TestLookupRoundTrip(t *testing.T) {
	for _, a := range All() {
		got, ok := Lookup(a.Name())
		require.True(t, ok, a.Name())
		assert.Equal(t, a, got)
	}
	_, ok := Lookup("Goodwill")
	assert.False(t, ok)
}

func TestParseUnknown(t *testing.T) {
	_, err := Parse("Goodwill")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownAccount))
	assert.Panics(t, func() { MustLookup("Goodwill") })
	assert.Panics(t, func() { Account(Count).IsComputed() })
	assert.Equal(t, "Account(99)", Account(99).String())
}

func TestAccountJSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		Item Account `json:"item"`
	}{Item: TotalSGA})
	require.NoError(t, err)
	assert.JSONEq(t, `{"item":"Total SG&A"}`, string(raw))

	var decoded struct {
		Item Account `json:"item"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"item":"Rent"}`), &decoded))
	assert.Equal(t, Rent, decoded.Item)
	assert.Error(t, json.Unmarshal([]byte(`{"item":"Goodwill"}`), &decoded))
}
