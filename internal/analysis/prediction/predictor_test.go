package prediction

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/Alias1177/SubForecast/internal/analyze"
	"github.com/Alias1177/SubForecast/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine(t *testing.T) {
	a, b, c := models.Method("a"), models.Method("b"), models.Method("c")
	priors := map[models.Method]float64{a: 0.15, b: 0.15, c: 0.70}

	tests := []struct {
		name      string
		estimates []Estimate
		want      float64
	}{
		{
			name: "NaN method drops out",
			estimates: []Estimate{
				{Method: a, Value: 10},
				{Method: b, Value: math.NaN()},
				{Method: c, Value: 30},
			},
			want: (10*0.15 + 30*0.70) / (0.15 + 0.70),
		},
		{
			name: "only the primary signal",
			estimates: []Estimate{
				{Method: a, Value: 0},
				{Method: b, Value: math.Inf(1)},
				{Method: c, Value: 12},
			},
			want: 12,
		},
		{
			name: "all valid",
			estimates: []Estimate{
				{Method: a, Value: 10},
				{Method: b, Value: 20},
				{Method: c, Value: 30},
			},
			want: 10*0.15 + 20*0.15 + 30*0.70,
		},
		{
			name: "nothing valid",
			estimates: []Estimate{
				{Method: a, Value: -1},
				{Method: c, Value: math.NaN()},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Combine(tt.estimates, priors), 1e-9)
		})
	}

	assert.InDelta(t, 26.47, Combine(tests[0].estimates, priors), 0.005)
}

func TestEstimators(t *testing.T) {
	assert.InDelta(t, 3.0, ByRegistrations(2, 0.05).Value, 1e-9)
	assert.InDelta(t, 8.0, ByActiveUsers(20, 0.1).Value, 1e-9)
	assert.Equal(t, 12.5, ByHistoric(models.TrendAnalysis{MonthlySales: 12.5}).Value)
	assert.False(t, ByActiveUsers(0, 0).Valid())
}

func TestProject(t *testing.T) {
	conv := analyze.Result{GlobalRate: 0.05, WeeklyRate: 0, DailyRegRate: 2}
	conv.Activity.WeeklyActiveFree = 40
	trend := models.TrendAnalysis{MonthlySales: 10}

	p := Project(conv, trend, models.DefaultTunables().Priors)
	require.Len(t, p.Methods, 3)

	assert.Equal(t, models.MethodByRegistrations, p.Methods[0].Method)
	assert.True(t, p.Methods[0].Valid)
	assert.Equal(t, 3.0, p.Methods[0].Monthly)

	assert.False(t, p.Methods[1].Valid)
	assert.Equal(t, 0.0, p.Methods[1].Monthly)

	// (3*0.15 + 10*0.70) / 0.85
	assert.Equal(t, 8.76, p.Combined)
}

func TestCreatePredictionRecords(t *testing.T) {
	now := time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC)
	p := models.ProjectionMethods{
		Combined: 8.76,
		Methods: []models.MethodProjection{
			{Method: models.MethodByRegistrations, Monthly: 3, Prior: 0.15, Inputs: map[string]float64{"days": 30}},
			{Method: models.MethodByActiveUsers, Monthly: 0, Prior: 0.15},
			{Method: models.MethodByHistoric, Monthly: 10, Prior: 0.70},
		},
	}

	records := CreatePredictionRecords(p, 10, now)
	require.Len(t, records, 4)

	combined := records[3]
	assert.Equal(t, models.MethodCombined, combined.MethodName)
	assert.Equal(t, 87.6, combined.PredictedRevenuePerMonth)
	assert.Equal(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), combined.PredictionDate)
	assert.False(t, combined.Verified)
	assert.Nil(t, combined.ActualSales)

	var priors map[string]float64
	require.NoError(t, json.Unmarshal([]byte(combined.InputsSnapshot), &priors))
	assert.Equal(t, 0.70, priors[string(models.MethodByHistoric)])

	ids := map[string]bool{}
	for _, r := range records {
		assert.NotEmpty(t, r.ID)
		ids[r.ID] = true
	}
	assert.Len(t, ids, 4)
}
