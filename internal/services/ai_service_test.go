package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimiradmaev/dosemate/internal/dose"
	apperrors "github.com/vladimiradmaev/dosemate/internal/errors"
)

type fakeModel struct {
	text  string
	err   error
	parts []genai.Part
}

func (m *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	m.parts = parts
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(m.text)}},
		}},
	}, nil
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"code block", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding text", `Here you go: {"a":{"b":2}} hope it helps`, `{"a":{"b":2}}`},
		{"no object", "sorry", ""},
		{"reversed braces", "} {", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}

func TestParseEstimate(t *testing.T) {
	est, err := parseEstimate("```json\n{\"food_items\":[\"гречка\"],\"carbs_per_100g\":20.5,\"weight_g\":180}\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"гречка"}, est.FoodItems)
	assert.Equal(t, 20.5, est.CarbsPer100)
	assert.Equal(t, 180.0, est.Weight)

	_, err = parseEstimate(`{"carbs_per_100g": 140, "weight_g": 100}`)
	assert.Error(t, err)

	_, err = parseEstimate(`{"carbs_per_100g": 10, "weight_g": -5}`)
	assert.Error(t, err)

	_, err = parseEstimate(`{"carbs_per_100g": "ten"}`)
	assert.Error(t, err)
}

func TestFoodEstimate_FoodItem(t *testing.T) {
	item := FoodEstimate{CarbsPer100: 12.5, Weight: 200}.FoodItem()
	assert.Equal(t, dose.FoodItem{CarbsPer100: "12.5", Weight: "200"}, item)
	assert.Equal(t, 25.0, item.Carbs())
}

func TestFoodEstimator_Disabled(t *testing.T) {
	est, err := NewFoodEstimator(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, est.Enabled())
	assert.NoError(t, est.Close())

	_, err = est.Estimate(context.Background(), []byte{0xff}, 0)
	assert.ErrorIs(t, err, apperrors.ErrEstimatorOff)
}

func TestFoodEstimator_Estimate(t *testing.T) {
	model := &fakeModel{text: `{"food_items":["рис"],"carbs_per_100g":28,"weight_g":150}`}
	est := &FoodEstimator{model: model}

	got, err := est.Estimate(context.Background(), []byte{1, 2, 3}, 0)
	require.NoError(t, err)
	assert.Equal(t, 150.0, got.Weight)
	require.Len(t, model.parts, 2)
	assert.Equal(t, genai.ImageData("jpeg", []byte{1, 2, 3}), model.parts[0])

	got, err = est.Estimate(context.Background(), []byte{1}, 220)
	require.NoError(t, err)
	assert.Equal(t, 220.0, got.Weight)
	assert.Contains(t, string(model.parts[1].(genai.Text)), "220 grams")
}

func TestFoodEstimator_APIError(t *testing.T) {
	est := &FoodEstimator{model: &fakeModel{err: errors.New("quota exceeded")}}

	_, err := est.Estimate(context.Background(), []byte{1}, 0)
	assert.ErrorIs(t, err, apperrors.ErrExternalAPI)
	assert.Equal(t, apperrors.ErrorTypeExternal, apperrors.TypeOf(err))
}

func TestFoodEstimator_BadResponse(t *testing.T) {
	est := &FoodEstimator{model: &fakeModel{text: "I cannot see any food"}}

	_, err := est.Estimate(context.Background(), []byte{1}, 0)
	assert.ErrorIs(t, err, apperrors.ErrExternalAPI)
}
