package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/vladimiradmaev/dosemate/internal/dose"
	apperrors "github.com/vladimiradmaev/dosemate/internal/errors"
	"github.com/vladimiradmaev/dosemate/internal/logger"
	"google.golang.org/api/option"
)

const geminiModel = "gemini-1.5-flash"

// FoodEstimate is what the model reports for one photo.
type FoodEstimate struct {
	FoodItems   []string `json:"food_items"`
	CarbsPer100 float64  `json:"carbs_per_100g"`
	Weight      float64  `json:"weight_g"`
}

// FoodItem converts the estimate into calculator input.
func (e FoodEstimate) FoodItem() dose.FoodItem {
	return dose.FoodItem{
		CarbsPer100: strconv.FormatFloat(e.CarbsPer100, 'f', -1, 64),
		Weight:      strconv.FormatFloat(e.Weight, 'f', -1, 64),
	}
}

// contentGenerator is the part of the Gemini model the estimator uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// FoodEstimator estimates carbohydrates from a food photo with Gemini.
// A zero FoodEstimator is disabled.
type FoodEstimator struct {
	client *genai.Client
	model  contentGenerator
}

// NewFoodEstimator returns a disabled estimator when apiKey is empty.
func NewFoodEstimator(ctx context.Context, apiKey string) (*FoodEstimator, error) {
	if apiKey == "" {
		logger.Info("Gemini API key not set, food photo estimation disabled")
		return &FoodEstimator{}, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := client.GenerativeModel(geminiModel)
	model.SetTemperature(0.2)

	return &FoodEstimator{client: client, model: model}, nil
}

func (s *FoodEstimator) Enabled() bool {
	return s != nil && s.model != nil
}

func (s *FoodEstimator) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

const estimatePrompt = `You are a certified diabetes educator specializing in nutrition analysis.
Estimate the carbohydrate content of the food in the image for insulin dosing.

TASK:
1. Identify the food items in the image
2. Estimate the average carbohydrates per 100 grams of the whole portion
3. Estimate the weight of the portion in grams
%s
REQUIREMENTS:
- Include hidden ingredients that contain carbs (sauces, breading, sugar)
- If the image contains nutritional information or packaging, prioritize that data
- Food names should be in Russian

CRITICAL JSON FORMAT REQUIREMENTS:
- Your response MUST be a single valid JSON object and nothing else
- The JSON must have these exact fields:
  {
    "food_items": ["item1", "item2"],
    "carbs_per_100g": 12.5,
    "weight_g": 250
  }`

// Estimate analyses a JPEG photo. A positive weight overrides the model's
// own weight estimate.
func (s *FoodEstimator) Estimate(ctx context.Context, image []byte, weight float64) (*FoodEstimate, error) {
	if !s.Enabled() {
		return nil, apperrors.ErrEstimatorOff
	}

	hint := ""
	if weight > 0 {
		hint = fmt.Sprintf("\nThe user has weighed the portion: %.0f grams. Use this weight.\n", weight)
	}

	resp, err := s.model.GenerateContent(ctx, genai.ImageData("jpeg", image), genai.Text(fmt.Sprintf(estimatePrompt, hint)))
	if err != nil {
		return nil, apperrors.NewExternalAPIError(err, "gemini")
	}

	estimate, err := parseEstimate(responseText(resp))
	if err != nil {
		return nil, apperrors.NewExternalAPIError(err, "gemini")
	}
	if weight > 0 {
		estimate.Weight = weight
	}

	logger.Info("Food estimated",
		"items", strings.Join(estimate.FoodItems, ", "),
		"carbs_per_100g", estimate.CarbsPer100,
		"weight_g", estimate.Weight,
	)
	return estimate, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break
	}
	return sb.String()
}

func parseEstimate(text string) (*FoodEstimate, error) {
	jsonStr := extractJSON(text)
	if jsonStr == "" {
		return nil, fmt.Errorf("no valid JSON found in response")
	}

	var estimate FoodEstimate
	if err := json.Unmarshal([]byte(jsonStr), &estimate); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if invalidAmount(estimate.CarbsPer100) || estimate.CarbsPer100 > 100 {
		return nil, fmt.Errorf("carbs per 100g out of range: %v", estimate.CarbsPer100)
	}
	if invalidAmount(estimate.Weight) {
		return nil, fmt.Errorf("weight out of range: %v", estimate.Weight)
	}
	return &estimate, nil
}

func invalidAmount(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v < 0
}

// extractJSON attempts to extract a valid JSON object from the given string.
// It handles cases where the JSON is wrapped in code blocks (```json ... ```) or other text.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}
