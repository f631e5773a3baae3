package handlers

import (
	"fmt"
	"math"
	"strings"

	"github.com/vladimiradmaev/dosemate/internal/dose"
)

// maxFoodWeight is the heaviest single item accepted, in grams.
const maxFoodWeight = 5000

// parseFoodLines reads one "<carbs per 100 g> <weight g>" pair per line.
func parseFoodLines(text string) ([]dose.FoodItem, error) {
	var items []dose.FoodItem
	for i, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("строка %d: нужно два числа, углеводы на 100 г и вес", i+1)
		}
		carbs, ok := dose.ParseDecimal(fields[0])
		if !ok || carbs < 0 || carbs > 100 {
			return nil, fmt.Errorf("строка %d: углеводы на 100 г должны быть числом от 0 до 100", i+1)
		}
		weight, ok := dose.ParseDecimal(fields[1])
		if !ok || weight <= 0 {
			return nil, fmt.Errorf("строка %d: вес должен быть положительным числом", i+1)
		}
		if weight > maxFoodWeight {
			return nil, fmt.Errorf("строка %d: вес не может быть больше %d г", i+1, maxFoodWeight)
		}
		items = append(items, dose.FoodItem{CarbsPer100: fields[0], Weight: fields[1]})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("не найдено ни одной строки с продуктом")
	}
	return items, nil
}

func parseBound(s string) (float64, bool) {
	switch strings.ToLower(s) {
	case "-inf", "-∞":
		return math.Inf(-1), true
	case "inf", "+inf", "∞", "+∞":
		return math.Inf(1), true
	}
	return dose.ParseDecimal(s)
}

// parseTableLines reads "min max morning noon evening extra" per line.
func parseTableLines(text string) (dose.Table, error) {
	var table dose.Table
	for i, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 6 {
			return nil, fmt.Errorf("строка %d: нужно 6 значений: мин макс утро день вечер доп", i+1)
		}
		lo, ok := parseBound(fields[0])
		if !ok {
			return nil, fmt.Errorf("строка %d: неверная нижняя граница %q", i+1, fields[0])
		}
		hi, ok := parseBound(fields[1])
		if !ok {
			return nil, fmt.Errorf("строка %d: неверная верхняя граница %q", i+1, fields[1])
		}

		r := dose.Range{Min: lo, Max: hi, Doses: make(map[dose.Moment]float64, len(dose.Moments))}
		for j, m := range dose.Moments {
			v, ok := dose.ParseDecimal(fields[2+j])
			if !ok {
				return nil, fmt.Errorf("строка %d: неверная доза %q", i+1, fields[2+j])
			}
			r.Doses[m] = v
		}
		table = append(table, r)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("таблица пуста")
	}
	return table, nil
}
