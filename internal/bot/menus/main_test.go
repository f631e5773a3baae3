package menus

import (
	"math"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimiradmaev/dosemate/internal/domain"
	"github.com/vladimiradmaev/dosemate/internal/dose"
)

func ptr(v float64) *float64 { return &v }

type recordingSender struct {
	sent []tgbotapi.Chattable
}

func (s *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.sent = append(s.sent, c)
	return tgbotapi.Message{MessageID: len(s.sent)}, nil
}

func TestNum(t *testing.T) {
	assert.Equal(t, "5", Num(5))
	assert.Equal(t, "4.3", Num(4.333333))
	assert.Equal(t, "0", Num(0))
	assert.Equal(t, "22.5", Num(22.5))
}

func TestFormatResult(t *testing.T) {
	res := dose.Compute(dose.Input{
		Glycemia:  "180",
		FoodItems: []dose.FoodItem{{CarbsPer100: "50", Weight: "100"}},
		CarbRatio: 10,
		Table:     dose.DefaultTable(),
		Now:       time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	})

	text := FormatResult(res)
	assert.Contains(t, text, "Время: утро")
	assert.Contains(t, text, "Гликемия: 180 мг/дл")
	assert.Contains(t, text, "Доза по таблице: 10 ед")
	assert.Contains(t, text, "Углеводы: 50 г, на еду: 5 ед")
	assert.Contains(t, text, "*Ввести: 15 ед*")
	assert.NotContains(t, text, "Гипогликемия")
	assert.NotContains(t, text, "лимита")
}

func TestFormatResult_Alerts(t *testing.T) {
	res := dose.Compute(dose.Input{
		Glycemia:  "55",
		FoodItems: []dose.FoodItem{{CarbsPer100: "100", Weight: "300"}},
		CarbRatio: 10,
		Table:     dose.DefaultTable(),
		Now:       time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	})
	require.True(t, res.Hypo)
	require.True(t, res.AlertMax)

	text := FormatResult(res)
	assert.Contains(t, text, "Гипогликемия!")
	assert.Contains(t, text, "Рассчитанная доза 25 ед больше лимита 22 ед, к введению ограничено 22 ед.")
}

func TestFormatResult_NoGlycemia(t *testing.T) {
	res := dose.Compute(dose.Input{Glycemia: "abc", Table: dose.DefaultTable(), ForceExtra: true})

	text := FormatResult(res)
	assert.Contains(t, text, "Гликемия: не указана")
	assert.Contains(t, text, "доп. введение")
	assert.NotContains(t, text, "Доза по таблице")
	assert.NotContains(t, text, "Углеводы")
	assert.Contains(t, text, "*Ввести: 0 ед*")
}

func TestFormatHistory(t *testing.T) {
	assert.Equal(t, "📋 История пуста.", FormatHistory(nil))

	entries := []domain.HistoryEntry{
		{ID: "b", Display: "03/06/2024 12:00", TotalAdministered: 7, Moment: dose.MomentNoon, Glycemia: ptr(120), Meal: ptr(2)},
		{ID: "a", Display: "03/06/2024 08:00", TotalAdministered: 9, Moment: dose.MomentMorning},
	}
	text := FormatHistory(entries)
	assert.Contains(t, text, "*История* (2)")
	assert.Contains(t, text, "• 03/06/2024 12:00 · *7 ед* (день, гликемия 120, на еду 2)")
	assert.Contains(t, text, "• 03/06/2024 08:00 · *9 ед* (утро)")
	assert.Less(t, strings.Index(text, "12:00"), strings.Index(text, "08:00"))
}

func TestFormatHistory_Truncates(t *testing.T) {
	entries := make([]domain.HistoryEntry, HistoryLimit+3)
	for i := range entries {
		entries[i] = domain.HistoryEntry{ID: string(rune('a' + i)), Display: "x", Moment: dose.MomentExtra}
	}
	text := FormatHistory(entries)
	assert.Equal(t, HistoryLimit, strings.Count(text, "• "))
	assert.Contains(t, text, "… и еще 3")
}

func TestFormatTable(t *testing.T) {
	text := FormatTable(dose.DefaultTable(), false)
	assert.Contains(t, text, "Стандартная таблица")
	assert.Contains(t, text, "-∞..69")
	assert.Contains(t, text, "69..100")
	assert.Contains(t, text, "350..+∞")
	lines := strings.Split(strings.Trim(text, "`\n"), "\n")
	assert.Len(t, lines, 1+2+8)
}

func TestFormatIssues(t *testing.T) {
	assert.Empty(t, FormatIssues(nil))

	table := dose.Table{
		{Min: math.Inf(-1), Max: 100, Doses: map[dose.Moment]float64{}},
		{Min: 90, Max: 150, Doses: map[dose.Moment]float64{}},
		{Min: 200, Max: math.Inf(1), Doses: map[dose.Moment]float64{}},
	}
	text := FormatIssues(table.Diagnose())
	assert.Contains(t, text, "строки 1 и 2 пересекаются")
	assert.Contains(t, text, "между строками 2 и 3 есть пропуск")
}

func TestFormatFoodItems(t *testing.T) {
	assert.Equal(t, "Продукты пока не добавлены.", FormatFoodItems(nil))

	text := FormatFoodItems([]dose.FoodItem{
		{CarbsPer100: "50", Weight: "100"},
		{CarbsPer100: "12,5", Weight: "200"},
	})
	assert.Contains(t, text, "1. 50 г/100г × 100 г = 50 г")
	assert.Contains(t, text, "2. 12,5 г/100г × 200 г = 25 г")
	assert.Contains(t, text, "Всего углеводов: 75 г")
}

func TestFormatSettings(t *testing.T) {
	text := FormatSettings(domain.DoseSettings{CarbRatio: 12})
	assert.Contains(t, text, "12 г на 1 ед")
	assert.Contains(t, text, "стандартная")

	text = FormatSettings(domain.DoseSettings{CarbRatio: 10, UseCustomTable: true, CustomTable: dose.DefaultTable()})
	assert.Contains(t, text, "своя (8 строк)")

	text = FormatSettings(domain.DoseSettings{CarbRatio: 10, UseCustomTable: true})
	assert.Contains(t, text, "своя не задана")
}

func TestSendHistory(t *testing.T) {
	s := &recordingSender{}
	entries := []domain.HistoryEntry{{ID: "e1", Display: "d", TotalAdministered: 3}}
	require.NoError(t, SendHistory(s, 77, entries))
	require.Len(t, s.sent, 1)

	msg, ok := s.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(77), msg.ChatID)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 3)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "del_entry:e1", *markup.InlineKeyboard[0][0].CallbackData)
}
