package menus

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/dosemate/internal/bot/keyboards"
	"github.com/vladimiradmaev/dosemate/internal/domain"
	"github.com/vladimiradmaev/dosemate/internal/dose"
)

// Sender sends messages to Telegram.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// HistoryLimit is how many entries the history screen lists.
const HistoryLimit = 20

var momentNames = map[dose.Moment]string{
	dose.MomentMorning: "утро",
	dose.MomentNoon:    "день",
	dose.MomentEvening: "вечер",
	dose.MomentExtra:   "доп. введение",
}

// MomentName returns the Russian label of m.
func MomentName(m dose.Moment) string {
	if name, ok := momentNames[m]; ok {
		return name
	}
	return string(m)
}

// Num formats v with at most one decimal place.
func Num(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

func bound(v float64) string {
	switch {
	case math.IsInf(v, -1):
		return "-∞"
	case math.IsInf(v, 1):
		return "+∞"
	}
	return Num(v)
}

// SendMainMenu sends the main menu to a chat
func SendMainMenu(api Sender, chatID int64) error {
	text := `💉 *DoseMate* — расчет дозы инсулина

• Коррекция по уровню гликемии и времени суток
• Доза на еду по углеводному коэффициенту
• История сохраненных расчетов

⚠️ *Важно:* Это справочная информация, всегда консультируйтесь с врачом!

Выберите действие:`

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = keyboards.MainMenu()
	_, err := api.Send(msg)
	return err
}

// FormatResult renders a calculation result card.
func FormatResult(res dose.Result) string {
	var sb strings.Builder
	sb.WriteString("💉 *Расчет дозы*\n\n")
	fmt.Fprintf(&sb, "🕒 Время: %s\n", MomentName(res.Moment))

	if res.Glycemia != nil {
		fmt.Fprintf(&sb, "🩸 Гликемия: %s мг/дл\n", Num(*res.Glycemia))
	} else {
		sb.WriteString("🩸 Гликемия: не указана\n")
	}
	if res.Base != nil {
		fmt.Fprintf(&sb, "📐 Доза по таблице: %s ед\n", Num(*res.Base))
	} else if res.Glycemia != nil {
		sb.WriteString("📐 Доза по таблице: нет подходящего диапазона\n")
	}
	if res.Meal != nil {
		fmt.Fprintf(&sb, "🍞 Углеводы: %s г, на еду: %s ед\n", Num(res.TotalCarbs), Num(*res.Meal))
	}

	fmt.Fprintf(&sb, "\nРассчитано: %s ед\n", Num(res.TotalCalculated))
	fmt.Fprintf(&sb, "✅ *Ввести: %d ед*\n", res.TotalAdministered)

	if res.Hypo {
		sb.WriteString("\n⚠️ *Гипогликемия!* Сначала поднимите сахар и перепроверьте его.\n")
	}
	if res.Hyper {
		sb.WriteString("\n⚠️ *Высокая гликемия.* Проверьте кетоны и перепроверьте сахар.\n")
	}
	if res.AlertMax {
		fmt.Fprintf(&sb, "\n⚠️ Рассчитанная доза %s ед больше лимита %s ед, к введению ограничено %d ед.\n",
			Num(res.TotalCalculated), Num(dose.DisplayMax), res.TotalAdministered)
	}
	return sb.String()
}

// FormatFoodItems lists the food collected so far.
func FormatFoodItems(items []dose.FoodItem) string {
	if len(items) == 0 {
		return "Продукты пока не добавлены."
	}
	var sb strings.Builder
	sb.WriteString("🍽️ Продукты:\n")
	total := 0.0
	for i, item := range items {
		carbs := item.Carbs()
		total += carbs
		fmt.Fprintf(&sb, "%d. %s г/100г × %s г = %s г\n", i+1, item.CarbsPer100, item.Weight, Num(carbs))
	}
	fmt.Fprintf(&sb, "Всего углеводов: %s г", Num(total))
	return sb.String()
}

// FormatHistory renders up to HistoryLimit entries, newest first.
func FormatHistory(entries []domain.HistoryEntry) string {
	if len(entries) == 0 {
		return "📋 История пуста."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 *История* (%d)\n\n", len(entries))
	for i, e := range entries {
		if i == HistoryLimit {
			fmt.Fprintf(&sb, "… и еще %d\n", len(entries)-HistoryLimit)
			break
		}
		fmt.Fprintf(&sb, "• %s · *%d ед* (%s", e.Display, e.TotalAdministered, MomentName(e.Moment))
		if e.Glycemia != nil {
			fmt.Fprintf(&sb, ", гликемия %s", Num(*e.Glycemia))
		}
		if e.Meal != nil {
			fmt.Fprintf(&sb, ", на еду %s", Num(*e.Meal))
		}
		sb.WriteString(")\n")
	}
	return sb.String()
}

// FormatTable renders a dose table as a fixed-width block.
func FormatTable(table dose.Table, custom bool) string {
	var sb strings.Builder
	if custom {
		sb.WriteString("📊 *Своя таблица*\n")
	} else {
		sb.WriteString("📊 *Стандартная таблица*\n")
	}
	sb.WriteString("```\n")
	fmt.Fprintf(&sb, "%-11s %5s %5s %5s %5s\n", "мг/дл", "утро", "день", "вечер", "доп")
	for _, r := range table {
		fmt.Fprintf(&sb, "%-11s %5s %5s %5s %5s\n",
			bound(r.Min)+".."+bound(r.Max),
			Num(r.DoseFor(dose.MomentMorning)),
			Num(r.DoseFor(dose.MomentNoon)),
			Num(r.DoseFor(dose.MomentEvening)),
			Num(r.DoseFor(dose.MomentExtra)),
		)
	}
	sb.WriteString("```")
	return sb.String()
}

// FormatIssues explains table diagnostics.
func FormatIssues(issues []dose.Issue) string {
	if len(issues) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("⚠️ Таблица сохранена, но есть замечания:\n")
	for _, is := range issues {
		switch is.Kind {
		case dose.IssueOverlap:
			fmt.Fprintf(&sb, "• строки %d и %d пересекаются, используется первая\n", is.Row, is.Other)
		case dose.IssueGap:
			fmt.Fprintf(&sb, "• между строками %d и %d есть пропуск, там доза по таблице не считается\n", is.Row, is.Other)
		}
	}
	return sb.String()
}

// FormatSettings summarizes the user's settings.
func FormatSettings(s domain.DoseSettings) string {
	table := "стандартная"
	if s.UseCustomTable && len(s.CustomTable) > 0 {
		table = fmt.Sprintf("своя (%d строк)", len(s.CustomTable))
	} else if s.UseCustomTable {
		table = "своя не задана, используется стандартная"
	}
	return fmt.Sprintf("⚙️ *Настройки*\n\n🍞 Углеводный коэффициент: %s г на 1 ед\n📊 Таблица доз: %s",
		Num(s.CarbRatio), table)
}

// SendSettingsMenu sends the settings menu to a chat
func SendSettingsMenu(api Sender, chatID int64, s domain.DoseSettings) error {
	msg := tgbotapi.NewMessage(chatID, FormatSettings(s))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = keyboards.SettingsMenu(s.UseCustomTable)
	_, err := api.Send(msg)
	return err
}

// SendHistory sends the history screen
func SendHistory(api Sender, chatID int64, entries []domain.HistoryEntry) error {
	msg := tgbotapi.NewMessage(chatID, FormatHistory(entries))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = keyboards.HistoryMenu(entries)
	_, err := api.Send(msg)
	return err
}
