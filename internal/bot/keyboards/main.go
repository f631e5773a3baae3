package keyboards

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/dosemate/internal/domain"
)

// Callback data
const (
	MainMenuData          = "main_menu"
	CalcDoseData          = "calc_dose"
	SkipGlycemiaData      = "skip_glycemia"
	DoseDoneData          = "dose_done"
	ToggleExtraData       = "toggle_extra"
	SaveDoseData          = "save_dose"
	HistoryData           = "history"
	DeleteEntryPrefix     = "del_entry:"
	ClearHistoryData      = "clear_history"
	ClearConfirmData      = "clear_history_confirm"
	SettingsData          = "settings"
	SetCarbRatioData      = "set_carb_ratio"
	SetCustomTableData    = "set_custom_table"
	ToggleCustomTableData = "toggle_custom_table"
	ShowTableData         = "show_table"
	HelpData              = "help"
)

// HistoryButtons is how many entries get a delete button.
const HistoryButtons = 10

func backRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("◀️ Главное меню", MainMenuData),
	)
}

func extraButton(forceExtra bool) tgbotapi.InlineKeyboardButton {
	if forceExtra {
		return tgbotapi.NewInlineKeyboardButtonData("✅ Доп. введение", ToggleExtraData)
	}
	return tgbotapi.NewInlineKeyboardButtonData("➕ Доп. введение", ToggleExtraData)
}

// MainMenu creates the main menu keyboard
func MainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💉 Рассчитать дозу", CalcDoseData),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 История", HistoryData),
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Настройки", SettingsData),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❓ Помощь", HelpData),
		),
	)
}

// GlycemiaMenu is shown while waiting for the glucose reading.
func GlycemiaMenu(forceExtra bool) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏭️ Без гликемии", SkipGlycemiaData),
			extraButton(forceExtra),
		),
		backRow(),
	)
}

// FoodMenu is shown while food lines are collected.
func FoodMenu(forceExtra bool) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Готово", DoseDoneData),
			extraButton(forceExtra),
		),
		backRow(),
	)
}

// ResultMenu is attached to a calculation result.
func ResultMenu(forceExtra bool) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💾 Сохранить", SaveDoseData),
			extraButton(forceExtra),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Новый расчет", CalcDoseData),
		),
		backRow(),
	)
}

// HistoryMenu has a delete button for each of the newest entries.
func HistoryMenu(entries []domain.HistoryEntry) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, e := range entries {
		if i == HistoryButtons {
			break
		}
		label := fmt.Sprintf("🗑️ %s · %d ед", e.Display, e.TotalAdministered)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, DeleteEntryPrefix+e.ID),
		))
	}
	if len(entries) > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧹 Очистить историю", ClearHistoryData),
		))
	}
	rows = append(rows, backRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ConfirmClearMenu asks before the whole history is removed.
func ConfirmClearMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Да, удалить все", ClearConfirmData),
			tgbotapi.NewInlineKeyboardButtonData("❌ Нет", HistoryData),
		),
	)
}

// SettingsMenu creates the settings menu keyboard
func SettingsMenu(useCustomTable bool) tgbotapi.InlineKeyboardMarkup {
	toggle := "📐 Включить свою таблицу"
	if useCustomTable {
		toggle = "📐 Использовать стандартную таблицу"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🍞 Углеводный коэффициент", SetCarbRatioData),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Задать свою таблицу", SetCustomTableData),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(toggle, ToggleCustomTableData),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Показать таблицу", ShowTableData),
		),
		backRow(),
	)
}

// CancelMenu returns to target without saving.
func CancelMenu(target string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Отмена", target),
		),
	)
}

// BackMenu only leads to the main menu.
func BackMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(backRow())
}
