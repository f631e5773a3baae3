package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/dosemate/internal/bot/keyboards"
	"github.com/vladimiradmaev/dosemate/internal/bot/menus"
	"github.com/vladimiradmaev/dosemate/internal/bot/state"
	"github.com/vladimiradmaev/dosemate/internal/domain"
	apperrors "github.com/vladimiradmaev/dosemate/internal/errors"
	"github.com/vladimiradmaev/dosemate/internal/logger"
)

// CallbackHandler handles callback query messages
type CallbackHandler struct {
	base
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(api BotAPI, deps Dependencies, stateManager state.StateManager) *CallbackHandler {
	return &CallbackHandler{base{api: api, deps: deps, stateManager: stateManager}}
}

// Handle processes a callback query
func (h *CallbackHandler) Handle(ctx context.Context, query *tgbotapi.CallbackQuery, user *domain.User) error {
	// Answer the callback query first to stop the button spinner.
	if _, err := h.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		logger.Warn("Failed to answer callback query", "error", err)
	}
	if query.Message == nil {
		return nil
	}
	chatID := query.Message.Chat.ID

	if entryID, ok := strings.CutPrefix(query.Data, keyboards.DeleteEntryPrefix); ok {
		return h.handleDeleteEntry(ctx, chatID, user, entryID)
	}

	switch query.Data {
	case keyboards.MainMenuData:
		return h.handleMainMenu(chatID, user)
	case keyboards.CalcDoseData:
		return h.startDose(chatID, user)
	case keyboards.SkipGlycemiaData:
		return h.handleSkipGlycemia(chatID, user)
	case keyboards.ToggleExtraData:
		return h.handleToggleExtra(ctx, chatID, user)
	case keyboards.DoseDoneData:
		return h.showResult(ctx, chatID, user)
	case keyboards.SaveDoseData:
		return h.handleSaveDose(ctx, chatID, user)
	case keyboards.HistoryData:
		return h.handleHistory(chatID, user)
	case keyboards.ClearHistoryData:
		return h.send(chatID, "Удалить всю историю расчетов? Это действие нельзя отменить.", keyboards.ConfirmClearMenu())
	case keyboards.ClearConfirmData:
		return h.handleClearHistory(ctx, chatID, user)
	case keyboards.SettingsData:
		return h.handleSettings(ctx, chatID, user)
	case keyboards.SetCarbRatioData:
		h.stateManager.SetUserState(user.TelegramID, state.WaitingForCarbRatio)
		return h.send(chatID, "Введите углеводный коэффициент: сколько граммов углеводов покрывает 1 ед инсулина (например: 10).",
			keyboards.CancelMenu(keyboards.SettingsData))
	case keyboards.SetCustomTableData:
		return h.handleSetCustomTable(chatID, user)
	case keyboards.ToggleCustomTableData:
		return h.handleToggleCustomTable(ctx, chatID, user)
	case keyboards.ShowTableData:
		return h.handleShowTable(ctx, chatID, user)
	case keyboards.HelpData:
		return h.send(chatID, helpText, keyboards.BackMenu())
	default:
		return h.handleUnknownCallback(chatID)
	}
}

// handleMainMenu handles main menu callback
func (h *CallbackHandler) handleMainMenu(chatID int64, user *domain.User) error {
	h.stateManager.SetUserState(user.TelegramID, state.None)
	return menus.SendMainMenu(h.api, chatID)
}

func (h *CallbackHandler) handleSkipGlycemia(chatID int64, user *domain.User) error {
	draft := h.loadDraft(user.TelegramID)
	draft.Glycemia = ""
	h.saveDraft(user.TelegramID, draft)
	return h.askFood(chatID, user, draft)
}

// handleToggleExtra flips the extra moment. When a result is on screen it is
// recalculated, otherwise the current step is shown again.
func (h *CallbackHandler) handleToggleExtra(ctx context.Context, chatID int64, user *domain.User) error {
	draft := h.loadDraft(user.TelegramID)
	draft.ForceExtra = !draft.ForceExtra
	h.saveDraft(user.TelegramID, draft)

	switch h.stateManager.GetUserState(user.TelegramID) {
	case state.WaitingForGlycemia:
		return h.send(chatID, extraStatus(draft.ForceExtra), keyboards.GlycemiaMenu(draft.ForceExtra))
	case state.WaitingForFood:
		return h.send(chatID, extraStatus(draft.ForceExtra), keyboards.FoodMenu(draft.ForceExtra))
	}
	if _, ok := h.loadResult(user.TelegramID); ok {
		return h.showResult(ctx, chatID, user)
	}
	return h.send(chatID, extraStatus(draft.ForceExtra), keyboards.BackMenu())
}

func extraStatus(on bool) string {
	if on {
		return "✅ Расчет как дополнительное введение."
	}
	return "Время суток определяется по часам."
}

func (h *CallbackHandler) handleSaveDose(ctx context.Context, chatID int64, user *domain.User) error {
	res, ok := h.loadResult(user.TelegramID)
	if !ok {
		return h.send(chatID, "Нет расчета для сохранения. Начните новый расчет.", keyboards.MainMenu())
	}

	entry, err := h.deps.DoseSvc.Save(ctx, user.ID, res)
	if err != nil {
		return h.fail(chatID, err)
	}
	h.stateManager.ClearTempData(user.TelegramID)

	return h.send(chatID, fmt.Sprintf("💾 Сохранено: %s, %d ед.", entry.Display, entry.TotalAdministered), keyboards.MainMenu())
}

func (h *CallbackHandler) handleHistory(chatID int64, user *domain.User) error {
	entries, err := h.deps.HistoryFeed.Entries(user.ID)
	if err != nil {
		return h.fail(chatID, fmt.Errorf("failed to load history: %w", err))
	}
	return menus.SendHistory(h.api, chatID, entries)
}

func (h *CallbackHandler) handleDeleteEntry(ctx context.Context, chatID int64, user *domain.User, entryID string) error {
	err := h.deps.DoseSvc.DeleteEntry(ctx, user.ID, entryID)
	switch {
	case errors.Is(err, apperrors.ErrEntryNotFound):
		if sendErr := h.send(chatID, "Запись уже удалена.", nil); sendErr != nil {
			return sendErr
		}
	case err != nil:
		return h.fail(chatID, err)
	}
	return h.handleHistory(chatID, user)
}

func (h *CallbackHandler) handleClearHistory(ctx context.Context, chatID int64, user *domain.User) error {
	if err := h.deps.DoseSvc.ClearHistory(ctx, user.ID); err != nil {
		return h.fail(chatID, err)
	}
	return h.send(chatID, "🧹 История очищена.", keyboards.MainMenu())
}

func (h *CallbackHandler) handleSettings(ctx context.Context, chatID int64, user *domain.User) error {
	h.stateManager.SetUserState(user.TelegramID, state.None)
	settings, err := h.deps.SettingsSvc.Get(ctx, user.ID)
	if err != nil {
		return h.fail(chatID, err)
	}
	return menus.SendSettingsMenu(h.api, chatID, settings)
}

func (h *CallbackHandler) handleSetCustomTable(chatID int64, user *domain.User) error {
	h.stateManager.SetUserState(user.TelegramID, state.WaitingForCustomTable)
	text := "✏️ Отправьте таблицу, по строке на диапазон:\n" +
		"мин макс утро день вечер доп\n\n" +
		"Например:\n-inf 69 7 5 6 0\n69 100 8 6 7 0\n100 inf 9 7 8 1\n\n" +
		"Границы включаются в диапазон, общая граница относится к первой из двух строк. " +
		"-inf и inf означают без ограничения."
	return h.send(chatID, text, keyboards.CancelMenu(keyboards.SettingsData))
}

func (h *CallbackHandler) handleToggleCustomTable(ctx context.Context, chatID int64, user *domain.User) error {
	current, err := h.deps.SettingsSvc.Get(ctx, user.ID)
	if err != nil {
		return h.fail(chatID, err)
	}
	if !current.UseCustomTable && len(current.CustomTable) == 0 {
		return h.send(chatID, "Сначала задайте свою таблицу.", keyboards.SettingsMenu(false))
	}

	settings, err := h.deps.SettingsSvc.SetUseCustomTable(ctx, user.ID, !current.UseCustomTable)
	if err != nil {
		return h.fail(chatID, err)
	}
	return menus.SendSettingsMenu(h.api, chatID, settings)
}

func (h *CallbackHandler) handleShowTable(ctx context.Context, chatID int64, user *domain.User) error {
	settings, err := h.deps.SettingsSvc.Get(ctx, user.ID)
	if err != nil {
		return h.fail(chatID, err)
	}
	custom := settings.UseCustomTable && len(settings.CustomTable) > 0
	return h.sendMarkdown(chatID, menus.FormatTable(settings.ActiveTable(), custom), keyboards.SettingsMenu(settings.UseCustomTable))
}

// handleUnknownCallback handles unknown callbacks
func (h *CallbackHandler) handleUnknownCallback(chatID int64) error {
	return h.send(chatID, "Неизвестная команда", keyboards.BackMenu())
}
