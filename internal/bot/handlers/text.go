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
	"github.com/vladimiradmaev/dosemate/internal/dose"
	apperrors "github.com/vladimiradmaev/dosemate/internal/errors"
)

// TextHandler handles text messages
type TextHandler struct {
	base
}

// NewTextHandler creates a new text handler
func NewTextHandler(api BotAPI, deps Dependencies, stateManager state.StateManager) *TextHandler {
	return &TextHandler{base{api: api, deps: deps, stateManager: stateManager}}
}

// Handle processes a text message
func (h *TextHandler) Handle(ctx context.Context, message *tgbotapi.Message, user *domain.User) error {
	chatID := message.Chat.ID

	switch h.stateManager.GetUserState(user.TelegramID) {
	case state.WaitingForGlycemia:
		return h.handleGlycemia(chatID, message.Text, user)
	case state.WaitingForFood:
		return h.handleFood(chatID, message.Text, user)
	case state.WaitingForCarbRatio:
		return h.handleCarbRatio(ctx, chatID, message.Text, user)
	case state.WaitingForCustomTable:
		return h.handleCustomTable(ctx, chatID, message.Text, user)
	default:
		return h.send(chatID, "Пожалуйста, используйте меню для выбора действия.", keyboards.MainMenu())
	}
}

func (h *TextHandler) handleGlycemia(chatID int64, text string, user *domain.User) error {
	draft := h.loadDraft(user.TelegramID)

	g, ok := dose.ParseDecimal(text)
	if !ok || g <= 0 {
		return h.send(chatID, "Пожалуйста, введите гликемию числом в мг/дл (например: 145).", keyboards.GlycemiaMenu(draft.ForceExtra))
	}

	draft.Glycemia = strings.TrimSpace(text)
	h.saveDraft(user.TelegramID, draft)
	return h.askFood(chatID, user, draft)
}

func (h *TextHandler) handleFood(chatID int64, text string, user *domain.User) error {
	draft := h.loadDraft(user.TelegramID)

	items, err := parseFoodLines(text)
	if err != nil {
		return h.send(chatID, "⚠️ "+err.Error()+"\n\nФормат: углеводы на 100 г и вес, например: 60 150", keyboards.FoodMenu(draft.ForceExtra))
	}

	draft.FoodItems = append(draft.FoodItems, items...)
	h.saveDraft(user.TelegramID, draft)
	return h.send(chatID, menus.FormatFoodItems(draft.FoodItems)+"\n\nДобавьте еще или нажмите «Готово».", keyboards.FoodMenu(draft.ForceExtra))
}

func (h *TextHandler) handleCarbRatio(ctx context.Context, chatID int64, text string, user *domain.User) error {
	ratio, ok := dose.ParseDecimal(text)
	if !ok {
		return h.send(chatID, "Пожалуйста, введите число (например: 10 или 12,5).", keyboards.CancelMenu(keyboards.SettingsData))
	}

	settings, err := h.deps.SettingsSvc.SetCarbRatio(ctx, user.ID, ratio)
	if errors.Is(err, apperrors.ErrInvalidCarbRatio) {
		return h.send(chatID, "Коэффициент должен быть больше нуля.", keyboards.CancelMenu(keyboards.SettingsData))
	}
	if err != nil {
		return h.fail(chatID, err)
	}

	h.stateManager.SetUserState(user.TelegramID, state.None)
	if err := h.send(chatID, fmt.Sprintf("✅ Углеводный коэффициент: %s г на 1 ед", menus.Num(settings.CarbRatio)), nil); err != nil {
		return err
	}
	return menus.SendSettingsMenu(h.api, chatID, settings)
}

func (h *TextHandler) handleCustomTable(ctx context.Context, chatID int64, text string, user *domain.User) error {
	table, err := parseTableLines(text)
	if err != nil {
		return h.send(chatID, "⚠️ "+err.Error(), keyboards.CancelMenu(keyboards.SettingsData))
	}

	settings, issues, err := h.deps.SettingsSvc.SetCustomTable(ctx, user.ID, table)
	if apperrors.TypeOf(err) == apperrors.ErrorTypeValidation {
		return h.send(chatID, "⚠️ Таблица не сохранена: "+describeTableError(err), keyboards.CancelMenu(keyboards.SettingsData))
	}
	if err != nil {
		return h.fail(chatID, err)
	}

	h.stateManager.SetUserState(user.TelegramID, state.None)
	reply := fmt.Sprintf("✅ Таблица сохранена (%d строк).", len(table))
	if !settings.UseCustomTable {
		reply += " Чтобы она применялась, включите ее в настройках."
	}
	if note := menus.FormatIssues(issues); note != "" {
		reply += "\n\n" + note
	}
	if err := h.send(chatID, reply, nil); err != nil {
		return err
	}
	return menus.SendSettingsMenu(h.api, chatID, settings)
}

// describeTableError returns the validation detail without the error type
// prefixes.
func describeTableError(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Internal != nil {
		msg := appErr.Internal.Error()
		return strings.TrimPrefix(msg, dose.ErrInvalidTable.Error()+": ")
	}
	return err.Error()
}
