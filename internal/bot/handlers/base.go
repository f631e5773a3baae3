package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/dosemate/internal/bot/keyboards"
	"github.com/vladimiradmaev/dosemate/internal/bot/menus"
	"github.com/vladimiradmaev/dosemate/internal/bot/state"
	"github.com/vladimiradmaev/dosemate/internal/domain"
	"github.com/vladimiradmaev/dosemate/internal/dose"
	"github.com/vladimiradmaev/dosemate/internal/logger"
	"github.com/vladimiradmaev/dosemate/internal/services"
)

const errorText = "Произошла ошибка. Пожалуйста, попробуйте еще раз."

// base carries what every handler needs.
type base struct {
	api          BotAPI
	deps         Dependencies
	stateManager state.StateManager
}

func (b base) send(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	_, err := b.api.Send(msg)
	return err
}

func (b base) sendMarkdown(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	_, err := b.api.Send(msg)
	return err
}

// fail tells the user something went wrong and returns err for logging.
func (b base) fail(chatID int64, err error) error {
	if sendErr := b.send(chatID, errorText, keyboards.BackMenu()); sendErr != nil {
		logger.Warn("Failed to send error message", "chat_id", chatID, "error", sendErr)
	}
	return err
}

func (b base) loadDraft(telegramID int64) services.DoseRequest {
	var draft services.DoseRequest
	raw, ok := b.stateManager.GetTempData(telegramID, keyDraft)
	if !ok {
		return draft
	}
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		logger.Warn("Discarding unreadable dose draft", "telegram_id", telegramID, "error", err)
		return services.DoseRequest{}
	}
	return draft
}

func (b base) saveDraft(telegramID int64, draft services.DoseRequest) {
	raw, err := json.Marshal(draft)
	if err != nil {
		logger.Error("Failed to encode dose draft", "telegram_id", telegramID, "error", err)
		return
	}
	b.stateManager.SetTempData(telegramID, keyDraft, string(raw))
}

func (b base) loadResult(telegramID int64) (dose.Result, bool) {
	raw, ok := b.stateManager.GetTempData(telegramID, keyResult)
	if !ok || raw == "" {
		return dose.Result{}, false
	}
	var res dose.Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		logger.Warn("Discarding unreadable dose result", "telegram_id", telegramID, "error", err)
		return dose.Result{}, false
	}
	return res, true
}

func (b base) saveResult(telegramID int64, res dose.Result) {
	raw, err := json.Marshal(res)
	if err != nil {
		logger.Error("Failed to encode dose result", "telegram_id", telegramID, "error", err)
		// An older result must not be saved in place of this one.
		b.stateManager.SetTempData(telegramID, keyResult, "")
		return
	}
	b.stateManager.SetTempData(telegramID, keyResult, string(raw))
}

// startDose resets the draft and asks for the glucose reading.
func (b base) startDose(chatID int64, user *domain.User) error {
	b.stateManager.ClearTempData(user.TelegramID)
	b.saveDraft(user.TelegramID, services.DoseRequest{})
	b.stateManager.SetUserState(user.TelegramID, state.WaitingForGlycemia)

	text := "🩸 Введите гликемию в мг/дл (например: 145).\n\nЕсли сахар не измеряли, нажмите «Без гликемии»."
	return b.send(chatID, text, keyboards.GlycemiaMenu(false))
}

// askFood moves the draft to food collection.
func (b base) askFood(chatID int64, user *domain.User, draft services.DoseRequest) error {
	b.stateManager.SetUserState(user.TelegramID, state.WaitingForFood)

	text := "🍽️ Отправьте продукты, по одному на строку: углеводы на 100 г и вес в граммах.\n" +
		"Например:\n60 150\n12,5 200\n"
	if b.deps.FoodEstimator != nil && b.deps.FoodEstimator.Enabled() {
		text += "\nМожно отправить фото блюда, вес можно указать в подписи.\n"
	}
	text += "\nКогда закончите, нажмите «Готово». Без еды рассчитается только коррекция."
	return b.send(chatID, text, keyboards.FoodMenu(draft.ForceExtra))
}

// showResult calculates the draft, keeps the result for saving and sends
// the result card.
func (b base) showResult(ctx context.Context, chatID int64, user *domain.User) error {
	draft := b.loadDraft(user.TelegramID)
	res, err := b.deps.DoseSvc.Calculate(ctx, user.ID, draft)
	if err != nil {
		return b.fail(chatID, fmt.Errorf("failed to calculate dose: %w", err))
	}

	b.saveResult(user.TelegramID, res)
	b.stateManager.SetUserState(user.TelegramID, state.None)
	return b.sendMarkdown(chatID, menus.FormatResult(res), keyboards.ResultMenu(draft.ForceExtra))
}
