package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/dosemate/internal/bot/keyboards"
	"github.com/vladimiradmaev/dosemate/internal/bot/menus"
	"github.com/vladimiradmaev/dosemate/internal/bot/state"
	"github.com/vladimiradmaev/dosemate/internal/domain"
	"github.com/vladimiradmaev/dosemate/internal/logger"
)

const helpText = `Доступные команды:
/start - Показать главное меню
/dose - Рассчитать дозу
/history - История расчетов
/settings - Настройки
/help - Показать это сообщение

Как считается доза:
1. Введите гликемию в мг/дл, доза коррекции берется из таблицы по времени суток
2. Добавьте продукты строками "углеводы на 100 г" и "вес", например: 60 150
3. Доза на еду = углеводы / углеводный коэффициент

Утро 5-11, день 11-16, вечер 16-22, ночью считается дополнительное введение.
К введению больше 22 ед не предлагается.`

// CommandHandler handles bot commands
type CommandHandler struct {
	base
	callbacks *CallbackHandler
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(api BotAPI, deps Dependencies, stateManager state.StateManager, callbacks *CallbackHandler) *CommandHandler {
	return &CommandHandler{
		base:      base{api: api, deps: deps, stateManager: stateManager},
		callbacks: callbacks,
	}
}

// Handle processes a command message
func (h *CommandHandler) Handle(ctx context.Context, message *tgbotapi.Message, user *domain.User) error {
	logger.Info("Handling command", "command", message.Command(), "user_id", user.ID)
	chatID := message.Chat.ID

	switch message.Command() {
	case "start":
		h.stateManager.SetUserState(user.TelegramID, state.None)
		return menus.SendMainMenu(h.api, chatID)
	case "dose":
		return h.startDose(chatID, user)
	case "history":
		return h.callbacks.handleHistory(chatID, user)
	case "settings":
		return h.callbacks.handleSettings(ctx, chatID, user)
	case "help":
		return h.send(chatID, helpText, keyboards.BackMenu())
	default:
		return h.send(chatID, "Неизвестная команда. Используйте /help для просмотра доступных команд.", nil)
	}
}
