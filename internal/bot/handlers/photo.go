package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/dosemate/internal/bot/keyboards"
	"github.com/vladimiradmaev/dosemate/internal/bot/menus"
	"github.com/vladimiradmaev/dosemate/internal/bot/state"
	"github.com/vladimiradmaev/dosemate/internal/domain"
	"github.com/vladimiradmaev/dosemate/internal/dose"
	apperrors "github.com/vladimiradmaev/dosemate/internal/errors"
	"github.com/vladimiradmaev/dosemate/internal/logger"
)

const maxPhotoSize = 10 << 20

// PhotoHandler handles photo messages
type PhotoHandler struct {
	base
	httpClient *http.Client
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(api BotAPI, deps Dependencies, stateManager state.StateManager) *PhotoHandler {
	return &PhotoHandler{
		base:       base{api: api, deps: deps, stateManager: stateManager},
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Handle processes a photo message
func (h *PhotoHandler) Handle(ctx context.Context, message *tgbotapi.Message, user *domain.User) error {
	chatID := message.Chat.ID

	if h.stateManager.GetUserState(user.TelegramID) != state.WaitingForFood {
		return h.send(chatID, "Чтобы добавить блюдо по фото, начните расчет дозы.", keyboards.MainMenu())
	}
	draft := h.loadDraft(user.TelegramID)
	if h.deps.FoodEstimator == nil || !h.deps.FoodEstimator.Enabled() {
		return h.send(chatID, "Распознавание фото не настроено. Введите продукты текстом.", keyboards.FoodMenu(draft.ForceExtra))
	}

	weight := 0.0
	if caption := strings.TrimSpace(message.Caption); caption != "" {
		w, ok := dose.ParseDecimal(caption)
		if !ok || w <= 0 || w > maxFoodWeight {
			return h.send(chatID, "Неверный формат веса. Пожалуйста, укажите вес в граммах (например: 150).", keyboards.FoodMenu(draft.ForceExtra))
		}
		weight = w
	}

	processing, err := h.api.Send(tgbotapi.NewMessage(chatID, "Анализирую изображение..."))
	if err != nil {
		return fmt.Errorf("failed to send processing message: %w", err)
	}
	defer func() {
		if _, err := h.api.Request(tgbotapi.NewDeleteMessage(chatID, processing.MessageID)); err != nil {
			logger.Debug("Failed to delete processing message", "error", err)
		}
	}()

	// The largest size is last.
	photo := message.Photo[len(message.Photo)-1]
	image, err := h.download(ctx, photo.FileID)
	if err != nil {
		return h.fail(chatID, err)
	}

	estimate, err := h.deps.FoodEstimator.Estimate(ctx, image, weight)
	if errors.Is(err, apperrors.ErrExternalAPI) {
		logger.Warn("Food estimation failed", "user_id", user.ID, "error", err)
		return h.send(chatID, "Извините, не удалось распознать блюдо. Введите продукты текстом или попробуйте другое фото.", keyboards.FoodMenu(draft.ForceExtra))
	}
	if err != nil {
		return h.fail(chatID, err)
	}

	item := estimate.FoodItem()
	draft.FoodItems = append(draft.FoodItems, item)
	h.saveDraft(user.TelegramID, draft)

	text := fmt.Sprintf("📷 %s\nУглеводы: %s г на 100 г, вес: %s г\n\n%s\n\nДобавьте еще или нажмите «Готово».",
		strings.Join(estimate.FoodItems, ", "),
		menus.Num(estimate.CarbsPer100),
		menus.Num(estimate.Weight),
		menus.FormatFoodItems(draft.FoodItems),
	)
	return h.send(chatID, strings.ToValidUTF8(text, ""), keyboards.FoodMenu(draft.ForceExtra))
}

func (h *PhotoHandler) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := h.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}
