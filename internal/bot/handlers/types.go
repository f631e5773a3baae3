package handlers

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vladimiradmaev/dosemate/internal/interfaces"
)

// Dependencies holds all service dependencies for handlers
type Dependencies struct {
	UserService   interfaces.UserServiceInterface
	DoseSvc       interfaces.DoseServiceInterface
	SettingsSvc   interfaces.SettingsServiceInterface
	HistoryFeed   interfaces.HistoryFeedInterface
	FoodEstimator interfaces.FoodEstimatorInterface
}

// BotAPI is the part of *tgbotapi.BotAPI the handlers use.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

var _ BotAPI = (*tgbotapi.BotAPI)(nil)

// Temp data keys
const (
	keyDraft  = "dose_draft"
	keyResult = "dose_result"
)
