package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/vladimiradmaev/dosemate/internal/config"
	"github.com/vladimiradmaev/dosemate/internal/dose"
)

func main() {
	fmt.Println("🔍 Проверка конфигурации...")

	if err := godotenv.Load(); err != nil {
		fmt.Printf("⚠️  .env файл не найден: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Ошибка валидации конфигурации:\n%v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Конфигурация валидна!")
	fmt.Printf("📋 Детали конфигурации:\n")
	fmt.Printf("  - Telegram Token: %s\n", maskToken(cfg.TelegramToken))
	fmt.Printf("  - Gemini API Key: %s\n", maskToken(cfg.GeminiAPIKey))
	fmt.Printf("  - Storage: %s\n", cfg.Storage.Backend)
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		fmt.Printf("  - DB: %s@%s:%s/%s\n", cfg.DB.User, cfg.DB.Host, cfg.DB.Port, cfg.DB.DBName)
	case config.StorageLocal:
		fmt.Printf("  - Local store: %s (passphrase %s)\n", cfg.Local.Path, maskToken(cfg.Local.Passphrase))
	}
	fmt.Printf("  - State: %s\n", cfg.State.Backend)
	if cfg.State.Backend == config.StateRedis {
		fmt.Printf("  - Redis: %s:%s\n", cfg.State.RedisHost, cfg.State.RedisPort)
	}
	fmt.Printf("  - Default carb ratio: %g\n", cfg.Dose.DefaultCarbRatio)
	fmt.Printf("  - Timezone: %s\n", cfg.Dose.Location)
	fmt.Printf("  - Log Level: %v\n", cfg.Logger.Level)
	fmt.Printf("  - Log Output: %s\n", cfg.Logger.OutputPath)
	fmt.Printf("  - Log Format: %s\n", cfg.Logger.Format)

	if issues := dose.DefaultTable().Diagnose(); len(issues) > 0 {
		fmt.Printf("⚠️  Встроенная таблица: %d замечаний\n", len(issues))
	}
}

func maskToken(token string) string {
	if token == "" {
		return "<не установлен>"
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
