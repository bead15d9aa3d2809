package main

import (
	"log"

	"github.com/joho/godotenv"

	corecmd "github.com/gateprep/coursebot/core/cmd"
	"github.com/gateprep/coursebot/internal/bot"
)

func main() {
	// Local development convenience; a missing .env is fine.
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}

	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return bot.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return bot.NewApp(cfg.(*bot.Config))
		},
	})
	if err != nil {
		log.Fatalf("coursebot: %v", err)
	}
}
