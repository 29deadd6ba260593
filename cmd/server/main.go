package main

import (
	app "batterycare/internal/app/server"
	"batterycare/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel)
	app.Run(cfg)
}
