package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/babyshield/crownsafe-backend/internal/app"
)

func main() {
	// .env is optional; real deployments inject the environment directly
	_ = godotenv.Load()

	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()

	a.Log.Info("Starting HTTP server", "addr", a.Cfg.HTTPAddr)
	if err := a.Run(); err != nil {
		a.Log.Error("HTTP server exited", "error", err)
		os.Exit(1)
	}
}
