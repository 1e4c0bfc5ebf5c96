package main

import (
	"context"
	"log"

	"github.com/mkraev/venuetrace/internal/app"
	"github.com/mkraev/venuetrace/internal/config"
)

func main() {
	cfg := config.LoadConfig()

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.Close()

	ctx := context.Background()

	if cfg.ReportMode {
		if err := a.RunReport(ctx); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if err := a.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
