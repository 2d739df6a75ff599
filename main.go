package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"weatherbot/app/client/similarity"
	"weatherbot/app/client/telegram"
	"weatherbot/app/client/weatherapi"
	"weatherbot/app/config"
	"weatherbot/app/report"
	"weatherbot/app/service/conversation"
	"weatherbot/app/service/engine"
	"weatherbot/app/service/httpapi"
	"weatherbot/app/service/intent"
	"weatherbot/app/service/janitor"
	"weatherbot/app/service/mcpserver"
	"weatherbot/app/service/queue"
	"weatherbot/app/service/storage"
	"weatherbot/app/service/weather"
	"weatherbot/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.ProvideValue(di, report.DefaultCatalog())

	do.Provide(di, weatherapi.NewClient)
	do.Provide(di, similarity.NewClient)
	do.Provide(di, telegram.NewClient)
	do.Provide(di, storage.New)
	do.Provide(di, queue.New)
	do.Provide(di, intent.New)
	do.Provide(di, weather.New)
	do.Provide(di, conversation.New)
	do.Provide(di, engine.New)
	do.Provide(di, janitor.New)
	do.Provide(di, httpapi.New)
	do.Provide(di, mcpserver.New)

	if err = do.MustInvoke[*janitor.Service](di).Start(); err != nil {
		log.Fatalf("janitor start failed: %v", err)
	}
	do.MustInvoke[*httpapi.Service](di).Start()
	do.MustInvoke[*mcpserver.Service](di).Start()

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	go func() {
		if err := do.MustInvoke[*engine.Service](di).Run(appCtx); err != nil {
			slog.Error("Engine stopped", "error", err)
		}
		cancel()
	}()

	<-appCtx.Done()
}
