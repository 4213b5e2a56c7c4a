package main

import (
	"MultiView/config"
	"MultiView/i18n"
	"MultiView/ui"
	"context"
	"embed"
	"log/slog"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"golang.org/x/sync/errgroup"
)

//go:embed assets/*
var content embed.FS

func main() {
	cfg, cfgErr := config.Load(content)
	if cfgErr != nil {
		cfg, _ = config.Parse(nil)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	if cfgErr != nil {
		logger.Error("invalid configuration, using built-in defaults", "err", cfgErr)
	}
	if cfg.Lang != "" {
		i18n.SetLang(cfg.Lang)
	}

	fyneApp := app.New()

	if iconBytes, err := content.ReadFile("assets/icon.png"); err == nil {
		fyneApp.SetIcon(fyne.NewStaticResource("icon.png", iconBytes))
	} else {
		logger.Debug("no application icon", "err", err)
	}
	fyneApp.Settings().SetTheme(ui.NewCustomTheme(
		optionalResource("assets/Quicksand-Medium.ttf"),
		optionalResource("assets/Quicksand-Bold.ttf"),
	))

	a := NewAppManager(content, cfg, fyneApp, logger)

	w := ui.CreateMainWindow(a, fyneApp, a.bar, a.grid)
	a.mainWindow = w

	ctx, cancel := context.WithCancel(context.Background())
	w.SetOnClosed(func() {
		cancel()
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.tick(gctx)
		return nil
	})
	if a.hub != nil {
		g.Go(func() error { return a.Serve(gctx) })
	}

	w.ShowAndRun()

	cancel()
	a.Shutdown()
	if err := g.Wait(); err != nil {
		logger.Error("shutdown", "err", err)
	}
}

func optionalResource(name string) fyne.Resource {
	data, err := content.ReadFile(name)
	if err != nil {
		return nil
	}
	return fyne.NewStaticResource(name, data)
}
