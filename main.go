package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dmorgan81/text2img/internal/config"
	"github.com/dmorgan81/text2img/internal/inject"
	"github.com/dmorgan81/text2img/internal/log"
	"github.com/dmorgan81/text2img/internal/ui"
	"github.com/samber/do"
	"github.com/samber/lo"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	path := lo.Ternary(os.Getenv("TEXT2IMG_CONFIG") != "", os.Getenv("TEXT2IMG_CONFIG"), "config.yaml")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	// the terminal belongs to the UI, so logs only go to a file when asked
	var w io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		w = f
	}

	ctx := log.NewContext(context.Background(), log.New(w, log.ParseLevel(cfg.LogLevel)))
	injector := inject.Setup(ctx, cfg)
	defer func() {
		_ = injector.Shutdown()
	}()

	app, err := do.Invoke[*ui.App](injector)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
