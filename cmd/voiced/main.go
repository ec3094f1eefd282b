package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/samber/do/v2"

	assistantimpl "github.com/brightclass/voicesession/external/assistant"
	audioimpl "github.com/brightclass/voicesession/external/audio"
	capabilityimpl "github.com/brightclass/voicesession/external/capability"
	configloader "github.com/brightclass/voicesession/external/config"
	playbackimpl "github.com/brightclass/voicesession/external/playback"
	"github.com/brightclass/voicesession/external/provider/assemblyai"
	"github.com/brightclass/voicesession/external/provider/deepgram"
	"github.com/brightclass/voicesession/external/provider/googlespeech"
	repositoryimpl "github.com/brightclass/voicesession/external/repository"
	"github.com/brightclass/voicesession/internal/config"
	"github.com/brightclass/voicesession/internal/controller"
	"github.com/brightclass/voicesession/internal/provider"
	"github.com/brightclass/voicesession/internal/repository"
	"github.com/brightclass/voicesession/internal/stream"
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "language", cfg.Language)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	runLoop(injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	repository.RegisterDI(injector)
	capabilityimpl.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	googlespeech.RegisterDI(injector)
	deepgram.RegisterDI(injector)
	assemblyai.RegisterDI(injector)
	assistantimpl.RegisterDI(injector)
	playbackimpl.RegisterDI(injector)
	stream.RegisterDI(injector)
	controller.RegisterDI(injector)

	do.Provide(injector, func(i do.Injector) (stream.Registry, error) {
		return stream.Registry{
			provider.IDGoogleSpeech: do.MustInvoke[*googlespeech.Provider](i),
			provider.IDDeepgram:     do.MustInvoke[*deepgram.Provider](i),
			provider.IDAssemblyAI:   do.MustInvoke[*assemblyai.Provider](i),
		}, nil
	})
	do.Provide(injector, func(i do.Injector) (controller.EventSink, error) {
		return &consoleSink{}, nil
	})

	return injector
}

func runLoop(injector do.Injector) {
	ctrl, err := do.Invoke[*controller.Controller](injector)
	if err != nil {
		slog.Error("failed to resolve voice controller", "error", err)
		os.Exit(1)
	}
	defer ctrl.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	fmt.Println("commands: start | lock | release | cancel | interrupt | quit")
	for {
		select {
		case <-sigCh:
			slog.Info("shutting down")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			switch line {
			case "start":
				ctrl.StartPress(context.Background())
			case "lock":
				ctrl.Lock()
			case "release":
				if err := ctrl.Release(context.Background()); err != nil {
					slog.Error("assistant exchange failed", "error", err)
				}
			case "cancel":
				ctrl.Cancel()
			case "interrupt":
				ctrl.Interrupt()
			case "quit", "exit":
				return
			case "":
			default:
				fmt.Printf("unknown command: %s\n", line)
			}
		}
	}
}

// consoleSink renders controller events for the interactive terminal.
type consoleSink struct {
	lastSecond int64
}

func (s *consoleSink) StateChanged(state controller.State) {
	fmt.Printf("[state] %s\n", state)
}

func (s *consoleSink) PartialTranscript(text string) {
	fmt.Printf("[partial] %s\n", text)
}

func (s *consoleSink) AssistantReply(text string) {
	fmt.Printf("[assistant] %s\n", text)
}

func (s *consoleSink) Tick(elapsed time.Duration) {
	// Rendering every tick would flood a line-based terminal; only whole
	// seconds are interesting here.
	sec := int64(elapsed / time.Second)
	if sec == s.lastSecond {
		return
	}
	s.lastSecond = sec
	fmt.Printf("[elapsed] %ds\n", sec)
}
