package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/kommissarhq/kommissar/internal/alias"
	"github.com/kommissarhq/kommissar/internal/bot"
	"github.com/kommissarhq/kommissar/internal/chat"
	"github.com/kommissarhq/kommissar/internal/config"
	"github.com/kommissarhq/kommissar/internal/gate"
	"github.com/kommissarhq/kommissar/internal/handlers"
	"github.com/kommissarhq/kommissar/internal/kvstore"
	"github.com/kommissarhq/kommissar/internal/logger"
	"github.com/kommissarhq/kommissar/internal/memory"
	"github.com/kommissarhq/kommissar/internal/moderation"
	"github.com/kommissarhq/kommissar/internal/persona"
	"github.com/kommissarhq/kommissar/internal/server"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideRand,
			provideMemoryDoc,
			provideAliasDoc,
			provideFlagsDoc,
			provideMemoryStore,
			provideAliasStore,
			provideManual,
			provideGenerator,
			provideComposer,
			provideRenamer,
			provideMachine,
			provideGate,
			provideDiscordSession,
			provideBot,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewManualHandler),
			provideServerHandler(handlers.NewFlagsHandler),
			fx.Annotate(provideServer, fx.ParamTags(``, ``, `group:"server_handlers"`)),
		),
		fx.Invoke(
			startBot,
			startSweep,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

// processRand adapts the process-wide math/rand source, which is safe for
// concurrent use, to the narrow interfaces the components declare.
type processRand struct{}

func (processRand) Float64() float64 { return rand.Float64() }
func (processRand) Intn(n int) int   { return rand.Intn(n) }

func provideRand() processRand { return processRand{} }

func provideMemoryDoc(log *slog.Logger, cfg config.Config) *kvstore.Document[map[string][]memory.Turn] {
	return kvstore.NewDocument[map[string][]memory.Turn](log, cfg.Storage.DataDir, "memory.json")
}

func provideAliasDoc(log *slog.Logger, cfg config.Config) *kvstore.Document[map[string]string] {
	return kvstore.NewDocument[map[string]string](log, cfg.Storage.DataDir, "aliases.json")
}

func provideFlagsDoc(log *slog.Logger, cfg config.Config) *kvstore.Document[map[string]moderation.Flag] {
	return kvstore.NewDocument[map[string]moderation.Flag](log, cfg.Storage.DataDir, "flags.json")
}

func provideMemoryStore(log *slog.Logger, cfg config.Config, doc *kvstore.Document[map[string][]memory.Turn]) *memory.Store {
	return memory.NewStore(log, doc, cfg.Memory.MaxEntries)
}

func provideAliasStore(log *slog.Logger, doc *kvstore.Document[map[string]string]) *alias.Store {
	return alias.NewStore(log, doc)
}

func provideManual(log *slog.Logger, cfg config.Config) *persona.ManualLog {
	return persona.NewManualLog(log, cfg.Generation.ManualPath)
}

func provideGenerator(log *slog.Logger, cfg config.Config) chat.Generator {
	gen := cfg.Generation
	return chat.NewGeminiClient(log, gen.APIKey, gen.BaseURL, gen.Model, time.Duration(gen.TimeoutSeconds)*time.Second)
}

func provideComposer(log *slog.Logger, cfg config.Config, manual *persona.ManualLog, mem *memory.Store, gen chat.Generator, rnd processRand) *persona.Composer {
	return persona.NewComposer(log, manual, mem, gen, rnd, cfg.Memory.MaxEntries)
}

func provideRenamer(log *slog.Logger) *bot.GuildRenamer {
	return bot.NewGuildRenamer(log)
}

func provideMachine(log *slog.Logger, cfg config.Config, doc *kvstore.Document[map[string]moderation.Flag], renamer *bot.GuildRenamer, rnd processRand) *moderation.Machine {
	return moderation.NewMachine(log, doc, renamer, rnd, cfg.Moderation.FlagProbability, cfg.Moderation.MinTriggerRunes)
}

func provideGate(cfg config.Config, rnd processRand) *gate.Gate {
	return gate.New(rnd, cfg.Gate.ChimeProbability, cfg.Gate.MinChimeRunes, time.Duration(cfg.Gate.CooldownSeconds)*time.Second)
}

func provideDiscordSession(cfg config.Config) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return session, nil
}

func provideBot(log *slog.Logger, cfg config.Config, session *discordgo.Session, renamer *bot.GuildRenamer, machine *moderation.Machine, g *gate.Gate, composer *persona.Composer, mem *memory.Store, aliases *alias.Store, manual *persona.ManualLog) *bot.Bot {
	return bot.New(log, session, renamer, machine, g, composer, mem, aliases, manual, cfg.Discord.OperatorID, cfg.Discord.CommandPrefix)
}

func provideServer(log *slog.Logger, cfg config.Config, hs []server.Handler) *server.Server {
	return server.New(log, cfg.Server.Addr, hs)
}

func startBot(lc fx.Lifecycle, b *bot.Bot) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return b.Start(ctx)
		},
		OnStop: func(context.Context) error {
			cancel()
			return b.Stop()
		},
	})
}

// startSweep re-applies assigned labels every minute so renames that
// failed earlier get another chance.
func startSweep(lc fx.Lifecycle, log *slog.Logger, machine *moderation.Machine) error {
	c := cron.New()
	if _, err := c.AddFunc("@every 1m", func() {
		machine.Sweep(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c.Start()
			log.Info("enforcement sweep scheduled")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopCtx := c.Stop()
			select {
			case <-stopCtx.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}

func startServer(lc fx.Lifecycle, log *slog.Logger, s *server.Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := s.Start(); err != nil && err != http.ErrServerClosed {
					log.Error("server stopped", slog.Any("error", err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.Shutdown(ctx)
		},
	})
}
