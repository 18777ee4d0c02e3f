package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xonecas/zoea-pilot/internal/config"
	"github.com/xonecas/zoea-pilot/internal/core"
	"github.com/xonecas/zoea-pilot/internal/env"
	"github.com/xonecas/zoea-pilot/internal/journal"
	"github.com/xonecas/zoea-pilot/internal/quest"
	"github.com/xonecas/zoea-pilot/internal/store"
	"github.com/xonecas/zoea-pilot/internal/tui"
)

var headless bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the environment and pilot the agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := initLogging(debug); err != nil {
			return err
		}
		log.Info().Str("version", Version).Str("agent", cfg.Env.AgentName).Msg("Starting Zoea Pilot")
		log.Debug().Interface("config", cfg).Msg("Configuration loaded")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	},
}

func init() {
	runCmd.Flags().BoolVar(&headless, "headless", false, "Run without the dashboard")
}

func run(ctx context.Context, cfg *config.Config) error {
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	bus := core.NewEventBus(1000)
	defer bus.Close()

	opts := []core.Option{core.WithStore(s), core.WithBus(bus)}
	if cfg.Journal.Enabled {
		jw, err := openJournal(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := jw.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close journal")
			}
		}()
		opts = append(opts, core.WithJournal(jw))
	}

	pilot := core.NewPilot(cfg, nil, opts...)

	if cfg.Quests.Active != "" {
		doc, err := findQuest(cfg)
		if err != nil {
			return err
		}
		if err := pilot.StartQuestDocument(doc); err != nil {
			return fmt.Errorf("start quest: %w", err)
		}
	}

	client, err := env.Dial(ctx, cfg.Env.URL, cfg.Env.AgentName)
	if err != nil {
		return err
	}
	defer client.Close()
	pilot.SetSender(client)
	log.Info().Str("agent_id", client.AgentID()).Str("url", cfg.Env.URL).Msg("Connected to environment")

	if _, err := pilot.StartSession(cfg.Quests.Active); err != nil {
		return err
	}
	defer func() {
		if err := pilot.EndSession(pilot.Status().Tick); err != nil {
			log.Warn().Err(err).Msg("Failed to end session")
		}
	}()

	if _, err := os.Stat(configPath); err == nil {
		w, err := config.Watch(configPath, pilot.ApplyConfig)
		if err != nil {
			log.Warn().Err(err).Msg("Config hot reload unavailable")
		} else {
			defer w.Close()
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	var program *tea.Program
	if headless {
		go logEvents(bus.Subscribe(core.EventEmergency, core.EventEmergencyDone,
			core.EventRandomEvent, core.EventQuestChanged, core.EventAdmin))
	} else {
		program = tea.NewProgram(tui.New(pilot, bus.Subscribe()), tea.WithAltScreen())
	}

	g.Go(func() error {
		err := pilot.Run(gctx, client.Observations())
		if err == nil {
			// Observation stream closed by the environment.
			err = client.Err()
		}
		if program != nil {
			program.Quit()
		}
		return err
	})

	if program != nil {
		g.Go(func() error {
			_, err := program.Run()
			cancel()
			return err
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info().Int64("tick", pilot.Status().Tick).Msg("Zoea Pilot shutdown complete")
	return err
}

// logEvents mirrors notable pilot events into the log until the bus closes.
func logEvents(events <-chan core.Event) {
	for e := range events {
		entry, ok := tui.LogEntryFromEvent(e)
		if !ok {
			continue
		}
		log.Info().Int64("tick", e.Tick).Str("kind", entry.Kind).Msg(entry.Text)
	}
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Store.Path != "" {
		return store.Open(cfg.Store.Path)
	}
	return store.New()
}

func openJournal(cfg *config.Config) (*journal.Writer, error) {
	dir := cfg.Journal.Dir
	if dir == "" {
		dataDir, err := config.EnsureDataDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(dataDir, "journal")
	}
	return journal.NewWriter(dir), nil
}

func questDir(cfg *config.Config) string {
	if cfg.Quests.Dir != "" {
		return cfg.Quests.Dir
	}
	return "quests"
}

func findQuest(cfg *config.Config) (*quest.Document, error) {
	docs, err := quest.NewOsLoader(questDir(cfg)).LoadAll()
	if err != nil {
		return nil, err
	}
	doc, ok := quest.Find(docs, cfg.Quests.Active)
	if !ok {
		return nil, fmt.Errorf("quest %q not found in %s", cfg.Quests.Active, questDir(cfg))
	}
	return doc, nil
}
