package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		sessions, err := s.ListSessions(historyLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		gray := color.New(color.FgHiBlack).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		if len(sessions) == 0 {
			fmt.Fprintln(out, gray("No sessions recorded"))
			return nil
		}

		for _, sess := range sessions {
			state := yellow("running")
			duration := time.Since(sess.StartedAt)
			if sess.EndedAt != nil {
				state = "ended"
				duration = sess.EndedAt.Sub(sess.StartedAt)
			}

			emergencies, err := s.ListEmergencies(sess.ID)
			if err != nil {
				return err
			}
			counts, err := s.InefficiencyCounts(sess.ID)
			if err != nil {
				return err
			}
			var injected int64
			for _, n := range counts {
				injected += n
			}

			quest := sess.Quest
			if quest == "" {
				quest = "-"
			}
			fmt.Fprintf(out, "%s  %-12s %-24s %s ticks  %s  %s  %s\n",
				gray(sess.ID[:8]),
				sess.Agent,
				quest,
				humanize.Comma(sess.Ticks),
				state,
				red(fmt.Sprintf("%d emergencies", len(emergencies))),
				gray(fmt.Sprintf("%d inefficiencies, %s, %s", injected, duration.Round(time.Second), humanize.Time(sess.StartedAt))),
			)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of sessions to show")
}
