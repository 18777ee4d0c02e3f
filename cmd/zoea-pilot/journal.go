package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xonecas/zoea-pilot/internal/journal"
)

var journalKind string

var journalCmd = &cobra.Command{
	Use:   "journal <file.jsonl.zst>...",
	Short: "Print journal entries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		gray := color.New(color.FgHiBlack).SprintFunc()
		kindColor := map[string]func(a ...interface{}) string{
			journal.KindEmergency:   color.New(color.FgRed, color.Bold).SprintFunc(),
			journal.KindRandomEvent: color.New(color.FgYellow).SprintFunc(),
			journal.KindQuest:       color.New(color.FgGreen).SprintFunc(),
			journal.KindSession:     color.New(color.FgCyan, color.Bold).SprintFunc(),
		}

		for _, path := range args {
			entries, err := journal.ReadFile(path)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if journalKind != "" && e.Kind != journalKind {
					continue
				}
				paint, ok := kindColor[e.Kind]
				if !ok {
					paint = fmt.Sprint
				}
				fmt.Fprintf(out, "%s T%-7d %-13s %s\n",
					gray(e.Time.Local().Format("15:04:05")), e.Tick, paint(e.Kind), strings.Join(journal.Flatten(e.Data), " "))
			}
		}
		return nil
	},
}

func init() {
	journalCmd.Flags().StringVarP(&journalKind, "kind", "k", "", "Only show entries of this kind")
}
