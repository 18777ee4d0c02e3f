package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xonecas/zoea-pilot/internal/config"
	"github.com/xonecas/zoea-pilot/internal/quest"
)

var validateCmd = &cobra.Command{
	Use:   "validate [quest files...]",
	Short: "Validate the config and quest documents",
	Long: `Check the config file and every quest document against their schemas.
With no arguments, all quests in the configured quest directory are checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()

		out := cmd.OutOrStdout()
		failed := 0

		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", red("✗"), configPath, err)
			cfg = config.DefaultConfig()
			failed++
		} else {
			fmt.Fprintf(out, "%s %s\n", green("✓"), configPath)
		}

		loader := quest.NewOsLoader(questDir(cfg))
		var docs []*quest.Document
		if len(args) == 0 {
			docs, err = loader.LoadAll()
			if err != nil {
				fmt.Fprintf(out, "%s %s: %v\n", red("✗"), questDir(cfg), err)
				return fmt.Errorf("validation failed")
			}
		} else {
			for _, path := range args {
				doc, err := loader.LoadFile(path)
				if err != nil {
					fmt.Fprintf(out, "%s %s: %v\n", red("✗"), path, err)
					failed++
					continue
				}
				docs = append(docs, doc)
			}
		}

		for _, doc := range docs {
			fmt.Fprintf(out, "%s %s %s\n", green("✓"), cyan(doc.Name),
				gray(fmt.Sprintf("(%s, %d steps)", doc.Path, len(doc.Steps))))
		}

		if failed > 0 {
			return fmt.Errorf("%d file(s) failed validation", failed)
		}
		return nil
	},
}
