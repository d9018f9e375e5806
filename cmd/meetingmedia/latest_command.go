package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"meetingmedia/internal/config"
	"meetingmedia/internal/mediasync"
	"meetingmedia/internal/mediator"
)

func newLatestCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "List recently published videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := mediasync.NewMediator(cfg)
			if err != nil {
				return err
			}
			category, err := client.Category(cmd.Context(), cfg.Media.Language, mediator.LatestVideos)
			if err != nil {
				return err
			}
			maxRes, err := config.ParseResolution(cfg.Media.MaxResolution)
			if err != nil {
				return err
			}

			var rows [][]string
			for _, item := range category.Media {
				if limit > 0 && len(rows) >= limit {
					break
				}
				label, size := "-", "-"
				if file, ok := item.BestFile(maxRes, cfg.Media.Language); ok {
					label, size = file.Label, sizeLabel(file.Size)
				}
				rows = append(rows, []string{
					publishedLabel(item.FirstPublished),
					item.Title,
					(time.Duration(item.Duration) * time.Second).String(),
					label,
					size,
				})
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No recent videos")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Published", "Title", "Duration", "Quality", "Size"},
				rows,
				alignLeft, alignLeft, alignRight, alignLeft, alignRight,
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of videos to list (0 for all)")
	return cmd
}

func publishedLabel(value string) string {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Local().Format(dateFlagLayout)
	}
	if len(value) >= len(dateFlagLayout) {
		return value[:len(dateFlagLayout)]
	}
	if value == "" {
		return "-"
	}
	return value
}

func newLanguagesCommand(ctx *commandContext) *cobra.Command {
	var (
		signOnly bool
		filter   string
	)

	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List available media languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := mediasync.NewMediator(cfg)
			if err != nil {
				return err
			}
			langs, err := client.Languages(cmd.Context(), "E")
			if err != nil {
				return err
			}
			needle := strings.ToLower(strings.TrimSpace(filter))

			var rows [][]string
			for _, l := range langs {
				if signOnly && !l.IsSignLanguage {
					continue
				}
				if needle != "" && !strings.Contains(strings.ToLower(l.Name+" "+l.Vernacular+" "+l.Code), needle) {
					continue
				}
				current := ""
				if strings.EqualFold(l.Code, cfg.Media.Language) {
					current = "*"
				}
				rows = append(rows, []string{current, l.Code, l.Locale, l.Name, l.Vernacular, yesNo(l.IsSignLanguage)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"", "Code", "Locale", "Name", "Vernacular", "Sign"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&signOnly, "sign", false, "Only list sign languages")
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Substring to match against names and codes")
	return cmd
}
