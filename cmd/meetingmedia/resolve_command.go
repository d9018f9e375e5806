package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"meetingmedia/internal/mediasync"
	"meetingmedia/internal/medialinks"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var (
		ref  medialinks.Reference
		lang string
	)

	cmd := &cobra.Command{
		Use:   "resolve [pub]",
		Short: "Resolve a publication reference to downloadable files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				ref.Pub = strings.TrimSpace(args[0])
			}
			if ref.Pub == "" && ref.DocID == 0 {
				return fmt.Errorf("a publication symbol or --docid is required")
			}
			preferred := cfg.Media.Language
			if strings.TrimSpace(lang) != "" {
				preferred = strings.TrimSpace(lang)
			}
			ref.FileFormat = strings.ToUpper(strings.TrimSpace(ref.FileFormat))

			resolver, err := mediasync.NewResolver(cfg, ctx.log())
			if err != nil {
				return err
			}
			files, err := resolver.Resolve(cmd.Context(), ref, preferred, cfg.Media.FallbackLanguage)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintf(out, "No media found for %s\n", ref)
				return nil
			}
			rows := make([][]string, 0, len(files))
			for _, f := range files {
				rows = append(rows, []string{
					f.Title,
					f.Lang,
					f.Label,
					sizeLabel(f.Size),
					yesNo(f.SubtitleURL != ""),
					f.URL,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Title", "Lang", "Label", "Size", "Subtitles", "URL"},
				rows,
				alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&ref.Issue, "issue", "", "Issue tag (YYYYMM or YYYYMMDD)")
	cmd.Flags().IntVar(&ref.Track, "track", 0, "Track number")
	cmd.Flags().IntVar(&ref.DocID, "docid", 0, "Document id")
	cmd.Flags().StringVar(&ref.FileFormat, "format", "", "File format (MP4, MP3, JWPUB)")
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Language symbol (default from config)")
	return cmd
}
