package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	var (
		prune bool
		list  bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Load markdown and text files into the local knowledge base",
		Long: "Walks dir and stores every .md, .markdown and .txt file as searchable chunks. " +
			"Unchanged files are skipped. With --list and no dir, only prints the stored documents.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !list {
				return fmt.Errorf("a directory is required unless --list is set")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			kb, err := openKnowledge(cfg, log)
			if err != nil {
				return err
			}
			defer kb.db.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				dir := args[0]
				rep, err := kb.Ingest(ctx, dir)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Ingested %d file(s): %d updated, %d unchanged, %d chunk(s) written\n",
					rep.Files, rep.Updated, rep.Unchanged, rep.Chunks)

				if prune {
					n, err := kb.Prune(ctx, dir)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Pruned %d document(s) no longer under %s\n", n, dir)
				}
			}

			if list {
				docs, err := kb.Documents(ctx)
				if err != nil {
					return err
				}
				for _, d := range docs {
					fmt.Fprintf(out, "  %-40s %3d chunk(s)  %s\n", d.Source, d.Chunks, d.Title)
				}
			}

			docs, chunks, err := kb.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Knowledge base: %d document(s), %d chunk(s)\n", docs, chunks)
			return nil
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "delete documents whose file is gone from dir")
	cmd.Flags().BoolVar(&list, "list", false, "print the stored documents")
	return cmd
}
