package main

import (
	"strings"

	"github.com/spf13/cobra"

	"kubecmdb/internal/codec"
	"kubecmdb/internal/service"
)

func newExportCmd() *cobra.Command {
	var (
		format    string
		source    string
		allSource bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the reconciled inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			exporter, err := codec.ForFormat(format)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			switch {
			case allSource:
				source = ""
			case source == "":
				source = cfg.Source
			}
			snap, err := service.NewInventoryService(repo).Snapshot(cmd.Context(), source)
			if err != nil {
				return err
			}
			return exporter.Export(snap, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: "+strings.Join(codec.Formats(), ", "))
	cmd.Flags().StringVar(&source, "source", "", "source to export (default: the configured source)")
	cmd.Flags().BoolVar(&allSource, "all", false, "export every source")
	return cmd
}
