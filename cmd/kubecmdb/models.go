package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kubecmdb/internal/loader"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage model attribute schemas",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Write the model schemas (models.path or built-in) into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			ids, err := repo.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d models: %v\n", len(ids), ids)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Print the built-in model schemas as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := loader.ExportYAML(loader.DefaultModels())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}
