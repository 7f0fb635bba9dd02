package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ekisa-team/swapface/internal/config"
	"github.com/ekisa-team/swapface/internal/config/source"
	"github.com/ekisa-team/swapface/internal/model"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect and manage swapper model files",
}

var modelsLocateCmd = &cobra.Command{
	Use:   "locate [variant...]",
	Short: "Print where each variant is found",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, variants, err := modelsStore(cmd, args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, v := range variants {
			path, err := store.Locate(v)
			if err != nil {
				fmt.Fprintf(out, "%s\tnot found\n", v)
				for _, c := range store.Candidates(v) {
					fmt.Fprintf(out, "\t  searched %s\n", c)
				}
				continue
			}
			fmt.Fprintf(out, "%s\t%s\n", v, path)
		}
		return nil
	},
}

var modelsValidateCmd = &cobra.Command{
	Use:   "validate [variant...]",
	Short: "Check that each located variant is a readable model",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, variants, err := modelsStore(cmd, args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, v := range variants {
			path, err := store.Locate(v)
			if err != nil {
				fmt.Fprintf(out, "%s\tnot found\n", v)
				continue
			}
			if err := store.Validate(path); err != nil {
				failed++
				fmt.Fprintf(out, "%s\tinvalid\t%v\n", v, err)
				continue
			}
			fmt.Fprintf(out, "%s\tok\t%s\n", v, path)
		}

		if failed > 0 {
			return fmt.Errorf("%d variant(s) failed validation, run 'swapface models repair'", failed)
		}
		return nil
	},
}

var modelsRepairCmd = &cobra.Command{
	Use:   "repair [variant...]",
	Short: "Back up and remove variants from every search location",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, variants, err := modelsStore(cmd, args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		var errs []error
		for _, v := range variants {
			path, _ := store.Locate(v)
			report, err := store.Repair(v, path)
			if report.Backup != "" {
				fmt.Fprintf(out, "%s\tbacked up to %s\n", v, report.Backup)
			}
			for _, r := range report.Removed {
				fmt.Fprintf(out, "%s\tremoved %s\n", v, r)
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if len(report.Removed) == 0 && report.Backup == "" {
				fmt.Fprintf(out, "%s\tnothing to repair\n", v)
			}
		}
		return errors.Join(errs...)
	},
}

var modelsFetchForce bool

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch [variant...]",
	Short: "Download variants into the model cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		progress := source.WithProgress(func(variant string, total int64) io.Writer {
			return progressbar.DefaultBytes(total, "downloading "+variant)
		})

		store, variants, err := modelsStore(cmd, args, progress)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, v := range variants {
			if !modelsFetchForce {
				if path, err := store.Locate(v); err == nil && store.Validate(path) == nil {
					fmt.Fprintf(out, "%s\tpresent\t%s\n", v, path)
					continue
				}
			}

			path, err := store.Fetch(cmd.Context(), v)
			if err != nil {
				return err
			}
			if err := store.Validate(path); err != nil {
				return fmt.Errorf("downloaded %s is not a valid model: %w", v, err)
			}
			fmt.Fprintf(out, "%s\tfetched\t%s\n", v, path)
		}
		return nil
	},
}

func modelsStore(cmd *cobra.Command, args []string, opts ...source.Option) (*model.Store, []string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	store, _ := newStore(cfg, opts...)
	return store, variantsOf(cfg, args), nil
}

func variantsOf(cfg *config.Config, args []string) []string {
	if len(args) > 0 {
		return args
	}
	return cfg.Models.Variants
}

func init() {
	modelsFetchCmd.Flags().BoolVar(&modelsFetchForce, "force", false, "Download even when a valid copy exists")

	modelsCmd.AddCommand(modelsLocateCmd, modelsValidateCmd, modelsRepairCmd, modelsFetchCmd)
	rootCmd.AddCommand(modelsCmd)
}
