package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hsipatch/pkg/config"
	"hsipatch/pkg/npy"
	"hsipatch/pkg/pipeerr"
	"hsipatch/pkg/pipeline"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := newRootCmd(log).ExecuteContext(context.Background()); err != nil {
		log.WithFields(logrus.Fields{
			"stage": pipeerr.StageOf(err),
			"kind":  pipeerr.KindOf(err).String(),
		}).Error(err)
		os.Exit(1)
	}
}

func newRootCmd(log *logrus.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "hsipatch",
		Short:         "Turn a labeled hyperspectral scene into classifier patches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "hsipatch.yaml", "Path of the YAML configuration file")

	root.AddCommand(newRunCmd(log), newConfigCmd(log), newInspectCmd())
	return root
}

func newRunCmd(log *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Resample, normalize, pad and cut the scene into patches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return pipeerr.Wrap("config", pipeerr.Config, err)
			}
			if err := applyFlags(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if cfg.Output.Verbose {
				log.SetLevel(logrus.DebugLevel)
			}

			log.Info("================================")
			log.Info("HYPERSPECTRAL PATCH PREPROCESSING")
			log.Info("================================")
			log.WithFields(logrus.Fields{
				"config":    configPath,
				"patchSize": cfg.Patch.Size,
				"convDim":   cfg.Patch.ConvDim,
				"cores":     cfg.Processing.NumCores,
			}).Info("Starting")

			p := pipeline.NewPipeline(pipeline.ParamsFromConfig(cfg), log)
			start := time.Now()
			if err := p.Process(cmd.Context()); err != nil {
				return err
			}

			summary := p.GetSummary()
			log.WithFields(logrus.Fields{
				"elapsed":    time.Since(start).Round(time.Millisecond),
				"input":      fmt.Sprint(summary.InputShape),
				"scaled":     fmt.Sprint(summary.ScaledShape),
				"padded":     fmt.Sprint(summary.PaddedShape),
				"patches":    summary.PatchCount,
				"labels":     summary.LabelCount,
				"patchFiles": strings.Join(summary.PatchFiles, ","),
			}).Info("Preprocessing completed")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Int("cores", 0, "Number of CPU cores to use (default from config)")
	flags.Int("patch-size", 0, "Patch edge length in pixels, must be even")
	flags.Int("conv-dim", 0, "Dimensionality of the downstream convolution (2 or 3)")
	flags.Int("chunk-size", 0, "Split patch output into files of at most this many patches")
	flags.Bool("verbose", false, "Enable debug logging")
	flags.Bool("no-heatmap", false, "Skip rendering the padded cube heatmap")
	flags.Bool("no-scaled", false, "Skip saving the scaled cube")
	return cmd
}

// applyFlags overrides config values with flags set on the command line
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	ints := map[string]*int{
		"cores":      &cfg.Processing.NumCores,
		"patch-size": &cfg.Patch.Size,
		"conv-dim":   &cfg.Patch.ConvDim,
		"chunk-size": &cfg.Patch.ChunkSize,
	}
	for name, dst := range ints {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return pipeerr.Wrap("config", pipeerr.Config, err)
		}
		*dst = v
	}

	if flags.Changed("verbose") {
		cfg.Output.Verbose, _ = flags.GetBool("verbose")
	}
	if skip, _ := flags.GetBool("no-heatmap"); skip {
		cfg.Output.RenderHeatmap = false
	}
	if skip, _ := flags.GetBool("no-scaled"); skip {
		cfg.Output.SaveScaled = false
	}
	return nil
}

func newConfigCmd(log *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with default values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.CreateDefaultConfigFile(path); err != nil {
				return err
			}
			log.WithField("path", path).Info("Wrote default configuration")
			return nil
		},
	})
	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect file.npy [file.npy...]",
		Short: "Print the dtype and shape of .npy files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, path := range args {
				info, err := npy.Stat(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%s\t%v\n", path, info.Descr, info.Shape)
			}
			return nil
		},
	}
}
