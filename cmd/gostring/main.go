/*
 * main.go, part of gostring
 *
 * Copyright 2024 Raul Mera Adasme <rauldotmeraatusachdotcl>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

// gostring finds reaction paths and transition states with the growing string method.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose    bool
	devLog     bool
	configFile string
	output     string
	restart    string
	rtype      int
	nodes      int
	driving    []string
	plotKeep   int

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gostring",
	Short: "Reaction paths and transition states with the growing string method",
	Long: `gostring grows a string of nodes between a reactant and a product
(double-ended) or from a reactant along driving coordinates (single-ended),
optimizes it, and climbs the highest node to the transition state.

Settings are read from a YAML file (--config), flags take precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = newLogger(verbose, devLog)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var deCmd = &cobra.Command{
	Use:   "de reactant.xyz product.xyz",
	Short: "Double-ended string between two minima",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runString(cmd, args[0], args[1])
	},
}

var seCmd = &cobra.Command{
	Use:   "se reactant.xyz",
	Short: "Single-ended string along driving coordinates",
	Long: `Grows a string from the reactant along driving coordinates, given with
--driving or in the config file, for instance:

  gostring se reactant.xyz -d "ADD 1 3" -d "BREAK 1 2"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runString(cmd, args[0], "")
	},
}

var plotCmd = &cobra.Command{
	Use:   "plot path.stf [profile.png]",
	Short: "Plot the energy profiles stored in a snapshot file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := args[0] + ".png"
		if len(args) == 2 {
			out = args[1]
		}
		if err := plotFile(args[0], out, "Energy profile", plotKeep); err != nil {
			return err
		}
		logger.Info("profile written", zap.String("file", out))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().BoolVar(&devLog, "dev", false, "human-readable development logs")

	for _, c := range []*cobra.Command{deCmd, seCmd} {
		c.Flags().StringVarP(&configFile, "config", "c", "", "YAML run file")
		c.Flags().StringVarP(&output, "output", "o", "", "prefix for the output files")
		c.Flags().StringVar(&restart, "restart", "", "restart from a path (xyz) or the last snapshot of a stf file")
		c.Flags().IntVarP(&rtype, "rtype", "r", 1, "0: no climbing, 1: climbing image, 2: climb and exact TS search")
		c.Flags().IntVarP(&nodes, "nodes", "n", 0, "number of nodes")
		rootCmd.AddCommand(c)
	}
	seCmd.Flags().StringArrayVarP(&driving, "driving", "d", nil, "driving coordinate, for instance \"ADD 1 3 1.2\"")
	plotCmd.Flags().IntVarP(&plotKeep, "keep", "k", 5, "maximum number of profiles to plot, 0 for all")
	rootCmd.AddCommand(plotCmd)
}

func newLogger(verbose, dev bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if dev {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

// configure loads the config file and applies the flags that were set.
func configure(cmd *cobra.Command) (*Config, error) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	if f.Changed("output") {
		cfg.Output = output
	}
	if f.Changed("restart") {
		cfg.Restart = restart
	}
	if f.Changed("rtype") {
		cfg.Rtype = rtype
	}
	if f.Changed("nodes") {
		cfg.GSM.Nodes = nodes
	}
	if f.Lookup("driving") != nil && f.Changed("driving") {
		cfg.Driving = driving
	}
	return cfg, cfg.Validate()
}

func runString(cmd *cobra.Command, reactant, product string) error {
	cfg, err := configure(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRunner(cfg, logger).run(ctx, reactant, product)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
