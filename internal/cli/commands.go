package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/banshee-data/facemotion/internal/db"
	"github.com/banshee-data/facemotion/internal/facemesh/adapters"
	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
	"github.com/banshee-data/facemotion/internal/facemesh/l2align"
	"github.com/banshee-data/facemotion/internal/facemesh/l4colour"
	"github.com/banshee-data/facemotion/internal/facemesh/l5features"
	"github.com/banshee-data/facemotion/internal/facemesh/pipeline"
	"github.com/banshee-data/facemotion/internal/facemesh/report"
	"github.com/banshee-data/facemotion/internal/facemesh/storage/sqlite"
	"github.com/banshee-data/facemotion/internal/fsutil"
)

// sessionName is the recording's file name without its extension.
func sessionName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// siblingPath places name<suffix> next to the recording at path.
func siblingPath(path, suffix string) string {
	return filepath.Join(filepath.Dir(path), sessionName(path)+suffix)
}

func writeFile(fsys fsutil.FileSystem, path string, write func(io.Writer) error) (err error) {
	f, err := fsutil.CreateAll(fsys, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}

func printRunSummary(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "frames: %d\n", len(res.Frames))
	if len(res.Chain.Applied) > 0 {
		kinds := make([]string, len(res.Chain.Applied))
		for i, a := range res.Chain.Applied {
			kinds[i] = a.Kind
		}
		fmt.Fprintf(w, "filters: %s\n", strings.Join(kinds, ", "))
	}
	for _, err := range res.Chain.StepErrors {
		fmt.Fprintf(w, "skipped step: %v\n", err)
	}
	if a := res.Chain.Alignment; a != nil && a.Stats.Count > 0 {
		fmt.Fprintf(w, "rmsd: mean=%.6g std=%.6g min=%.6g max=%.6g over %d frames\n",
			a.Stats.Mean, a.Stats.Std, a.Stats.Min, a.Stats.Max, a.Stats.Count)
	}
	if len(res.Warnings) > 0 {
		fmt.Fprintf(w, "warnings: %d\n", len(res.Warnings))
	}
}

func newAlignCmd(root *Root) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "align <recording.csv>",
		Short: "Run the configured filter chain and write the filtered frames",
		Long: `Loads a recording, applies the depth scale and the configured filter chain
(alignment, smoothing, outlier removal...) and writes the resulting frames in
the recording format. Outlier removal changes per-frame landmark counts, which
the recording format cannot hold; such chains are rejected at write time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.sessionConfig()
			if err != nil {
				return err
			}
			cfg.Colour, cfg.Features = nil, nil

			s, err := adapters.LoadSessionFile(root.fsys, args[0])
			if err != nil {
				return err
			}
			res, err := pipeline.Run(cmd.Context(), s.Frames, cfg)
			if err != nil {
				return err
			}

			if output == "" {
				output = siblingPath(args[0], "_aligned.csv")
			}
			err = writeFile(root.fsys, output, func(w io.Writer) error {
				return adapters.WriteFramesCSV(w, res.Frames, s.Landmarks)
			})
			if err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			printRunSummary(cmd.OutOrStdout(), res)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output CSV (default <recording>_aligned.csv)")
	return cmd
}

// expandInputs turns the command's arguments into recording paths: .csv
// arguments are used as given, anything else is read as a directory.
func expandInputs(fsys fsutil.FileSystem, args []string) ([]string, error) {
	var paths []string
	for _, a := range args {
		if strings.EqualFold(filepath.Ext(a), ".csv") {
			paths = append(paths, a)
			continue
		}
		found, err := fsutil.FilesWithExt(fsys, a, ".csv")
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", a, err)
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, errors.New("no recordings found")
	}
	return paths, nil
}

func newFeaturesCmd(root *Root) *cobra.Command {
	var (
		outputDir string
		dbPath    string
	)

	cmd := &cobra.Command{
		Use:   "features <recording.csv|directory>...",
		Short: "Derive per-frame feature tables for training",
		Long: `Runs the full pipeline on each recording and writes one feature table per
recording to the output directory as <recording>_features.csv. Directories are
searched for .csv recordings. With --db every table is also stored, labelled
with the subject and test taken from the recording or its file name.
A failing recording is reported and the batch continues.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := root.pipelineConfig()
			if err != nil {
				return err
			}
			cfg, err := pipeline.ConfigFromPipeline(pc)
			if err != nil {
				return err
			}
			if cfg.Features == nil {
				return errors.New("no feature family is enabled in the configuration")
			}
			cfg.Colour = nil
			params, err := json.Marshal(pc)
			if err != nil {
				return err
			}

			paths, err := expandInputs(root.fsys, args)
			if err != nil {
				return err
			}

			var store *sqlite.FeatureStore
			if dbPath != "" {
				database, err := db.NewDB(dbPath)
				if err != nil {
					return err
				}
				defer database.Close()
				store = sqlite.NewFeatureStore(database.DB)
			}

			out := cmd.OutOrStdout()
			var failed []error
			for _, path := range paths {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				written, err := deriveOne(cmd, root.fsys, store, cfg, params, path, outputDir)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					failed = append(failed, fmt.Errorf("%s: %w", path, err))
					continue
				}
				fmt.Fprintf(out, "wrote %s\n", written)
			}
			fmt.Fprintf(out, "%d of %d recordings processed\n", len(paths)-len(failed), len(paths))
			return errors.Join(failed...)
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "features", "directory for feature tables")
	cmd.Flags().StringVar(&dbPath, "db", "", "also store the tables in this SQLite database")
	return cmd
}

func deriveOne(cmd *cobra.Command, fsys fsutil.FileSystem, store *sqlite.FeatureStore, cfg pipeline.Config, params []byte, path, outputDir string) (string, error) {
	s, err := adapters.LoadSessionFile(fsys, path)
	if err != nil {
		return "", err
	}
	base := filepath.Base(path)
	res, err := pipeline.Run(cmd.Context(), s.Frames, cfg.WithSource(base))
	if err != nil {
		return "", err
	}

	output := filepath.Join(outputDir, sessionName(path)+"_features.csv")
	if err := adapters.WriteFeatureFile(fsys, output, res.Features); err != nil {
		return "", err
	}

	if store != nil {
		labels := l5features.TrainingLabels(base)
		if s.Subject != "" {
			labels.Subject = s.Subject
		}
		if s.Test != "" {
			labels.Test = s.Test
		}
		run := &sqlite.Run{SourceFile: base, Subject: labels.Subject, Test: labels.Test, ParamsJSON: params}
		if err := store.SaveRun(cmd.Context(), run, res.Features, res.Frames); err != nil {
			return "", err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored run %s\n", run.RunID)
	}
	return output, nil
}

func newColourCmd(root *Root) *cobra.Command {
	var (
		output      string
		mode        string
		granularity string
	)

	cmd := &cobra.Command{
		Use:   "colour <recording.csv>",
		Short: "Colour landmarks by deviation from the resting baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.sessionConfig()
			if err != nil {
				return err
			}
			cfg.Features = nil
			switch mode {
			case "":
			case "sigma":
				cfg.Colour.Scale = l4colour.Sigma
			case "continuous":
				cfg.Colour.Scale = l4colour.Continuous
			default:
				return fmt.Errorf("unknown colour mode %q (want sigma|continuous)", mode)
			}
			switch granularity {
			case "":
			case "point":
				cfg.Colour.Granularity = l4colour.PerPoint
			case "cluster":
				cfg.Colour.Granularity = l4colour.PerCluster
			default:
				return fmt.Errorf("unknown granularity %q (want point|cluster)", granularity)
			}

			s, err := adapters.LoadSessionFile(root.fsys, args[0])
			if err != nil {
				return err
			}
			res, err := pipeline.Run(cmd.Context(), s.Frames, cfg)
			if err != nil {
				return err
			}
			if res.Colouring == nil {
				return errors.New("no baseline could be built, frames were not coloured")
			}

			out := cmd.OutOrStdout()
			printRunSummary(out, res)
			for _, tier := range colouredTierOrder {
				fmt.Fprintf(out, "%s: %d\n", tier, res.Colouring.TierCounts[tier])
			}

			if output == "" {
				output = siblingPath(args[0], "_deviation.html")
			}
			err = writeFile(root.fsys, output, func(w io.Writer) error {
				return report.DeviationPage(w, sessionName(args[0]), res.Colouring)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output HTML (default <recording>_deviation.html)")
	cmd.Flags().StringVar(&mode, "mode", "", "colour scale (sigma|continuous), overrides config")
	cmd.Flags().StringVar(&granularity, "granularity", "", "deviation granularity (point|cluster), overrides config")
	return cmd
}

var colouredTierOrder = []l4colour.Tier{l4colour.TierWithin1, l4colour.TierBetween1And3, l4colour.TierBeyond3}

func newBaselineCmd(root *Root) *cobra.Command {
	var (
		frames int
		output string
	)

	cmd := &cobra.Command{
		Use:   "baseline <recording.csv>",
		Short: "Build and summarise the resting baseline of a recording",
		Long: `Builds per-landmark mean and standard deviation over the first --frames
frames after depth scaling. With --output the mean shape is written as a
single-frame recording.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := root.pipelineConfig()
			if err != nil {
				return err
			}
			s, err := adapters.LoadSessionFile(root.fsys, args[0])
			if err != nil {
				return err
			}
			depth := pc.GetDepthScale()
			b, err := l2align.BuildBaseline(l1frames.ScaleDepth(s.Frames, depth), frames, depth)
			if err != nil {
				return err
			}

			sum := b.Summary()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "landmarks: %d\n", b.LandmarkCount())
			fmt.Fprintf(out, "frames: %d\n", b.SourceFrameCount())
			fmt.Fprintf(out, "depth scale: %g\n", b.DepthScale())
			fmt.Fprintf(out, "std magnitude: mean=%.6g min=%.6g max=%.6g\n", sum.MeanStd, sum.MinStd, sum.MaxStd)

			if output != "" {
				mean := []l1frames.Frame{{Points: b.MeanShape()}}
				err := writeFile(root.fsys, output, func(w io.Writer) error {
					return adapters.WriteFramesCSV(w, mean, s.Landmarks)
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&frames, "frames", l2align.DefaultBaselineFrames, "number of leading frames in the baseline")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the mean shape to this CSV")
	return cmd
}

func newReportCmd(root *Root) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "report <recording.csv>",
		Short: "Write RMSD and displacement plots and the deviation chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.sessionConfig()
			if err != nil {
				return err
			}
			s, err := adapters.LoadSessionFile(root.fsys, args[0])
			if err != nil {
				return err
			}
			res, err := pipeline.Run(cmd.Context(), s.Frames, cfg.WithSource(filepath.Base(args[0])))
			if err != nil {
				return err
			}

			written, err := report.WriteSession(root.fsys, outputDir, sessionName(args[0]), res)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printRunSummary(out, res)
			if len(written) == 0 {
				fmt.Fprintln(out, "nothing to report")
			}
			for _, p := range written {
				fmt.Fprintf(out, "wrote %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "reports", "directory for report files")
	return cmd
}
