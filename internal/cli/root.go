// Package cli wires the facemotion commands onto the processing packages.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"

	"github.com/spf13/cobra"

	"github.com/banshee-data/facemotion/internal/config"
	"github.com/banshee-data/facemotion/internal/db"
	"github.com/banshee-data/facemotion/internal/facemesh/l2align"
	"github.com/banshee-data/facemotion/internal/facemesh/l3filters"
	"github.com/banshee-data/facemotion/internal/facemesh/l4colour"
	"github.com/banshee-data/facemotion/internal/facemesh/l5features"
	"github.com/banshee-data/facemotion/internal/facemesh/pipeline"
	"github.com/banshee-data/facemotion/internal/fsutil"
	"github.com/banshee-data/facemotion/internal/version"
)

// Log levels accepted by --log-level, from quietest to noisiest.
const (
	LogQuiet = "quiet"
	LogOps   = "ops"
	LogDiag  = "diag"
	LogTrace = "trace"
)

// Root holds the state shared by every command.
type Root struct {
	fsys fsutil.FileSystem

	configPath string
	logLevel   string
	workers    int
	depthScale float64
}

// NewRootCmd creates the root command. fsys is where recordings are read
// and outputs written; nil means the OS filesystem.
func NewRootCmd(fsys fsutil.FileSystem) *cobra.Command {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	root := &Root{fsys: fsys}

	rootCmd := &cobra.Command{
		Use:   "facemotion",
		Short: "Align, filter and derive features from facial landmark recordings",
		Long: `facemotion processes face-mesh landmark recordings: it removes rigid head
motion, smooths and cleans the point clouds, colours landmarks by how far
they deviate from a resting baseline and derives per-frame feature tables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setLogLevel(root.logLevel, cmd.ErrOrStderr())
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&root.configPath, "config", "", "pipeline configuration file (default "+config.DefaultConfigPath+" when present)")
	pf.StringVar(&root.logLevel, "log-level", LogOps, "log detail (quiet|ops|diag|trace)")
	pf.IntVar(&root.workers, "workers", -1, "parallel alignment workers, 0 for GOMAXPROCS (default from config)")
	pf.Float64Var(&root.depthScale, "depth-scale", 0, "multiplier for raw Z values (default from config)")

	rootCmd.AddCommand(newAlignCmd(root))
	rootCmd.AddCommand(newFeaturesCmd(root))
	rootCmd.AddCommand(newColourCmd(root))
	rootCmd.AddCommand(newBaselineCmd(root))
	rootCmd.AddCommand(newReportCmd(root))
	rootCmd.AddCommand(newMigrateCmd(root))
	rootCmd.AddCommand(newRunsCmd(root))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command with args.
func Execute(ctx context.Context, fsys fsutil.FileSystem, args []string, stdout, stderr io.Writer) error {
	cmd := NewRootCmd(fsys)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}

// setLogLevel points every package's log streams at w according to level.
func setLogLevel(level string, w io.Writer) error {
	var ops, diag, trace io.Writer
	switch level {
	case LogQuiet:
	case LogOps:
		ops = w
	case LogDiag:
		ops, diag = w, w
	case LogTrace:
		ops, diag, trace = w, w, w
	default:
		return fmt.Errorf("unknown log level %q (want quiet|ops|diag|trace)", level)
	}

	l2align.SetLogWriters(ops, diag, trace)
	l3filters.SetLogWriters(ops, diag, trace)
	l4colour.SetLogWriters(ops, diag, trace)
	l5features.SetLogWriters(ops, diag, trace)
	pipeline.SetLogWriters(ops, diag, trace)
	db.MigrationLogger = nil
	if diag != nil {
		db.MigrationLogger = log.New(diag, "", log.LstdFlags|log.Lmicroseconds)
	}
	return nil
}

// pipelineConfig loads --config, or the default file when it exists, and
// applies the command-line overrides.
func (r *Root) pipelineConfig() (*config.PipelineConfig, error) {
	var pc *config.PipelineConfig
	if r.configPath != "" {
		var err error
		if pc, err = config.LoadPipelineConfig(r.configPath); err != nil {
			return nil, err
		}
	} else {
		var err error
		pc, err = config.LoadPipelineConfig(config.DefaultConfigPath)
		if errors.Is(err, fs.ErrNotExist) {
			pc = config.EmptyPipelineConfig()
		} else if err != nil {
			return nil, err
		}
	}
	if r.workers >= 0 {
		pc = pc.WithWorkers(r.workers)
	}
	if r.depthScale != 0 {
		pc = pc.WithDepthScale(r.depthScale)
	}
	return pc, pc.Validate()
}

func (r *Root) sessionConfig() (pipeline.Config, error) {
	pc, err := r.pipelineConfig()
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.ConfigFromPipeline(pc)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.String())
		},
	}
}
