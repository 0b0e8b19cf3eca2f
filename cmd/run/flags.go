package run

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"sirt3d/pkg/config"
)

const configFlag = "config"

// bindRunFlags declares the flags of the run command. Every flag except
// --config overrides the matching configuration value when set.
func bindRunFlags(command *cobra.Command) {
	d := config.DefaultConfig()
	flags := command.Flags()

	flags.String(configFlag, "sirt3d.yaml", "path of the YAML configuration; defaults apply when it does not exist")

	flags.Int("rows", d.Grid.Rows, "process grid rows")
	flags.Int("cols", d.Grid.Cols, "process grid columns")

	flags.Float64("lam", d.SIRT.Lambda, "damping parameter")
	flags.Int("maxit", d.SIRT.MaxIterations, "maximum number of iterations")
	flags.Float64("tol", d.SIRT.Tolerance, "stopping threshold on the residual change")
	flags.Float64("radius", d.SIRT.Radius, "reconstruction sphere radius, -1 for the inscribed sphere")
	flags.String("radius-units", d.SIRT.RadiusUnits, "radius units: voxels or fraction (of N/2-1)")
	flags.String("stopping", d.SIRT.Stopping, "stopping rule: relative or absolute")
	flags.String("symmetry", d.SIRT.Symmetry, "point-group symmetry label, e.g. c1, c4, d2")
	flags.String("kernel", d.SIRT.Kernel, "projection kernel: bilinear or nearest")
	flags.Int("workers", d.SIRT.Workers, "forward-projection goroutines per process")

	flags.String("phantom", d.Phantom.Kind, "phantom: spheres or blobs")
	flags.Int("size", d.Phantom.Size, "volume edge length in voxels")
	flags.Int("views", d.Phantom.Views, "number of projection images")
	flags.Int("fold", d.Phantom.Fold, "rotational symmetry of the blobs phantom")
	flags.Float64("noise", d.Phantom.Noise, "standard deviation of the projection noise")
	flags.Int64("seed", d.Phantom.Seed, "noise seed")

	flags.String("slices-dir", d.Output.SlicesDir, "directory receiving x/y/z slice sequences")
	flags.String("metrics-addr", "", "host:port to serve Prometheus metrics on during the run")

	flags.String("log-format", d.Logging.Format, "log format: text or json")
	flags.String("log-level", d.Logging.Level, "log level: debug, info, warn, error or none")
}

// applyFlags copies every flag the user set onto cfg.
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	var err error
	set := func(name string, apply func() error) {
		if err == nil && flags.Changed(name) {
			err = apply()
		}
	}

	set("rows", func() (e error) { cfg.Grid.Rows, e = flags.GetInt("rows"); return })
	set("cols", func() (e error) { cfg.Grid.Cols, e = flags.GetInt("cols"); return })
	set("lam", func() (e error) { cfg.SIRT.Lambda, e = flags.GetFloat64("lam"); return })
	set("maxit", func() (e error) { cfg.SIRT.MaxIterations, e = flags.GetInt("maxit"); return })
	set("tol", func() (e error) { cfg.SIRT.Tolerance, e = flags.GetFloat64("tol"); return })
	set("radius", func() (e error) { cfg.SIRT.Radius, e = flags.GetFloat64("radius"); return })
	set("radius-units", func() (e error) { cfg.SIRT.RadiusUnits, e = flags.GetString("radius-units"); return })
	set("stopping", func() (e error) { cfg.SIRT.Stopping, e = flags.GetString("stopping"); return })
	set("symmetry", func() (e error) { cfg.SIRT.Symmetry, e = flags.GetString("symmetry"); return })
	set("kernel", func() (e error) { cfg.SIRT.Kernel, e = flags.GetString("kernel"); return })
	set("workers", func() (e error) { cfg.SIRT.Workers, e = flags.GetInt("workers"); return })
	set("phantom", func() (e error) { cfg.Phantom.Kind, e = flags.GetString("phantom"); return })
	set("size", func() (e error) { cfg.Phantom.Size, e = flags.GetInt("size"); return })
	set("views", func() (e error) { cfg.Phantom.Views, e = flags.GetInt("views"); return })
	set("fold", func() (e error) { cfg.Phantom.Fold, e = flags.GetInt("fold"); return })
	set("noise", func() (e error) { cfg.Phantom.Noise, e = flags.GetFloat64("noise"); return })
	set("seed", func() (e error) { cfg.Phantom.Seed, e = flags.GetInt64("seed"); return })
	set("slices-dir", func() (e error) { cfg.Output.SlicesDir, e = flags.GetString("slices-dir"); return })
	set("log-format", func() (e error) { cfg.Logging.Format, e = flags.GetString("log-format"); return })
	set("log-level", func() (e error) { cfg.Logging.Level, e = flags.GetString("log-level"); return })
	return err
}
