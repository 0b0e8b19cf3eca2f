// Package run contains the command that reconstructs a synthetic data set
// on an in-process grid.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sirt3d/pkg/config"
	"sirt3d/pkg/logger"
	"sirt3d/pkg/phantom"
	"sirt3d/pkg/projector"
	"sirt3d/pkg/reconstruction"
	"sirt3d/pkg/sirt"
)

// NewRunCommand returns the command that generates a phantom, projects it
// and reconstructs it.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconstruct a synthetic phantom with distributed SIRT",
		Long: `Generate a phantom, project it along evenly spread directions and reconstruct it
on a rows x cols grid of in-process ranks. Flags override the configuration file.`,
		RunE: run,
		Args: cobra.NoArgs,
	}
	bindRunFlags(cmd)
	return cmd
}

// ReadConfig loads the configuration named by --config and applies the flag overrides.
func ReadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString(configFlag)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd.Flags(), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SIRTParams translates the sirt section of cfg into solver parameters.
func SIRTParams(cfg *config.Config, log logger.Logger) (sirt.Params, error) {
	p := sirt.DefaultParams()
	p.Lambda = cfg.SIRT.Lambda
	p.MaxIterations = cfg.SIRT.MaxIterations
	p.Tolerance = cfg.SIRT.Tolerance
	p.Radius = cfg.SIRT.Radius
	p.Symmetry = cfg.SIRT.Symmetry
	p.Workers = cfg.SIRT.Workers
	p.MaxVoxels = cfg.SIRT.MaxVoxels
	p.Logger = log

	var err error
	if p.RadiusUnits, err = sirt.ParseRadiusUnits(cfg.SIRT.RadiusUnits); err != nil {
		return p, err
	}
	if p.Stopping, err = sirt.ParseStoppingRule(cfg.SIRT.Stopping); err != nil {
		return p, err
	}
	if p.Kernel, err = projector.KernelByName(cfg.SIRT.Kernel); err != nil {
		return p, err
	}
	return p, nil
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := ReadConfig(cmd)
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if !cfg.Output.Verbose && level == "info" {
		level = "warn"
	}
	log, err := logger.NewLogger(cfg.Logging.Format, level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	params, err := SIRTParams(cfg, log)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		stop, err := serveMetrics(addr, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	ref, err := phantom.Generate(cfg.Phantom.Kind, cfg.Phantom.Size, cfg.Phantom.Fold)
	if err != nil {
		return err
	}
	poses := phantom.Poses(phantom.SaffOrientations(cfg.Phantom.Views))
	images, err := phantom.Project(ref, poses, params.Kernel)
	if err != nil {
		return err
	}
	if cfg.Phantom.Noise > 0 {
		phantom.AddNoise(images, cfg.Phantom.Noise, cfg.Phantom.Seed)
	}
	log.Info("synthetic data set ready",
		zap.String("phantom", cfg.Phantom.Kind),
		zap.Int("size", cfg.Phantom.Size),
		zap.Int("views", len(images)),
		zap.Float64("noise", cfg.Phantom.Noise))

	r := reconstruction.NewReconstructor(&reconstruction.Params{
		Rows:      cfg.Grid.Rows,
		Cols:      cfg.Grid.Cols,
		SIRT:      params,
		Images:    images,
		Poses:     poses,
		Reference: ref,
		SlicesDir: cfg.Output.SlicesDir,
		Logger:    log,
	})
	if err := r.Process(ctx); err != nil {
		log.Error("reconstruction failed", zap.Error(err), zap.Int("status", sirt.StatusCode(err)))
		return err
	}

	printSummary(cmd.OutOrStdout(), cfg, r)
	return nil
}

func printSummary(w io.Writer, cfg *config.Config, r *reconstruction.Reconstructor) {
	res := r.GetResult()
	m := r.GetMetrics()

	fmt.Fprintf(w, "Grid:        %dx%d\n", cfg.Grid.Rows, cfg.Grid.Cols)
	fmt.Fprintf(w, "Volume:      %d^3, %d views, symmetry %s\n", cfg.Phantom.Size, cfg.Phantom.Views, cfg.SIRT.Symmetry)
	fmt.Fprintf(w, "Outcome:     %s after %d iterations in %s\n", res.Outcome, res.Iterations, r.Elapsed().Round(time.Millisecond))
	fmt.Fprintf(w, "Residual:    %.6g -> %.6g\n", res.Residuals[0], res.Residuals[len(res.Residuals)-1])
	fmt.Fprintf(w, "RMSE:        %.6g\n", m.RMSE)
	fmt.Fprintf(w, "Correlation: %.4f\n", m.Correlation)
	fmt.Fprintf(w, "SSIM:        %.4f\n", m.SSIM)
	fmt.Fprintf(w, "FSC 0.5:     shell %d of %d\n", m.ResolutionShell, len(m.FSC))
	if cfg.Output.SlicesDir != "" {
		fmt.Fprintf(w, "Slices:      %s\n", cfg.Output.SlicesDir)
	}
}

// serveMetrics exposes the Prometheus registry on addr until stop is called.
func serveMetrics(addr string, log logger.Logger) (stop func(), err error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", lis.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		<-done
	}, nil
}
