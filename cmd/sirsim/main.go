package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/sirsim/internal/config"
	"github.com/san-kum/sirsim/internal/dynamo"
	"github.com/san-kum/sirsim/internal/epidemic"
	"github.com/san-kum/sirsim/internal/experiment"
	"github.com/san-kum/sirsim/internal/export"
	"github.com/san-kum/sirsim/internal/metrics"
	"github.com/san-kum/sirsim/internal/physics"
	"github.com/san-kum/sirsim/internal/storage"
	"github.com/san-kum/sirsim/internal/viz"
)

var (
	dataDir     string
	verbose     bool
	showMetrics bool
	configFile  string
	preset      string
	integrator  string
	model       string
	name        string
	s0          float64
	i0          float64
	r0          float64
	beta        float64
	gamma       float64
	tMax        float64
	tol         float64
	step        float64
	hMin        float64
	hMax        float64
	maxIter     int
	// sweep grid
	betaMin  float64
	betaMax  float64
	betaN    int
	gammaMin float64
	gammaMax float64
	gammaN   int
	workers  int
	// duration
	threshold float64
	// live view
	frameRate int
	// svg export
	phasePlane bool
	svgWidth   int
	svgHeight  int
)

// runtime bundles what every solving command needs.
type runtime struct {
	logger   *zap.Logger
	registry *prometheus.Registry
	recorder *metrics.Recorder
}

func newRuntime() (*runtime, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	return &runtime{
		logger:   logger,
		registry: reg,
		recorder: metrics.NewRecorder(reg),
	}, nil
}

func (rt *runtime) options() []epidemic.Option {
	return []epidemic.Option{
		epidemic.WithLogger(rt.logger),
		epidemic.WithRecorder(rt.recorder),
	}
}

// close flushes the logger and prints gathered metrics when --metrics is set.
func (rt *runtime) close() error {
	_ = rt.logger.Sync()
	if !showMetrics {
		return nil
	}

	families, err := rt.registry.Gather()
	if err != nil {
		return err
	}
	fmt.Println()
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "sirsim",
		Short: "SIR epidemic solver lab",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".sirsim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "development logging at debug level")
	rootCmd.PersistentFlags().BoolVar(&showMetrics, "metrics", false, "print solver metrics after the command")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "solve and store a run",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addProblemFlags(runCmd)
	runCmd.Flags().StringVar(&name, "name", "", "run name (defaults to the preset or config name)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storage.New(dataDir).ExportCSV(os.Stdout, args[0])
		},
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storage.New(dataDir).ExportJSON(os.Stdout, args[0])
		},
	}

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "export a run as an SVG chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := storage.New(dataDir).LoadTrajectory(args[0])
			if err != nil {
				return err
			}
			if phasePlane {
				return export.PhasePlane(os.Stdout, tr, svgWidth, svgHeight)
			}
			return export.TimeSeries(os.Stdout, tr, svgWidth, svgHeight)
		},
	}
	exportSVGCmd.Flags().BoolVar(&phasePlane, "phase", false, "plot I against S instead of against time")
	exportSVGCmd.Flags().IntVar(&svgWidth, "width", 800, "image width")
	exportSVGCmd.Flags().IntVar(&svgHeight, "height", 400, "image height")

	compareCmd := &cobra.Command{
		Use:   "compare [integrator1] [integrator2] ...",
		Short: "compare integrators on the same problem (all when none given)",
		RunE:  compareIntegrators,
	}
	addProblemFlags(compareCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "solve a beta x gamma grid concurrently",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addProblemFlags(sweepCmd)
	sweepCmd.Flags().Float64Var(&betaMin, "beta-min", 0.1, "smallest beta")
	sweepCmd.Flags().Float64Var(&betaMax, "beta-max", 1.0, "largest beta")
	sweepCmd.Flags().IntVar(&betaN, "beta-n", 4, "beta grid points")
	sweepCmd.Flags().Float64Var(&gammaMin, "gamma-min", 0.05, "smallest gamma")
	sweepCmd.Flags().Float64Var(&gammaMax, "gamma-max", 0.5, "largest gamma")
	sweepCmd.Flags().IntVar(&gammaN, "gamma-n", 4, "gamma grid points")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "concurrent solves (0 = GOMAXPROCS)")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "solve and replay a run in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addProblemFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")

	durationCmd := &cobra.Command{
		Use:   "duration",
		Short: "estimate how long the epidemic lasts",
		Args:  cobra.NoArgs,
		RunE:  estimateDuration,
	}
	addProblemFlags(durationCmd)
	durationCmd.Flags().Float64Var(&threshold, "threshold", epidemic.DefaultDurationThreshold, "infected level treated as extinction")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tINTEG\tMODEL\tN\tBETA\tGAMMA\tR0\tT_MAX")
			for _, p := range config.ListPresets() {
				cfg := config.GetPreset(p)
				prob := cfg.Problem()
				fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%.4g\t%.4g\t%.2f\t%g\n",
					p, cfg.Integrator, cfg.Model, prob.Population(), prob.Beta, prob.Gamma, prob.R0Number(), prob.TMax)
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd, compareCmd, sweepCmd, liveCmd, durationCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addProblemFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&integrator, "integrator", d.Integrator, "integrator (doubling, rkf45, backward-euler, backward-euler-reduced); doubling needs fractions or a tolerance scaled to the population")
	f.StringVar(&model, "model", d.Model, "derivative model (normalized, mass-action)")
	f.Float64Var(&s0, "s0", d.Population.S0, "initial susceptible")
	f.Float64Var(&i0, "i0", d.Population.I0, "initial infected")
	f.Float64Var(&r0, "r0", d.Population.R0, "initial recovered")
	f.Float64Var(&beta, "beta", d.Rates.Beta, "transmission rate")
	f.Float64Var(&gamma, "gamma", d.Rates.Gamma, "recovery rate")
	f.Float64Var(&tMax, "tmax", d.Solver.TMax, "end time")
	f.Float64Var(&tol, "tol", d.Solver.Tol, "error tolerance (explicit) or newton tolerance (implicit)")
	f.Float64Var(&step, "step", d.Solver.Step, "fixed step (backward-euler)")
	f.Float64Var(&hMin, "hmin", d.Solver.HMin, "smallest adaptive step")
	f.Float64Var(&hMax, "hmax", d.Solver.HMax, "largest adaptive step")
	f.IntVar(&maxIter, "max-iter", d.Solver.MaxIter, "newton iteration limit")
}

// resolveConfig layers preset, then config file, then explicitly set flags.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	set := func(flag string, apply func()) {
		if flags.Changed(flag) {
			apply()
		}
	}
	set("integrator", func() { cfg.Integrator = integrator })
	set("model", func() { cfg.Model = model })
	set("s0", func() { cfg.Population.S0 = s0 })
	set("i0", func() { cfg.Population.I0 = i0 })
	set("r0", func() { cfg.Population.R0 = r0 })
	set("beta", func() { cfg.Rates.Beta = beta })
	set("gamma", func() { cfg.Rates.Gamma = gamma })
	set("tmax", func() { cfg.Solver.TMax = tMax })
	set("tol", func() { cfg.Solver.Tol = tol })
	set("step", func() { cfg.Solver.Step = step })
	set("hmin", func() { cfg.Solver.HMin = hMin })
	set("hmax", func() { cfg.Solver.HMax = hMax })
	set("max-iter", func() { cfg.Solver.MaxIter = maxIter })

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if name == "" {
		name = cfg.Name
	}
	if name == "" {
		name = "sir"
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp, err := experiment.New(cfg, experiment.NewRegistry(), rt.options()...)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("solving %s with %s...\n", name, cfg.Integrator)
	res, solveErr := exp.Run(ctx)
	if res == nil {
		return solveErr
	}

	runID, err := st.Save(name, cfg.Settings(), res, solveErr)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", res.Elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("records: %d (accepted %d, rejected %d)\n",
		res.Trajectory.Len(), res.Trajectory.Stats.Accepted, res.Trajectory.Stats.Rejected)
	printSummary(res.Summary)

	if solveErr != nil {
		fmt.Println("\nrun is PARTIAL: the integrator stopped before its end condition")
		return solveErr
	}
	return nil
}

func printSummary(s epidemic.Summary) {
	fmt.Println("\nsummary:")
	fmt.Printf("  peak:        %.4f at t=%.2f\n", s.PeakInfected, s.PeakTime)
	fmt.Printf("  duration:    %.2f\n", s.Duration)
	fmt.Printf("  final:       S=%.4f I=%.4g R=%.4f at t=%.2f\n", s.FinalS, s.FinalI, s.FinalR, s.FinalTime)
	fmt.Printf("  attack rate: %.2f%%\n", 100*s.AttackRate)
	fmt.Printf("  drift:       %.3g\n", s.MaxDrift)
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tINTEG\tTIME\tT_MAX\tPEAK\tDURATION\tSTATUS")

	for _, run := range runs {
		status := "ok"
		if run.Partial {
			status = "partial"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%.2f\t%.2f\t%s\n",
			run.ID,
			run.Integrator,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Problem.TMax,
			run.Metrics["peak_infected"],
			run.Metrics["duration"],
			status,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	tr, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}
	if tr.Len() == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("integrator: %s\n", meta.Integrator)
	fmt.Printf("samples: %d\n\n", tr.Len())

	fmt.Println(viz.PlotCompartments(tr, -1, 80, 15, "S, I, R vs time"))
	fmt.Println(viz.Legend())
	fmt.Println()

	captions := []string{"susceptible", "infected", "recovered"}
	for idx := range physics.Labels {
		fmt.Println(viz.PlotSeries(tr, idx, 80, 10, captions[idx]))
		fmt.Println()
	}
	return nil
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	reg := experiment.NewRegistry()
	names := args
	if len(names) == 0 {
		names = reg.ListIntegrators()
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := signalContext()
	defer cancel()

	prob := cfg.Problem()
	fmt.Printf("comparing integrators (N=%g, beta=%g, gamma=%g, t_max=%g)\n\n", prob.Population(), prob.Beta, prob.Gamma, prob.TMax)
	fmt.Printf("%-24s  %8s  %8s  %12s  %10s  %12s  %10s\n", "integrator", "steps", "rejected", "peak", "duration", "drift", "time_ms")
	fmt.Println(strings.Repeat("-", 94))

	for _, c := range experiment.Compare(ctx, cfg, reg, names, rt.options()...) {
		if c.Result == nil {
			fmt.Printf("%-24s  error: %v\n", c.Integrator, c.Err)
			continue
		}
		s, stats := c.Result.Summary, c.Result.Trajectory.Stats
		fmt.Printf("%-24s  %8d  %8d  %12.4f  %10.2f  %12.2e  %10.2f\n",
			c.Integrator, stats.Accepted, stats.Rejected, s.PeakInfected, s.Duration, s.MaxDrift,
			float64(c.Result.Elapsed.Microseconds())/1000)
		if c.Err != nil {
			fmt.Printf("%-24s  partial: %v\n", "", c.Err)
		}
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := signalContext()
	defer cancel()

	sweep := experiment.NewSweep(
		experiment.Linspace(betaMin, betaMax, betaN),
		experiment.Linspace(gammaMin, gammaMax, gammaN),
	)
	if workers > 0 {
		sweep.Workers = workers
	}

	points, err := sweep.Run(ctx, cfg, experiment.NewRegistry(), rt.options()...)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BETA\tGAMMA\tR0\tPEAK\tPEAK_T\tATTACK\tDURATION\tSTATUS")
	for _, p := range points {
		if p.Result == nil {
			fmt.Fprintf(w, "%.4g\t%.4g\t%.2f\t-\t-\t-\t-\terror: %v\n", p.Beta, p.Gamma, p.Beta/p.Gamma, p.Err)
			continue
		}
		status := "ok"
		if p.Err != nil {
			status = "partial"
		}
		s := p.Result.Summary
		fmt.Fprintf(w, "%.4g\t%.4g\t%.2f\t%.2f\t%.2f\t%.1f%%\t%.2f\t%s\n",
			p.Beta, p.Gamma, p.Beta/p.Gamma, s.PeakInfected, s.PeakTime, 100*s.AttackRate, s.Duration, status)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if best, ok := experiment.Best(points, "peak_infected"); ok {
		fmt.Printf("\nlowest peak: beta=%.4g gamma=%.4g (%.2f infected)\n", best.Beta, best.Gamma, best.Result.Summary.PeakInfected)
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	// keep log lines off the alternate screen
	rt.logger = zap.NewNop()

	exp, err := experiment.New(cfg, experiment.NewRegistry(), rt.options()...)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("%s · %s", cfg.Name, cfg.Integrator)
	m := viz.NewModel(title, exp.Run, frameRate)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

// durationDefaults switches to backward Euler over a long horizon with a unit
// step, so the run stops as soon as I drops below the threshold. Anything the
// user chose explicitly is left alone: a flag, a preset's integrator or a
// config file.
func durationDefaults(cfg *config.Config, changed func(string) bool, fromPreset, fromFile bool, threshold float64) {
	if !changed("integrator") && !fromPreset && !fromFile {
		cfg.Integrator = "backward-euler"
	}
	if !changed("tmax") && !fromFile {
		cfg.Solver.TMax = epidemic.DurationHorizon
	}
	if !changed("step") && !fromFile {
		cfg.Solver.Step = 1
	}
	if threshold > 0 {
		cfg.Solver.Extinction = threshold
	}
}

func estimateDuration(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	durationDefaults(cfg, cmd.Flags().Changed, preset != "", configFile != "", threshold)

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	opts := append(rt.options(), epidemic.WithDurationThreshold(threshold))
	exp, err := experiment.New(cfg, experiment.NewRegistry(), opts...)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, err := exp.Run(ctx)
	if err != nil {
		var simErr *dynamo.SimulationError
		if errors.As(err, &simErr) {
			return fmt.Errorf("solve stopped at t=%.2f, duration unknown: %w", simErr.Time, err)
		}
		return err
	}

	d := epidemic.Duration(res.Trajectory, threshold)
	if res.Summary.FinalI > threshold && d >= res.Summary.FinalTime {
		fmt.Printf("epidemic still active at t=%.2f (I=%.4g)\n", d, res.Summary.FinalI)
		return nil
	}
	fmt.Printf("epidemic duration: %.2f days (I <= %g)\n", d, threshold)
	return nil
}
