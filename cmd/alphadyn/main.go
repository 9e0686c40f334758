package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/kestrel-sim/alphadyn/internal/alpha"
	"github.com/kestrel-sim/alphadyn/internal/config"
	"github.com/kestrel-sim/alphadyn/internal/dynamics"
	"github.com/kestrel-sim/alphadyn/internal/export"
	"github.com/kestrel-sim/alphadyn/internal/metrics"
	"github.com/kestrel-sim/alphadyn/internal/models"
	"github.com/kestrel-sim/alphadyn/internal/storage"
	"github.com/kestrel-sim/alphadyn/internal/tui"
)

var (
	dataDir      string
	configFile   string
	preset       string
	stepSize     float64
	numSteps     int
	startTime    float64
	maxIter      int
	alphaF       float64
	alphaM       float64
	beta         float64
	gamma        float64
	precondition bool
	verbose      bool
	// plot
	pngPath string
	columns []string
	// phase
	xColumn string
	yColumn string
	// sweep
	sweepRuns   int
	sweepJitter float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "alphadyn",
		Short: "generalized-alpha rigid body dynamics lab",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".alphadyn", "data directory")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "integrate the heavy top and store the run",
		RunE:  runIntegration,
	}
	addRunFlags(runCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "integrate with a live terminal view",
		RunE:  watchIntegration,
	}
	addRunFlags(watchCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot stored run traces",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&pngPath, "png", "", "write a PNG instead of terminal output")
	plotCmd.Flags().StringSliceVar(&columns, "columns", []string{"x", "y", "z"}, "columns to plot")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "write a phase plot of two columns",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().StringVar(&pngPath, "png", "phase.png", "output file")
	phaseCmd.Flags().StringVar(&xColumn, "x", "x", "x-axis column")
	phaseCmd.Flags().StringVar(&yColumn, "y", "z", "y-axis column")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "print run states as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run an ensemble of perturbed initial spins",
		RunE:  runSweep,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().IntVar(&sweepRuns, "runs", 5, "number of ensemble members")
	sweepCmd.Flags().Float64Var(&sweepJitter, "jitter", 0.01, "relative spin perturbation per member")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, p := range config.ListPresets() {
				fmt.Fprintf(w, "%s\t%s\n", p[0], p[1])
			}
			return w.Flush()
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "write the default configuration as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(args[0], config.DefaultConfig())
		},
	}

	rootCmd.AddCommand(runCmd, watchCmd, listCmd, plotCmd, phaseCmd, exportCmd, exportCSVCmd, sweepCmd, presetsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "preset configuration")
	cmd.Flags().Float64Var(&stepSize, "dt", config.DefaultStepSize, "step size")
	cmd.Flags().IntVar(&numSteps, "steps", config.DefaultSteps, "number of steps")
	cmd.Flags().Float64Var(&startTime, "start", 0.0, "start time")
	cmd.Flags().IntVar(&maxIter, "max-iter", config.DefaultMaxIterations, "Newton iterations per step")
	cmd.Flags().Float64Var(&alphaF, "alpha-f", 0.5, "alpha_f spectral parameter")
	cmd.Flags().Float64Var(&alphaM, "alpha-m", 0.5, "alpha_m spectral parameter")
	cmd.Flags().Float64Var(&beta, "beta", 0.25, "Newmark beta")
	cmd.Flags().Float64Var(&gamma, "gamma", 0.5, "Newmark gamma")
	cmd.Flags().BoolVar(&precondition, "precondition", false, "apply tangent preconditioning")
}

// loadConfig resolves preset, config file, and command line flags, in
// increasing order of precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			names := make([]string, 0)
			for _, p := range config.ListPresets() {
				names = append(names, p[0])
			}
			return nil, fmt.Errorf("unknown preset %q (available: %v)", preset, names)
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("dt") {
		cfg.Time.Step = stepSize
	}
	if cmd.Flags().Changed("steps") {
		cfg.Time.Steps = numSteps
	}
	if cmd.Flags().Changed("start") {
		cfg.Time.Start = startTime
	}
	if cmd.Flags().Changed("max-iter") {
		cfg.Time.MaxIterations = maxIter
	}
	if cmd.Flags().Changed("alpha-f") {
		cfg.AlphaF = alphaF
	}
	if cmd.Flags().Changed("alpha-m") {
		cfg.AlphaM = alphaM
	}
	if cmd.Flags().Changed("beta") {
		cfg.Beta = beta
	}
	if cmd.Flags().Changed("gamma") {
		cfg.Gamma = gamma
	}
	if cmd.Flags().Changed("precondition") {
		cfg.Precondition = precondition
	}

	return cfg, nil
}

func buildModel(cfg *config.Config) (*models.HeavyTop, error) {
	mass, err := dynamics.NewMassMatrix(cfg.Body.Mass, mgl64.Vec3(cfg.Body.Inertia))
	if err != nil {
		return nil, err
	}
	forces := dynamics.NewGeneralizedForces(
		mgl64.Vec3{cfg.Forces[0], cfg.Forces[1], cfg.Forces[2]},
		mgl64.Vec3{cfg.Forces[3], cfg.Forces[4], cfg.Forces[5]})
	return models.NewHeavyTop(mass, forces, mgl64.Vec3(cfg.Body.Reference)), nil
}

func buildIntegrator(cfg *config.Config) (*alpha.Integrator, error) {
	stepper, err := dynamics.NewTimeStepper(cfg.Time.Start, cfg.Time.Step, cfg.Time.Steps, cfg.Time.MaxIterations)
	if err != nil {
		return nil, err
	}
	return alpha.New(alpha.Config{
		AlphaF:       cfg.AlphaF,
		AlphaM:       cfg.AlphaM,
		Beta:         cfg.Beta,
		Gamma:        cfg.Gamma,
		Precondition: cfg.Precondition,
	}, stepper)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runIntegration(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	top, err := buildModel(cfg)
	if err != nil {
		return err
	}
	integrator, err := buildIntegrator(cfg)
	if err != nil {
		return err
	}
	integrator.SetLogger(newLogger())

	energyDrift := metrics.NewEnergyDrift(top)
	violation := metrics.NewConstraintViolation(top)
	integrator.AddMetric(energyDrift)
	integrator.AddMetric(violation)

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	fmt.Printf("integrating %s (h=%.2e, %d steps)...\n", cfg.Model, cfg.Time.Step, cfg.Time.Steps)
	start := time.Now()

	result, err := integrator.Integrate(cfg.InitialState(), top.NumConstraints(), top)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	metricValues := map[string]float64{
		energyDrift.Name(): energyDrift.Value(),
		violation.Name():   violation.Value(),
	}
	runID, err := st.Save(cfg, result, metricValues)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("states: %d\n", len(result.States))
	fmt.Printf("newton iterations: %d\n", result.TotalIterations)
	fmt.Printf("converged: %v\n", result.Converged())
	fmt.Println("\nmetrics:")
	for name, val := range metricValues {
		fmt.Printf("  %s: %.6e\n", name, val)
	}
	return nil
}

func watchIntegration(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	top, err := buildModel(cfg)
	if err != nil {
		return err
	}
	return tui.RunWatch(cfg, top)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	top, err := buildModel(cfg)
	if err != nil {
		return err
	}

	base := cfg.InitialState()
	initials := make([]dynamics.State, sweepRuns)
	for i := range initials {
		s := base.Clone()
		// Scale the body spin symmetrically around the configured rate.
		factor := 1.0 + sweepJitter*(float64(i)-float64(sweepRuns-1)/2)
		for j := range s.Velocity {
			s.Velocity[j] *= factor
		}
		initials[i] = s
	}

	ensemble := alpha.NewEnsemble(alpha.Config{
		AlphaF:       cfg.AlphaF,
		AlphaM:       cfg.AlphaM,
		Beta:         cfg.Beta,
		Gamma:        cfg.Gamma,
		Precondition: cfg.Precondition,
	}, cfg.Time.Start, cfg.Time.Step, cfg.Time.Steps, cfg.Time.MaxIterations)
	ensemble.SetLogger(newLogger())

	fmt.Printf("sweeping %d runs (jitter %.3f)...\n\n", sweepRuns, sweepJitter)
	start := time.Now()
	results, err := ensemble.Run(initials, top.NumConstraints(), top)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSPIN FACTOR\tITERATIONS\tCONVERGED\tENERGY")
	for i, result := range results {
		factor := 1.0 + sweepJitter*(float64(i)-float64(sweepRuns-1)/2)
		energy := 0.0
		if len(result.States) > 0 {
			energy = top.Energy(result.States[len(result.States)-1])
		}
		fmt.Fprintf(w, "%d\t%.4f\t%d\t%v\t%.4f\n",
			i, factor, result.TotalIterations, result.Converged(), energy)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\ncompleted in %v\n", time.Since(start))
	return nil
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
	fmt.Fprintln(w, "ID\tTIME\tDT\tSTEPS\tITER\tCONVERGED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%.2e\t%d\t%d\t%v\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.StepSize,
			run.Steps,
			run.TotalIterations,
			run.Converged,
		)
	}
	return w.Flush()
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	header, times, rows, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	series := make([]export.Series, 0, len(columns))
	for _, col := range columns {
		idx := columnIndex(header, col)
		if idx < 0 {
			return fmt.Errorf("unknown column %q (have %v)", col, header)
		}
		values := make([]float64, len(rows))
		for i := range rows {
			values[i] = rows[i][idx]
		}
		series = append(series, export.Series{Name: col, Times: times, Values: values})
	}

	if pngPath != "" {
		if err := export.TracePNG(pngPath, meta.ID, series); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", pngPath)
		return nil
	}

	fmt.Printf("run: %s\nsamples: %d\n\n", meta.ID, len(rows))
	for _, s := range series {
		graph := asciigraph.Plot(s.Values,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(s.Name+" vs time"),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	header, _, rows, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	xi := columnIndex(header, xColumn)
	yi := columnIndex(header, yColumn)
	if xi < 0 || yi < 0 {
		return fmt.Errorf("unknown columns %q/%q (have %v)", xColumn, yColumn, header)
	}

	xs := make([]float64, len(rows))
	ys := make([]float64, len(rows))
	for i := range rows {
		xs[i] = rows[i][xi]
		ys[i] = rows[i][yi]
	}

	if err := export.PhasePNG(pngPath, runID, xColumn, yColumn, xs, ys); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", pngPath)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	header, times, rows, err := st.LoadStates(args[0])
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no data to export")
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if err := w.Write(append([]string{"time"}, header...)); err != nil {
		return err
	}
	for i := range rows {
		record := []string{strconv.FormatFloat(times[i], 'f', 6, 64)}
		for _, val := range rows[i] {
			record = append(record, strconv.FormatFloat(val, 'g', -1, 64))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}
