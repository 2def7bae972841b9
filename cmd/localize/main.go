package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/milosgajdos/go-localize/config"
	"github.com/milosgajdos/go-localize/internal/log"
	"github.com/milosgajdos/go-localize/sim"
	"github.com/milosgajdos/go-localize/sim/cartpole"
	"github.com/milosgajdos/go-localize/viz"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var (
	configFile string
	seed       uint64
	ticks      int
	plotFile   string
	logLevel   string
	mqttBroker string
	mqttPrefix string
	zeroNoise  bool
	graph      bool
	discrete   string
)

const mqttTimeout = 5 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:          "localize",
		Short:        "EKF robot localization simulator",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Init(logLevel)
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&plotFile, "plot", "", "render result to image file (png, svg, pdf)")
	rootCmd.PersistentFlags().StringVar(&mqttBroker, "mqtt-broker", "", "stream visualization to MQTT broker, e.g. tcp://127.0.0.1:1883")
	rootCmd.PersistentFlags().StringVar(&mqttPrefix, "mqtt-prefix", "viz", "MQTT topic prefix")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run EKF localization simulation",
		Args:  cobra.NoArgs,
		RunE:  runLocalization,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 seeds from time)")
	runCmd.Flags().IntVar(&ticks, "ticks", 0, "number of simulation ticks (overrides config)")
	runCmd.Flags().BoolVar(&zeroNoise, "zero-noise", false, "disable simulated sensor and input noise")
	runCmd.Flags().BoolVar(&graph, "graph", true, "print position error graph")

	cartpoleCmd := &cobra.Command{
		Use:   "cartpole",
		Short: "run linear inverted pendulum simulation",
		Args:  cobra.NoArgs,
		RunE:  runCartpole,
	}
	cartpoleCmd.Flags().StringVar(&discrete, "discretization", cartpole.Euler.String(), "model discretization (euler, zoh)")

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write default configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(args[0], config.Default())
		},
	}

	rootCmd.AddCommand(runCmd, cartpoleCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("ticks") {
		cfg.Ticks = ticks
	}
	if zeroNoise {
		cfg = cfg.ZeroNoise()
	}

	return cfg, cfg.Validate()
}

// newSink builds the visualization sink from flags. The returned flush renders file outputs.
func newSink() (viz.Sink, func() error, error) {
	sinks := viz.Multi{viz.NewLog(log.L())}
	flush := func() error { return nil }

	if plotFile != "" {
		p := viz.NewPlot(plotFile, strings.TrimSuffix(filepath.Base(plotFile), filepath.Ext(plotFile)))
		sinks = append(sinks, p)
		flush = p.Flush
	}

	if mqttBroker != "" {
		client, err := viz.DialMQTT(mqttBroker, fmt.Sprintf("localize-%d", os.Getpid()), mqttTimeout)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, viz.NewMQTT(client, mqttPrefix, mqttTimeout))
		prev := flush
		flush = func() error {
			client.Disconnect(250)
			return prev()
		}
	}

	return sinks, flush, nil
}

func runLocalization(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sink, flush, err := newSink()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := sim.NewDriver(cfg, sim.WithSink(sink), sim.WithLogger(log.With("component", "driver")))
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := d.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if err := flush(); err != nil {
		log.L().Warn("visualization flush failed", "err", err)
	}

	if plotFile != "" {
		// overwrite streamed snapshot with the full result plot
		p, err := sim.New2DPlot(res, cfg.Chi)
		if err != nil {
			return err
		}
		if err := p.Save(800, 800, plotFile); err != nil {
			return err
		}
	}

	printSummary(cfg, res, elapsed)

	if graph {
		fmt.Println(asciigraph.PlotMany([][]float64{res.EstimateErrors, res.DeadReckoningErrors},
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.SeriesColors(asciigraph.Red, asciigraph.Blue),
			asciigraph.SeriesLegends("ekf", "dead reckoning"),
			asciigraph.Caption("position error [m]"),
		))
	}

	return nil
}

func printSummary(cfg *config.Config, res *sim.Result, elapsed time.Duration) {
	estRMSE, drRMSE := res.RMSE()
	last := len(res.GroundTruth) - 1

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.SetTitle("EKF localization")
	tw.AppendHeader(table.Row{"TRAJECTORY", "FINAL X", "FINAL Y", "FINAL ERROR", "RMSE"})
	tw.AppendRows([]table.Row{
		{"ground truth", res.GroundTruth[last].X, res.GroundTruth[last].Y, 0.0, 0.0},
		{"dead reckoning", res.DeadReckoning[last].X, res.DeadReckoning[last].Y, res.DeadReckoningErrors[last], drRMSE},
		{"ekf", res.Estimates[last].X, res.Estimates[last].Y, res.EstimateErrors[last], estRMSE},
	})
	tw.AppendFooter(table.Row{"ticks", cfg.Ticks, "elapsed", elapsed.Round(time.Millisecond), fmt.Sprintf("sink errors %d", res.SinkErrors)})
	tw.Render()

	fmt.Printf("final covariance:\n%v\n", mat.Formatted(res.Estimate.Cov(), mat.Prefix(""), mat.Squeeze()))
}

func runCartpole(cmd *cobra.Command, args []string) error {
	sink, flush, err := newSink()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := cartpole.ParseDiscretization(discrete)
	if err != nil {
		return err
	}

	m, err := cartpole.NewModel(cartpole.Dt, d)
	if err != nil {
		return err
	}

	states, err := cartpole.Run(ctx, m, cartpole.InitState(), cartpole.Force, sink, log.With("component", "cartpole", "discretization", d.String()))
	if err != nil {
		return err
	}

	if err := flush(); err != nil {
		log.L().Warn("visualization flush failed", "err", err)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"TIME", "X", "DX", "THETA", "DTHETA"})
	for i, x := range states {
		if i%10 != 0 && i != len(states)-1 {
			continue
		}
		tw.AppendRow(table.Row{
			fmt.Sprintf("%.1f", float64(i)*cartpole.Dt),
			fmt.Sprintf("%.4f", x.AtVec(0)),
			fmt.Sprintf("%.4f", x.AtVec(1)),
			fmt.Sprintf("%.4f", x.AtVec(2)),
			fmt.Sprintf("%.4f", x.AtVec(3)),
		})
	}
	tw.Render()

	return nil
}
