// -*- tab-width:2 -*-

// Package main runs dispatch scenarios against a simulated node, in
// virtual time by default or on the wall clock.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	count "github.com/jayalane/go-counter"
	ll "github.com/jayalane/go-lll"
	rpcq "github.com/jayalane/go-rpcq"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
)

// Run parameters - easy to tweak for experiments.
const (
	// Virtual time cap so a runaway scenario still ends.
	defaultLimit = 10 * time.Minute
	// Wall clock cap.
	realtimeLimit = 5 * time.Minute
)

type options struct {
	scenario string
	seed     int64
	realtime bool
	limit    time.Duration
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errors.ErrorStack(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "rpcq",
		Short:        "Queued RPC dispatch against a simulated radio node",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.scenario, "scenario", "", "YAML scenario file (default: built in demo)")
	root.PersistentFlags().Int64Var(&opts.seed, "seed", 0, "link random seed (0 keeps the scenario's)")

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the scenario's calls through the dispatcher",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runScenario(opts)
		},
	}
	run.Flags().BoolVar(&opts.realtime, "realtime", false, "use the wall clock instead of virtual time")
	run.Flags().DurationVar(&opts.limit, "limit", defaultLimit, "stop after this much (virtual) time")
	run.Flags().StringVar(&opts.logLevel, "log-level", "state", "go-lll level: none, state, network, all")

	show := &cobra.Command{
		Use:   "scenario",
		Short: "Print the effective scenario as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadScenario(opts)
			if err != nil {
				return errors.Trace(err)
			}

			data, err := s.Marshal()
			if err != nil {
				return errors.Trace(err)
			}

			_, err = cmd.OutOrStdout().Write(data)

			return errors.Trace(err)
		},
	}

	root.AddCommand(run, show)

	return root
}

func loadScenario(opts *options) (*rpcq.Scenario, error) {
	s := rpcq.DefaultScenario()

	if opts.scenario != "" {
		var err error

		s, err = rpcq.LoadScenario(opts.scenario)
		if err != nil {
			return nil, errors.Trace(err)
		}
	}

	if opts.seed != 0 {
		s.Link.Seed = opts.seed
	}

	return s, nil
}

func runScenario(opts *options) error {
	ll.SetWriter(os.Stdout)
	rpcq.InitWithLogger(ll.Init("RPCQ", opts.logLevel)) // counters too
	count.SetResolution(count.HighRes)

	s, err := loadScenario(opts)
	if err != nil {
		return errors.Trace(err)
	}

	fmt.Println("=== RPC Queue Dispatch ===")
	fmt.Printf("Node %s, %d queued calls\n", s.Node, len(s.Calls))

	var events []rpcq.Event

	if opts.realtime {
		events, err = runRealtime(s)
	} else {
		events, err = runVirtual(s, opts.limit)
	}

	if err != nil {
		return errors.Trace(err)
	}

	for _, e := range events {
		fmt.Println(e)
	}

	count.LogCounters()
	fmt.Println("\n=== Dispatch Complete ===")

	return nil
}

func runVirtual(s *rpcq.Scenario, limit time.Duration) ([]rpcq.Event, error) {
	sim, err := rpcq.NewSimulation(s)
	if err != nil {
		return nil, errors.Trace(err)
	}

	events := sim.Run(limit)
	fmt.Printf("Virtual time elapsed: %v\n", sim.Loop.Elapsed())

	if sim.Dispatcher.State() != rpcq.StateDrained {
		return events, errors.Errorf("dispatcher %s after %v", sim.Dispatcher.State(), limit)
	}

	return events, errors.Trace(sim.Dispatcher.CloseErr())
}

func runRealtime(s *rpcq.Scenario) ([]rpcq.Event, error) {
	conf, err := s.LinkConf()
	if err != nil {
		return nil, errors.Trace(err)
	}

	loop := rpcq.NewClockLoop("clock-"+s.Node, clock.WallClock)
	link := rpcq.NewSimLink(conf, loop)
	node := rpcq.NewNode(s.Node)
	rpcq.DemoFirmware(node)
	link.Attach(node)

	d := rpcq.NewDispatcher(link, loop, rpcq.WithPreDelayAction(s.PreDelayAction(link)))
	if err := s.Enqueue(d, link); err != nil {
		return nil, errors.Trace(err)
	}

	sub := d.Events(1_000) //nolint:mnd

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, realtimeLimit)
	defer cancelTimeout()

	start := time.Now()

	loop.Post(d.Start)

	if err := loop.Run(ctx, d.Done()); err != nil {
		return nil, errors.Trace(err)
	}

	fmt.Printf("Wall time elapsed: %v\n", time.Since(start))

	var events []rpcq.Event

	for {
		select {
		case e := <-sub:
			events = append(events, e)
		default:
			return events, errors.Trace(d.CloseErr())
		}
	}
}
