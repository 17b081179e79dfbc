package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	cfg "github.com/maastricht-university/session-insights/config"
	"github.com/maastricht-university/session-insights/orchestrator"
)

var version = "dev"

// app is built once per invocation in PersistentPreRunE.
type app struct {
	conf *cfg.Root
	log  *logrus.Logger
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	a := &app{}

	cmd := &cobra.Command{
		Use:   "session-insights",
		Short: "Multi-modal analysis of recorded conversation sessions",
		Long: `session-insights merges the recordings of a session, runs speech,
language and facial-expression analysis over them and writes one
observational JSON report per session.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := cfg.Load(v)
			if err != nil {
				return err
			}
			a.conf = conf
			a.log = newLogger(conf, cmd.ErrOrStderr())
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "config file (default config/$CONFIG_ENV/config.yaml)")
	pf.String("log-level", "", "log level: trace, debug, info, warn, error")
	pf.String("storage", "", "session storage root")
	_ = v.BindPFlag("config", pf.Lookup("config"))
	_ = v.BindPFlag("pipeline.log_level", pf.Lookup("log-level"))
	_ = v.BindPFlag("paths.storage", pf.Lookup("storage"))

	cmd.AddCommand(newAnalyzeCommand(a))
	cmd.AddCommand(newReportCommand(a))
	cmd.AddCommand(newStatusCommand(a))
	cmd.AddCommand(newConfigCommand(a))
	return cmd
}

func execute() error {
	return newRootCommand().Execute()
}

func newAnalyzeCommand(a *app) *cobra.Command {
	var (
		scenario   bool
		scenarioID string
	)
	cmd := &cobra.Command{
		Use:   "analyze <session-id>...",
		Short: "Run the analysis pipeline for one or more sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, closeFn, err := buildPipeline(ctx, a.conf, a.log)
			if err != nil {
				return err
			}
			defer closeFn()
			runner := orchestrator.NewRunner(p, logrus.NewEntry(a.log))
			for _, id := range args {
				runner.Submit(ctx, orchestrator.Job{SessionID: id, Scenario: scenario, ScenarioID: scenarioID})
			}

			var errs []error
			layout := orchestrator.Layout{Root: a.conf.Paths.Storage}
			for _, res := range runner.Wait() {
				if res.Err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", res.Job.SessionID, res.Err))
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), layout.Session(res.Job.SessionID, res.Job.Scenario).Report)
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&scenario, "scenario", false, "sessions are scenario practice sessions")
	cmd.Flags().StringVar(&scenarioID, "scenario-id", "", "scenario whose steps slice the report (default from session metadata)")
	return cmd
}

func newReportCommand(a *app) *cobra.Command {
	var scenario bool
	cmd := &cobra.Command{
		Use:   "report <session-id>",
		Short: "Print the report of an analyzed session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeFn, err := buildPipeline(cmd.Context(), a.conf, a.log)
			if err != nil {
				return err
			}
			defer closeFn()
			b, err := p.Report(cmd.Context(), args[0], scenario)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	cmd.Flags().BoolVar(&scenario, "scenario", false, "look the session up among scenario sessions")
	return cmd
}

func newStatusCommand(a *app) *cobra.Command {
	var scenario bool
	cmd := &cobra.Command{
		Use:   "status <session-id>",
		Short: "Print the status record of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeFn, err := buildPipeline(cmd.Context(), a.conf, a.log)
			if err != nil {
				return err
			}
			defer closeFn()
			rec, err := p.Status(cmd.Context(), args[0], scenario)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
	cmd.Flags().BoolVar(&scenario, "scenario", false, "look the session up among scenario sessions")
	return cmd
}

func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := *a.conf
			if c.LLM.APIKey != "" {
				c.LLM.APIKey = "********"
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(&c)
		},
	}
}

func newLogger(c *cfg.Root, out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	if c.Pipeline.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(c.Pipeline.LogLvl)))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	return l
}
