package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"clinicsched/internal/capture"
	"clinicsched/internal/gcal"
	"clinicsched/internal/ics"
	appLog "clinicsched/internal/log"
	"clinicsched/internal/scheduler"
	"clinicsched/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		listen      string
		snapshotPNG bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled refresh loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initApp(cmd)
			if err != nil {
				return err
			}
			if listen != "" {
				app.Config.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pipeline, err := app.Pipeline(ctx)
			if err != nil {
				return err
			}
			server := web.NewServer(app.Config, pipeline)
			pipeline.OnRefresh(func(*scheduler.Snapshot) { server.Invalidate() })
			if snapshotPNG {
				opts := capture.OptionsFromConfig(app.Config)
				pipeline.OnRefresh(func(*scheduler.Snapshot) {
					go func() {
						if err := capture.CaptureAgendaPNG(ctx, opts); err != nil {
							appLog.Error("agenda snapshot failed", err)
						}
					}()
				})
			}

			sched, err := scheduler.New(ctx, app.Config.RefreshCron, pipeline)
			if err != nil {
				return err
			}

			appLog.Info("clinicsched starting",
				"listen", app.Config.Listen,
				"timezone", app.Config.Timezone,
				"refresh", app.Config.RefreshCron,
				"horizon_days", app.Config.HorizonDays,
				"ics_count", len(app.Config.ICS),
				"appointment_count", len(app.Config.Appointments),
				"google", app.Config.Google.Enabled,
			)

			sched.Start()
			defer sched.Stop()

			err = web.StartServer(ctx, app.Config, server)
			appLog.Info("clinicsched exiting")
			return err
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().BoolVar(&snapshotPNG, "snapshot", false, "Capture the agenda PNG after every refresh")
	return cmd
}

func newAgendaCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "List upcoming occurrences of configured appointments and feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initApp(cmd)
			if err != nil {
				return err
			}
			if days > 0 {
				app.Config.HorizonDays = days
			}
			pipeline, err := app.Pipeline(cmd.Context())
			if err != nil {
				return err
			}
			start, end := pipeline.Horizon()
			res, err := pipeline.Expand(cmd.Context(), start, end)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			st := newStyler(out)
			l := app.Config.Describer()
			lastDay := ""
			for _, o := range res.Occurrences {
				day := o.Start.Format(time.DateOnly)
				if day != lastDay {
					fmt.Fprintln(out, st.title(fmt.Sprintf("%s, %d %s", l.Weekdays[o.Start.Weekday()], o.Start.Day(), l.Months[o.Start.Month()-1])))
					lastDay = day
				}
				line := "  " + formatSpan(o.Start, o.End, app.Location) + "  " + st.bold(o.Summary)
				if o.Rule != "" {
					line += "  " + st.muted(l.DescribeRule(o.Rule, o.RuleAnchor()))
				}
				fmt.Fprintln(out, line)
			}
			if len(res.Occurrences) == 0 {
				fmt.Fprintln(out, st.muted("nothing scheduled"))
			}
			for _, uid := range res.FallbackEvents {
				fmt.Fprintln(out, st.muted("expanded with the generic RRULE engine: "+uid))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Days to show (default from config horizon_days)")
	return cmd
}

func newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all seed appointments as an ICS calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initApp(cmd)
			if err != nil {
				return err
			}
			pipeline, err := app.Pipeline(cmd.Context())
			if err != nil {
				return err
			}
			appts, err := pipeline.Appointments(cmd.Context())
			if err != nil {
				return err
			}
			body := ics.ExportICS(appts, time.Now())
			if output == "" || output == "-" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(output, []byte(body), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d appointment(s) to %s\n", len(appts), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push configured appointments to Google Calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initApp(cmd)
			if err != nil {
				return err
			}
			syncer, err := app.Syncer(cmd.Context())
			if err != nil {
				return err
			}
			appts, err := app.Config.LocalAppointments(app.Location)
			if err != nil {
				return err
			}
			res, err := syncer.Push(cmd.Context(), appts)
			st := newStyler(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), st.bold(fmt.Sprintf("created %d, updated %d, failed %d", res.Created, res.Updated, res.Failed)))
			return err
		},
	}
}

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize Google Calendar access and save the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initApp(cmd)
			if err != nil {
				return err
			}
			g := app.Config.Google
			if err := gcal.Authorize(cmd.Context(), g.CredentialsPath, g.TokenPath, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token saved to %s\n", g.TokenPath)
			return nil
		},
	}
}

func newSnapshotCmd() *cobra.Command {
	var (
		url, output string
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture the /agenda page of a running server as PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initApp(cmd)
			if err != nil {
				return err
			}
			opts := capture.OptionsFromConfig(app.Config)
			if url != "" {
				opts.URL = url
			}
			if output != "" {
				opts.OutputPath = output
			}
			opts.Timeout = timeout

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := capture.CaptureAgendaPNG(ctx, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.OutputPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Agenda URL (default derived from listen)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "PNG path (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Capture timeout")
	return cmd
}
