package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clinicsched/internal/recurrence"
	"clinicsched/internal/timeparse"
)

func newExpandCmd() *cobra.Command {
	var (
		rule, option, start, end, duration, from, to string
		days, maxIterations                          int
		asJSON                                       bool
	)
	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Expand an ad-hoc recurring appointment over a window",
		Example: `  clinicsched expand --option weekdays --start "2024-05-06 08:30" --duration 45m
  clinicsched expand --rule "FREQ=MONTHLY;BYMONTHDAY=31" --start 2024-01-31 --from 2024-01-01 --days 365`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initApp(cmd)
			if err != nil {
				return err
			}
			now := app.Now()

			seedStart, err := timeparse.ParseBound(start, now, app.Location)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			var seedEnd time.Time
			if end != "" {
				seedEnd, err = timeparse.ParseBound(end, now, app.Location)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
			} else {
				d, err := time.ParseDuration(duration)
				if err != nil {
					return fmt.Errorf("--duration: %w", err)
				}
				seedEnd = seedStart.Add(d)
			}

			if rule == "" {
				opt, err := recurrence.ParseOption(option)
				if err != nil {
					return err
				}
				rule, _ = recurrence.BuildRule(opt, seedStart)
			}

			windowStart := timeparse.StartOfDay(now)
			if from != "" {
				windowStart, err = timeparse.ParseBound(from, now, app.Location)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
			}
			windowEnd := windowStart.AddDate(0, 0, days)
			if to != "" {
				windowEnd, err = timeparse.ParseBound(to, now, app.Location)
				if err != nil {
					return fmt.Errorf("--to: %w", err)
				}
			}
			if maxIterations == 0 {
				maxIterations = app.Config.MaxIterations
			}

			occs := recurrence.Expand(recurrence.ExpandRequest{
				Rule:          rule,
				SeedStart:     seedStart,
				SeedEnd:       seedEnd,
				WindowStart:   windowStart,
				WindowEnd:     windowEnd,
				MaxIterations: maxIterations,
			})

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(occs)
			}

			st := newStyler(out)
			locale := app.Config.Describer()
			header := rule
			if header == "" {
				header = "(no rule)"
			}
			fmt.Fprintf(out, "%s  %s\n", st.title(header), st.muted(locale.DescribeRule(rule, seedStart)))
			for _, o := range occs {
				fmt.Fprintf(out, "%s  %s\n", formatSpan(o.Start, o.End, app.Location), st.muted(o.Key))
			}
			fmt.Fprintln(out, st.muted(fmt.Sprintf("%d occurrence(s) in [%s, %s)", len(occs),
				windowStart.Format("2006-01-02 15:04"), windowEnd.Format("2006-01-02 15:04"))))
			return nil
		},
	}
	cmd.Flags().StringVar(&rule, "rule", "", "Recurrence rule (FREQ=...;BYDAY=...)")
	cmd.Flags().StringVar(&option, "option", "", "Repeat option when --rule is empty (none, daily, weekdays, weekly, monthly, yearly)")
	cmd.Flags().StringVar(&start, "start", "", "Seed start (\"2024-05-06 08:30\", RFC3339 or natural language)")
	cmd.Flags().StringVar(&end, "end", "", "Seed end; overrides --duration")
	cmd.Flags().StringVar(&duration, "duration", "1h", "Seed duration")
	cmd.Flags().StringVar(&from, "from", "", "Window start (default: today)")
	cmd.Flags().StringVar(&to, "to", "", "Window end (default: --from plus --days)")
	cmd.Flags().IntVar(&days, "days", 14, "Window length in days when --to is empty")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Walk bound (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print occurrences as JSON")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func newRuleCmd() *cobra.Command {
	var start string
	cmd := &cobra.Command{
		Use:       "rule <option>",
		Short:     "Print the rule string for a repeat option",
		Args:      cobra.ExactArgs(1),
		ValidArgs: optionNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initApp(cmd)
			if err != nil {
				return err
			}
			opt, err := recurrence.ParseOption(args[0])
			if err != nil {
				return err
			}
			seed := app.Now()
			if start != "" {
				seed, err = timeparse.ParseBound(start, app.Now(), app.Location)
				if err != nil {
					return fmt.Errorf("--start: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			st := newStyler(out)
			rule, ok := recurrence.BuildRule(opt, seed)
			if !ok {
				fmt.Fprintln(out, st.muted(app.Config.Describer().DoesNotRepeat))
				return nil
			}
			fmt.Fprintln(out, st.bold(rule))
			fmt.Fprintln(out, strings.Join(recurrence.ExternalRecurrence(rule), "\n"))
			fmt.Fprintln(out, st.muted(app.Config.Describer().DescribeOption(opt, seed)))
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Seed start the rule is anchored to (default: now)")
	return cmd
}

func newDescribeCmd() *cobra.Command {
	var start, locale string
	cmd := &cobra.Command{
		Use:   "describe <rule>",
		Short: "Describe a rule in words and map it back to a repeat option",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initApp(cmd)
			if err != nil {
				return err
			}
			rule := ""
			if len(args) == 1 {
				rule = args[0]
			}
			var seed time.Time
			if start != "" {
				seed, err = timeparse.ParseBound(start, app.Now(), app.Location)
				if err != nil {
					return fmt.Errorf("--start: %w", err)
				}
			}
			l := app.Config.Describer()
			if locale != "" {
				l = recurrence.LookupLocale(locale)
			}

			out := cmd.OutOrStdout()
			st := newStyler(out)
			fmt.Fprintln(out, st.bold(l.DescribeRule(rule, seed)))
			support := "supported"
			if !recurrence.Supported(rule) {
				support = "outside the supported subset"
			}
			fmt.Fprintln(out, st.muted(fmt.Sprintf("option: %s, %s", recurrence.ResolveOption(rule), support)))
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Seed start used for weekday, day and month names")
	cmd.Flags().StringVar(&locale, "locale", "", "Description language (en, pt-BR); default from config")
	return cmd
}

func optionNames() []string {
	names := make([]string, 0, len(recurrence.Options))
	for _, o := range recurrence.Options {
		names = append(names, o.String())
	}
	return names
}

// formatSpan prints "Mon 2024-05-06 08:30–09:15", spelling out the end
// date when it differs from the start date.
func formatSpan(start, end time.Time, loc *time.Location) string {
	start, end = start.In(loc), end.In(loc)
	if start.Format(time.DateOnly) == end.Format(time.DateOnly) {
		return start.Format("Mon 2006-01-02 15:04") + "–" + end.Format("15:04")
	}
	return start.Format("Mon 2006-01-02 15:04") + " – " + end.Format("Mon 2006-01-02 15:04")
}
