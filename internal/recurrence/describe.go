package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// Locale holds the phrases and calendar names used to describe a rule.
type Locale struct {
	Tag           string
	DoesNotRepeat string
	EveryDay      string
	EveryWeekday  string
	Custom        string
	WeeklyFormat  string    // weekday name
	MonthlyFormat string    // day of month
	YearlyFormat  string    // day of month, month name
	Weekdays      [7]string // indexed by time.Weekday
	Months        [12]string
}

var English = Locale{
	Tag:           "en",
	DoesNotRepeat: "does not repeat",
	EveryDay:      "every day",
	EveryWeekday:  "every weekday (Monday–Friday)",
	Custom:        "custom recurrence",
	WeeklyFormat:  "weekly: every %s",
	MonthlyFormat: "monthly: day %d",
	YearlyFormat:  "yearly: %d %s",
	Weekdays:      [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
	Months: [12]string{"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"},
}

var Portuguese = Locale{
	Tag:           "pt-BR",
	DoesNotRepeat: "não se repete",
	EveryDay:      "todos os dias",
	EveryWeekday:  "todos os dias úteis (segunda a sexta)",
	Custom:        "recorrência personalizada",
	WeeklyFormat:  "semanal: toda %s",
	MonthlyFormat: "mensal: dia %d",
	YearlyFormat:  "anual: %d de %s",
	Weekdays:      [7]string{"domingo", "segunda-feira", "terça-feira", "quarta-feira", "quinta-feira", "sexta-feira", "sábado"},
	Months: [12]string{"janeiro", "fevereiro", "março", "abril", "maio", "junho",
		"julho", "agosto", "setembro", "outubro", "novembro", "dezembro"},
}

// LookupLocale returns the locale for a language tag such as "pt-BR" or
// "pt". Unknown tags fall back to English.
func LookupLocale(tag string) Locale {
	t := strings.ToLower(strings.TrimSpace(tag))
	switch {
	case t == "pt" || strings.HasPrefix(t, "pt-") || strings.HasPrefix(t, "pt_"):
		return Portuguese
	}
	return English
}

// DescribeOption renders option anchored at seedStart in English.
func DescribeOption(option Option, seedStart time.Time) string {
	return English.DescribeOption(option, seedStart)
}

// DescribeRule renders rule anchored at seedStart in English.
func DescribeRule(rule string, seedStart time.Time) string {
	return English.DescribeRule(rule, seedStart)
}

// DescribeOption renders option as a sentence. A zero seedStart is replaced
// by the current time.
func (l Locale) DescribeOption(option Option, seedStart time.Time) string {
	if seedStart.IsZero() {
		seedStart = time.Now()
	}
	switch option {
	case OptionDaily:
		return l.EveryDay
	case OptionWeekdays:
		return l.EveryWeekday
	case OptionWeekly:
		return fmt.Sprintf(l.WeeklyFormat, l.Weekdays[seedStart.Weekday()])
	case OptionMonthly:
		return fmt.Sprintf(l.MonthlyFormat, seedStart.Day())
	case OptionYearly:
		return fmt.Sprintf(l.YearlyFormat, seedStart.Day(), l.Months[seedStart.Month()-1])
	}
	return l.DoesNotRepeat
}

// DescribeRule renders rule as a sentence, falling back to l.Custom for
// rules that no option maps to.
func (l Locale) DescribeRule(rule string, seedStart time.Time) string {
	if strings.TrimSpace(rule) == "" {
		return l.DoesNotRepeat
	}
	option, ok := resolve(rule)
	if !ok {
		return l.Custom
	}
	return l.DescribeOption(option, seedStart)
}

// ExternalRecurrence wraps rule in the list form external calendar APIs
// expect ("RRULE:..."). It returns nil for an empty rule.
func ExternalRecurrence(rule string) []string {
	r := strings.TrimSpace(rule)
	if len(r) >= len(rrulePrefix) && strings.EqualFold(r[:len(rrulePrefix)], rrulePrefix) {
		r = strings.TrimSpace(r[len(rrulePrefix):])
	}
	if r == "" {
		return nil
	}
	return []string{rrulePrefix + r}
}
