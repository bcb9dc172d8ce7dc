// Package scan drives the indicator pipeline across the symbol x interval
// matrix: it decides which pairs are due at each clock tick, claims each
// pair at most once per tick and runs fetch, compute, detect and notify on
// a bounded worker pool.
package scan

import (
	"fmt"
	"sort"
	"time"

	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/model"
)

// SafetyRule names the catch-all rule that rescans every pair.
const SafetyRule = "safety"

// Tick is a logical scheduling instant, truncated to the wall-clock minute.
// ID is the Unix minute and is shared by every rule due at that instant.
type Tick struct {
	Time time.Time
	ID   int64
}

// NewTick truncates t to its minute.
func NewTick(t time.Time) Tick {
	m := t.Truncate(time.Minute)
	return Tick{Time: m, ID: m.Unix() / 60}
}

func (t Tick) String() string {
	return fmt.Sprintf("%d(%s)", t.ID, t.Time.UTC().Format("2006-01-02T15:04Z"))
}

// Rule fires every Period, offset by Phase, counted from midnight in Loc.
// A nil Loc means the table's zone.
type Rule struct {
	Name   string
	Period time.Duration
	Phase  time.Duration
	Loc    *time.Location
	Pairs  []model.Pair
}

// Due reports whether the rule fires at tick. loc is used when the rule
// carries no zone of its own.
func (r Rule) Due(tick Tick, loc *time.Location) bool {
	period := int(r.Period / time.Minute)
	if period <= 0 {
		return false
	}
	if r.Loc != nil {
		loc = r.Loc
	}
	local := tick.Time.In(loc)
	minuteOfDay := local.Hour()*60 + local.Minute()
	phase := int(r.Phase / time.Minute)
	return ((minuteOfDay-phase)%period+period)%period == 0
}

// Job is one claimed unit of work: evaluate Pair at Tick because Rule fired.
type Job struct {
	Pair model.Pair
	Tick Tick
	Rule string
}

// Table is the sorted, immutable rule list.
type Table struct {
	rules []Rule
	loc   *time.Location
}

// BuildTable creates one rule per interval over every symbol plus, when
// safetyPeriod > 0, a safety rule over every pair. Interval rules follow
// the exchanges' bar boundaries, which are counted from UTC midnight; the
// safety rule counts in loc. Rules are sorted by period, then name.
func BuildTable(symbols []string, intervals []model.Interval, safetyPeriod time.Duration, loc *time.Location) *Table {
	if loc == nil {
		loc = time.UTC
	}
	rules := make([]Rule, 0, len(intervals)+1)
	for _, iv := range intervals {
		rules = append(rules, Rule{
			Name:   "interval:" + iv.Name,
			Period: iv.Duration(),
			Loc:    time.UTC,
			Pairs:  model.Pairs(symbols, []model.Interval{iv}),
		})
	}
	if safetyPeriod > 0 {
		rules = append(rules, Rule{
			Name:   SafetyRule,
			Period: safetyPeriod,
			Pairs:  model.Pairs(symbols, intervals),
		})
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Period != rules[j].Period {
			return rules[i].Period < rules[j].Period
		}
		return rules[i].Name < rules[j].Name
	})
	return &Table{rules: rules, loc: loc}
}

// Rules returns a copy of the rule list.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Location is the zone of the safety rule and of message timestamps.
func (t *Table) Location() *time.Location { return t.loc }

// Due returns the rules that fire at tick, in table order.
func (t *Table) Due(tick Tick) []Rule {
	var due []Rule
	for _, r := range t.rules {
		if r.Due(tick, t.loc) {
			due = append(due, r)
		}
	}
	return due
}

// Jobs expands the due rules into candidate jobs. A pair listed by several
// rules appears once per rule; the deduper removes the repeats.
func (t *Table) Jobs(tick Tick) []Job {
	var jobs []Job
	for _, r := range t.Due(tick) {
		for _, p := range r.Pairs {
			jobs = append(jobs, Job{Pair: p, Tick: tick, Rule: r.Name})
		}
	}
	return jobs
}
