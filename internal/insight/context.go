// Package insight builds LLM prompt context from health data and requests
// natural-language insights from a completion API.
package insight

import (
	"fmt"
	"sort"
	"strings"
)

// Entry caps: the context is prompt material, not an export, so only the
// most recent records per category are kept regardless of input size.
const (
	maxOuraEntries    = 7
	maxStravaWorkouts = 10
)

// HealthData is the client-supplied bundle of raw provider responses.
// Shapes mirror the provider APIs; unrecognized fields are ignored.
type HealthData struct {
	Oura   OuraBundle   `json:"oura"`
	Strava StravaBundle `json:"strava"`
}

// OuraBundle groups the Oura collections, each in the API's {data: [...]}
// envelope.
type OuraBundle struct {
	Sleep       DailySleepList     `json:"sleep"`
	Readiness   DailyReadinessList `json:"readiness"`
	SleepDetail SleepRecordList    `json:"sleep_detail"`
	Activity    DailyActivityList  `json:"activity"`
}

// StravaBundle carries the Strava activities list, newest first as the
// provider returns it.
type StravaBundle struct {
	Activities []Workout `json:"activities"`
}

type DailySleepList struct {
	Data []DailySleep `json:"data"`
}

type DailyReadinessList struct {
	Data []DailyReadiness `json:"data"`
}

type SleepRecordList struct {
	Data []SleepRecord `json:"data"`
}

type DailyActivityList struct {
	Data []DailyActivity `json:"data"`
}

// DailySleep is one Oura daily sleep score.
type DailySleep struct {
	Day   string `json:"day"`
	Score *int   `json:"score"`
}

// DailyReadiness is one Oura daily readiness score with optional
// contributor sub-scores.
type DailyReadiness struct {
	Day          string         `json:"day"`
	Score        *int           `json:"score"`
	Contributors map[string]int `json:"contributors"`
}

// SleepRecord is one detailed Oura sleep session. Durations arrive in
// seconds.
type SleepRecord struct {
	Day               string   `json:"day"`
	AverageHRV        *float64 `json:"average_hrv"`
	LowestHeartRate   *float64 `json:"lowest_heart_rate"`
	DeepSleepDuration *int     `json:"deep_sleep_duration"`
	RemSleepDuration  *int     `json:"rem_sleep_duration"`
	Efficiency        *int     `json:"efficiency"`
}

// DailyActivity is one Oura daily activity summary. HighActivityTime is in
// seconds.
type DailyActivity struct {
	Day              string `json:"day"`
	Steps            *int   `json:"steps"`
	ActiveCalories   *int   `json:"active_calories"`
	HighActivityTime *int   `json:"high_activity_time"`
}

// Workout is one Strava activity. Distance is in meters, MovingTime in
// seconds.
type Workout struct {
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	StartDateLocal   string   `json:"start_date_local"`
	Distance         *float64 `json:"distance"`
	MovingTime       *int     `json:"moving_time"`
	AverageHeartrate *float64 `json:"average_heartrate"`
}

// BuildHealthContext renders the supplied provider data as a condensed
// plain-text block for use as LLM prompt context. Oura categories keep
// their last 7 entries in the order given; Strava workouts keep the first
// 10. Absent categories produce no section; missing optional fields render
// as "N/A". Inputs are never mutated.
func BuildHealthContext(data HealthData) string {
	var b strings.Builder

	if sleeps := lastN(data.Oura.Sleep.Data, maxOuraEntries); len(sleeps) > 0 {
		b.WriteString("## Sleep Scores\n")
		for _, s := range sleeps {
			fmt.Fprintf(&b, "%s: score %s\n", s.Day, intOrNA(s.Score))
		}
		b.WriteString("\n")
	}

	if readiness := lastN(data.Oura.Readiness.Data, maxOuraEntries); len(readiness) > 0 {
		b.WriteString("## Readiness Scores\n")
		for _, r := range readiness {
			fmt.Fprintf(&b, "%s: score %s%s\n", r.Day, intOrNA(r.Score), contributorSuffix(r.Contributors))
		}
		b.WriteString("\n")
	}

	if records := lastN(data.Oura.SleepDetail.Data, maxOuraEntries); len(records) > 0 {
		b.WriteString("## Sleep Details\n")
		for _, rec := range records {
			fmt.Fprintf(&b, "%s: HRV %sms, resting HR %sbpm, deep %smin, REM %smin, efficiency %s%%\n",
				rec.Day,
				floatOrNA(rec.AverageHRV),
				floatOrNA(rec.LowestHeartRate),
				minutesOrNA(rec.DeepSleepDuration),
				minutesOrNA(rec.RemSleepDuration),
				intOrNA(rec.Efficiency))
		}
		b.WriteString("\n")
	}

	if days := lastN(data.Oura.Activity.Data, maxOuraEntries); len(days) > 0 {
		b.WriteString("## Daily Activity\n")
		for _, d := range days {
			fmt.Fprintf(&b, "%s: %s steps, %s active kcal, %smin high activity\n",
				d.Day,
				intOrNA(d.Steps),
				intOrNA(d.ActiveCalories),
				minutesOrNA(d.HighActivityTime))
		}
		b.WriteString("\n")
	}

	if workouts := data.Strava.Activities; len(workouts) > 0 {
		if len(workouts) > maxStravaWorkouts {
			workouts = workouts[:maxStravaWorkouts]
		}
		b.WriteString("## Recent Workouts\n")
		for _, w := range workouts {
			b.WriteString(formatWorkout(w))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// formatWorkout renders one Strava activity as a single line, e.g.
// "2024-01-01: Run - Morning Run, 5.0km, 30min".
func formatWorkout(w Workout) string {
	day := w.StartDateLocal
	if len(day) > 10 {
		day = day[:10]
	}

	dist := "N/A"
	if w.Distance != nil {
		dist = fmt.Sprintf("%.1fkm", *w.Distance/1000)
	}
	dur := "N/A"
	if w.MovingTime != nil {
		dur = fmt.Sprintf("%dmin", *w.MovingTime/60)
	}

	line := fmt.Sprintf("%s: %s - %s, %s, %s", day, w.Type, w.Name, dist, dur)
	if w.AverageHeartrate != nil {
		line += fmt.Sprintf(", avg HR %.0fbpm", *w.AverageHeartrate)
	}
	return line
}

func contributorSuffix(contributors map[string]int) string {
	if len(contributors) == 0 {
		return ""
	}
	keys := make([]string, 0, len(contributors))
	for k := range contributors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", k, contributors[k]))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func intOrNA(v *int) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *v)
}

func floatOrNA(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.0f", *v)
}

func minutesOrNA(seconds *int) string {
	if seconds == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *seconds/60)
}

// lastN returns the trailing n elements without copying or mutating.
func lastN[T any](in []T, n int) []T {
	if len(in) > n {
		return in[len(in)-n:]
	}
	return in
}
