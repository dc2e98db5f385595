package pattern

import (
	"strconv"
	"strings"
	"time"

	"github.com/hushlabs/hearth/pkg/provider/nlu"
)

// Builtin entity type names. Slots declared with these are parsed
// grammatically instead of matched against a gazetteer.
const (
	EntityNumber   = "hearth/number"
	EntityDuration = "hearth/duration"
	EntityDatetime = "hearth/datetime"
)

// numberWords maps spelled-out numbers to their values.
var numberWords = map[string]float64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17,
	"eighteen": 18, "nineteen": 19, "twenty": 20, "thirty": 30,
	"forty": 40, "fifty": 50, "sixty": 60, "seventy": 70,
	"eighty": 80, "ninety": 90, "hundred": 100, "thousand": 1000,
}

// durationUnits maps unit words to their length. Plural forms are normalised
// before lookup.
var durationUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
}

// parseNumberToken returns the numeric value of a single token, spelled out
// or in digits.
func parseNumberToken(token string) (float64, bool) {
	if v, ok := numberWords[token]; ok {
		return v, true
	}
	if v, err := strconv.ParseFloat(token, 64); err == nil {
		return v, true
	}
	return 0, false
}

// parseNumberSlot fills a number slot from the first numeric token of the
// utterance.
func parseNumberSlot(ss SlotSpec, tokens []string) *nlu.Slot {
	for _, t := range tokens {
		if v, ok := parseNumberToken(t); ok {
			return &nlu.Slot{
				Name:       ss.Name,
				Entity:     ss.Entity,
				RawValue:   t,
				Value:      nlu.NumberValue{Value: v},
				Confidence: 1,
			}
		}
	}
	return nil
}

// parseDurationSlot fills a duration slot from the first "<number> <unit>"
// token pair, or a bare unit ("an hour" reads as one hour).
func parseDurationSlot(ss SlotSpec, tokens []string) *nlu.Slot {
	for i, t := range tokens {
		unit, ok := durationUnits[singular(t)]
		if !ok {
			continue
		}
		count := 1.0
		raw := t
		if i > 0 {
			if v, numeric := parseNumberToken(tokens[i-1]); numeric {
				count = v
				raw = tokens[i-1] + " " + t
			}
		}
		return &nlu.Slot{
			Name:       ss.Name,
			Entity:     ss.Entity,
			RawValue:   raw,
			Value:      nlu.DurationValue{Value: time.Duration(count * float64(unit))},
			Confidence: 1,
		}
	}
	return nil
}

// parseDatetimeSlot fills a datetime slot from relative day words, anchored
// at now.
func parseDatetimeSlot(ss SlotSpec, tokens []string, now time.Time) *nlu.Slot {
	for _, t := range tokens {
		var (
			value time.Time
			grain nlu.Grain
		)
		switch t {
		case "now":
			value, grain = now, nlu.GrainSecond
		case "today":
			value, grain = startOfDay(now), nlu.GrainDay
		case "tomorrow":
			value, grain = startOfDay(now).AddDate(0, 0, 1), nlu.GrainDay
		case "yesterday":
			value, grain = startOfDay(now).AddDate(0, 0, -1), nlu.GrainDay
		case "tonight":
			value, grain = startOfDay(now).Add(20*time.Hour), nlu.GrainHour
		default:
			continue
		}
		precision := nlu.PrecisionExact
		if grain != nlu.GrainSecond {
			precision = nlu.PrecisionApproximate
		}
		return &nlu.Slot{
			Name:       ss.Name,
			Entity:     ss.Entity,
			RawValue:   t,
			Value:      nlu.InstantTimeValue{Value: value, Grain: grain, Precision: precision},
			Confidence: 1,
		}
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// singular strips a trailing plural "s" so "minutes" resolves like "minute".
func singular(token string) string {
	if len(token) > 1 && strings.HasSuffix(token, "s") {
		return token[:len(token)-1]
	}
	return token
}
