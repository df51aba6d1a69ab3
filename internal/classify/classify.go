package classify

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies the lifecycle meaning of a classified output line.
type Kind string

const (
	KindProgress              Kind = "progress"
	KindConnectionEstablished Kind = "connection_established"
	KindDownloadStarted       Kind = "download_started"
	KindPercentUpdate         Kind = "percent_update"
	KindFatalError            Kind = "fatal_error"
	KindCompleted             Kind = "completed"
)

// Event is an immutable lifecycle event derived from one output line.
type Event struct {
	Kind    Kind
	Message string
	Percent float64
}

// Rules holds the indicator sets the classifier matches against. All
// comparisons are case-insensitive; indicators must be lowercase.
type Rules struct {
	FatalIndicators      []string
	BenignIndicators     []string
	CompletionIndicators []string
	PeerIndicators       []string
	ProgressIndicators   []string
}

// DefaultRules returns the indicator sets known to cover aria2c console
// output. The tool imposes no grammar on its output, so the sets are a
// best-effort policy extended via configuration rather than exhaustive.
func DefaultRules() Rules {
	return Rules{
		FatalIndicators:      []string{"error", "failed", "cannot", "unable"},
		BenignIndicators:     []string{"dht", "server error"},
		CompletionIndicators: []string{"download complete", "finished", "completed successfully"},
		PeerIndicators:       []string{"connecting", "connected", "peer", "seeder"},
		ProgressIndicators:   []string{"dl:", "download", "completed"},
	}
}

// Classifier maps single output lines to lifecycle events. It retains no
// state between calls; classification of a line never depends on earlier
// lines.
type Classifier struct {
	rules Rules
}

// New constructs a classifier from the provided rules. Empty indicator sets
// fall back to the defaults so a partially-populated Rules value stays
// usable.
func New(rules Rules) *Classifier {
	defaults := DefaultRules()
	if len(rules.FatalIndicators) == 0 {
		rules.FatalIndicators = defaults.FatalIndicators
	}
	if len(rules.BenignIndicators) == 0 {
		rules.BenignIndicators = defaults.BenignIndicators
	}
	if len(rules.CompletionIndicators) == 0 {
		rules.CompletionIndicators = defaults.CompletionIndicators
	}
	if len(rules.PeerIndicators) == 0 {
		rules.PeerIndicators = defaults.PeerIndicators
	}
	if len(rules.ProgressIndicators) == 0 {
		rules.ProgressIndicators = defaults.ProgressIndicators
	}
	return &Classifier{rules: rules}
}

// Default constructs a classifier using DefaultRules.
func Default() *Classifier {
	return New(DefaultRules())
}

var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

// Classify maps one raw output line to at most one event. Rules are
// evaluated in priority order because the raw categories overlap; a line
// matching none of them is informational noise and produces no event.
func (c *Classifier) Classify(line string) (Event, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Event{}, false
	}
	lower := strings.ToLower(trimmed)

	if containsAny(lower, c.rules.FatalIndicators) && !containsAny(lower, c.rules.BenignIndicators) {
		return Event{Kind: KindFatalError, Message: trimmed}, true
	}
	if containsAny(lower, c.rules.CompletionIndicators) {
		return Event{Kind: KindCompleted, Message: trimmed}, true
	}
	// Metadata exchange proves a live peer connection even before any data
	// transfer begins.
	if strings.Contains(lower, "metadata") && strings.Contains(lower, "download") {
		return Event{Kind: KindConnectionEstablished, Message: trimmed}, true
	}
	if containsAny(lower, c.rules.PeerIndicators) {
		return Event{Kind: KindConnectionEstablished, Message: trimmed}, true
	}
	if strings.Contains(lower, "%") && containsAny(lower, c.rules.ProgressIndicators) {
		if percent, ok := extractPercent(trimmed); ok {
			return Event{Kind: KindPercentUpdate, Message: trimmed, Percent: percent}, true
		}
		return Event{Kind: KindDownloadStarted, Message: trimmed}, true
	}
	return Event{}, false
}

// extractPercent pulls the first numeric percentage out of a line. The
// parenthesised form "(42%)" aria2c prints in summaries is preferred; any
// bare "NN%" token is accepted as fallback.
func extractPercent(line string) (float64, bool) {
	if open := strings.Index(line, "("); open >= 0 {
		if closing := strings.Index(line[open:], "%)"); closing > 0 {
			candidate := strings.TrimSpace(line[open+1 : open+closing])
			if value, err := strconv.ParseFloat(candidate, 64); err == nil {
				return value, true
			}
		}
	}
	match := percentPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func containsAny(line string, indicators []string) bool {
	for _, indicator := range indicators {
		if indicator == "" {
			continue
		}
		if strings.Contains(line, indicator) {
			return true
		}
	}
	return false
}
