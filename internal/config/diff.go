package config

import "github.com/mockmentor/mockmentor/pkg/types"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// storage changes require a restart and are reported as such.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// WeightsChanged is true when the scoring weight set differs. NewWeights
	// holds the replacement set (nil means reverting to defaults).
	WeightsChanged bool
	NewWeights     map[types.Dimension]float64

	// RestartRequired is true when oracle, embeddings, or storage settings
	// changed. Those are wired at startup and cannot be swapped live.
	RestartRequired bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !weightsEqual(old.Scoring.Weights, new.Scoring.Weights) {
		d.WeightsChanged = true
		d.NewWeights = new.Scoring.Weights
	}

	if old.Oracle != new.Oracle ||
		old.Embeddings != new.Embeddings ||
		old.Storage != new.Storage ||
		old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = true
	}

	return d
}

func weightsEqual(a, b map[types.Dimension]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for dim, w := range a {
		if b[dim] != w {
			return false
		}
	}
	return true
}
