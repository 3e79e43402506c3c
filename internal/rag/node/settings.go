package node

import "github.com/faqbridge/faqbridge-backend/internal/platform/envutil"

// Settings are the process-wide contract-enforcement toggles, resolved
// once at startup.
type Settings struct {
	ValidationEnabled    bool
	StrictMode           bool
	LogFiltering         bool
	LogViolations        bool
	FilterInputs         bool
	FilterOutputs        bool
	StrictRequiredInputs bool
}

func SettingsFromEnv() Settings {
	return Settings{
		ValidationEnabled:    envutil.Bool("VALIDATION_ENABLED", true),
		StrictMode:           envutil.Bool("STRICT_MODE", false),
		LogFiltering:         envutil.Bool("LOG_FILTERING", false),
		LogViolations:        envutil.Bool("LOG_VIOLATIONS", true),
		FilterInputs:         envutil.Bool("FILTER_INPUTS", true),
		FilterOutputs:        envutil.Bool("FILTER_OUTPUTS", true),
		StrictRequiredInputs: envutil.Bool("STRICT_REQUIRED_INPUTS", false),
	}
}

// strictInputs reports whether a missing required field fails dispatch.
func (s Settings) strictInputs() bool {
	return s.StrictMode || s.StrictRequiredInputs
}
