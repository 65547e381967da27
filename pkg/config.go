package builder

import (
	"encoding/json"
	"os"
)

// Tie-break policy when two opposite-side hits are exactly equidistant in time.
const (
	TieBreakLowStrip   = "low-strip"
	TieBreakHighEnergy = "high-energy"
)

// Policy for recoil sectors missing one or more layers in the window.
const (
	RecoilPartialDrop   = "drop"
	RecoilPartialRetain = "retain"
)

// Policy for repeated hits on the same channel within one window.
const (
	DedupHighestEnergy = "highest-energy"
	DedupFirst         = "first"
)

type Configuration struct {
	FileIn       string `json:"file_in"`
	FileOut      string `json:"file_out"`
	SettingsFile string `json:"settings_file"`
	MaxEvents    int    `json:"max_events"`
	Skip         int    `json:"skip"`
	Verbosity    int    `json:"verbosity"`

	// All times are in ns on the common absolute timescale.
	BuildWindow       int64 `json:"build_window"`
	RollbackTolerance int64 `json:"rollback_tolerance"`
	SyncTolerance     int64 `json:"sync_tolerance"`
	ArrayPromptLow    int64 `json:"array_prompt_low"`
	ArrayPromptHigh   int64 `json:"array_prompt_high"`
	GammaPrompt       int64 `json:"gamma_prompt"`

	KeepArrayPOnly bool   `json:"keep_array_p_only"`
	ArrayTieBreak  string `json:"array_tie_break"`
	RecoilPartial  string `json:"recoil_partial"`
	DedupPolicy    string `json:"dedup_policy"`

	ProgressEvery int `json:"progress_every"`

	NoDB      bool   `json:"no_db"`
	Host      string `json:"host"`
	User      string `json:"user"`
	Passwd    string `json:"pass"`
	DBName    string `json:"dbname"`
	RunNumber int    `json:"run_number"`
}

var configuration Configuration = DefaultConfiguration()

func GetConfiguration() Configuration {
	return configuration
}

func SetConfiguration(config Configuration) {
	configuration = config
}

// DefaultConfiguration returns the builder defaults used when a field is
// absent from the configuration file.
func DefaultConfiguration() Configuration {
	var config Configuration
	config.MaxEvents = 1000000000
	config.Verbosity = 0
	config.BuildWindow = 3000
	config.RollbackTolerance = 50
	config.SyncTolerance = 100
	config.ArrayPromptLow = 0
	config.ArrayPromptHigh = 300
	config.GammaPrompt = 250
	config.KeepArrayPOnly = true
	config.ArrayTieBreak = TieBreakLowStrip
	config.RecoilPartial = RecoilPartialDrop
	config.DedupPolicy = DedupHighestEnergy
	config.ProgressEvery = 10000
	config.NoDB = false
	config.Host = "iss-daq.cern.ch"
	config.User = "issreader"
	config.Passwd = "readonly"
	config.DBName = "ISSCAL"
	return config
}

func LoadConfiguration(filename string) (Configuration, error) {
	config := DefaultConfiguration()

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = json.Unmarshal(data, &config)
	if err != nil {
		return config, err
	}
	return config, config.Validate()
}

// Validate reports fatal configuration errors. Processing never starts on a
// configuration that fails here.
func (c *Configuration) Validate() error {
	if c.BuildWindow <= 0 {
		return &ErrInvalidConfig{Field: "build_window", Reason: "must be positive"}
	}
	if c.RollbackTolerance < 0 {
		return &ErrInvalidConfig{Field: "rollback_tolerance", Reason: "must not be negative"}
	}
	if c.ArrayPromptLow < 0 || c.ArrayPromptHigh < c.ArrayPromptLow {
		return &ErrInvalidConfig{Field: "array_prompt", Reason: "bounds must satisfy 0 <= low <= high"}
	}
	switch c.ArrayTieBreak {
	case TieBreakLowStrip, TieBreakHighEnergy:
	default:
		return &ErrInvalidConfig{Field: "array_tie_break", Reason: "unknown policy " + c.ArrayTieBreak}
	}
	switch c.RecoilPartial {
	case RecoilPartialDrop, RecoilPartialRetain:
	default:
		return &ErrInvalidConfig{Field: "recoil_partial", Reason: "unknown policy " + c.RecoilPartial}
	}
	switch c.DedupPolicy {
	case DedupHighestEnergy, DedupFirst:
	default:
		return &ErrInvalidConfig{Field: "dedup_policy", Reason: "unknown policy " + c.DedupPolicy}
	}
	return nil
}
