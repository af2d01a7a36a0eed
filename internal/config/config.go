// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for controller timings and settings.
//
// Two kinds of values live here: user-adjustable settings (the toggles and
// timing sliders a player can change while playing, see Settings) and fixed
// timings that describe the game rules the controllers are tuned against.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// =============================================================================
// USER SETTINGS (adjustable at runtime)
// =============================================================================

// Slider bounds for the adjustable timing windows, in seconds.
const (
	MinWindowSeconds = 0.0
	MaxWindowSeconds = 3.0
)

// TranquilSettings are the adjustable settings of the threat-driven controller.
type TranquilSettings struct {
	Enabled                  bool    `yaml:"enabled" json:"enabled"`
	AbuseOnMyAttacks         bool    `yaml:"abuse_on_my_attacks" json:"abuseOnMyAttacks"`
	ForceCycleCatchUp        bool    `yaml:"force_cycle_catch_up" json:"forceCycleCatchUp"`
	HoldDisassembleKey       string  `yaml:"hold_disassemble_key" json:"holdDisassembleKey"`
	ThreatCooldown           float64 `yaml:"threat_cooldown" json:"threatCooldown"`                     // seconds
	RecentDamageThreatWindow float64 `yaml:"recent_damage_threat_window" json:"recentDamageThreatWindow"` // seconds
	DamageDebuffThreatWindow float64 `yaml:"damage_debuff_threat_window" json:"damageDebuffThreatWindow"` // seconds
}

// KhandaSettings are the adjustable settings of the cast-intercept controller.
type KhandaSettings struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Settings is the complete adjustable surface.
type Settings struct {
	Tranquil TranquilSettings `yaml:"tranquil" json:"tranquil"`
	Khanda   KhandaSettings   `yaml:"khanda" json:"khanda"`
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		Tranquil: TranquilSettings{
			Enabled:                  true,
			AbuseOnMyAttacks:         true,
			ForceCycleCatchUp:        false,
			HoldDisassembleKey:       "N",
			ThreatCooldown:           0.4,
			RecentDamageThreatWindow: 0.95,
			DamageDebuffThreatWindow: 0.75,
		},
		Khanda: KhandaSettings{
			Enabled: true,
		},
	}
}

// Normalize clamps slider values into range and rounds them to the slider
// resolution of 10ms.
func (s Settings) Normalize() Settings {
	s.Tranquil.ThreatCooldown = clampWindow(s.Tranquil.ThreatCooldown)
	s.Tranquil.RecentDamageThreatWindow = clampWindow(s.Tranquil.RecentDamageThreatWindow)
	s.Tranquil.DamageDebuffThreatWindow = clampWindow(s.Tranquil.DamageDebuffThreatWindow)
	return s
}

func clampWindow(v float64) float64 {
	if v < MinWindowSeconds {
		v = MinWindowSeconds
	}
	if v > MaxWindowSeconds {
		v = MaxWindowSeconds
	}
	return float64(int(v*100+0.5)) / 100
}

// =============================================================================
// FIXED TIMINGS (game rules the controllers are tuned against)
// =============================================================================

// TranquilTimings holds the fixed timings of the threat-driven controller.
type TranquilTimings struct {
	CycleInterval            float64 // base anti-stick cycle interval, seconds
	InitialDisassembleWindow float64 // how long after assembly a split is allowed
	WindowEpsilon            float64
	OwnAttackThreatBuffer    float64
	ReassembleRetryDelay     float64
	UnlockDelayMin           float64
	UnlockDelayMax           float64
	ProjectileLifetime       float64 // fallback when the host reports no expiry

	DisassembleCooldown         time.Duration
	CriticalDisassembleCooldown time.Duration
	CombineCooldown             time.Duration

	EnemyThreatRadius     float64
	CreepThreatExtraRange float64
	CreepAttackRangeFloor float64
}

// DefaultTranquilTimings returns the tuned defaults.
func DefaultTranquilTimings() TranquilTimings {
	return TranquilTimings{
		CycleInterval:            7.0,
		InitialDisassembleWindow: 10.0,
		WindowEpsilon:            0.03,
		OwnAttackThreatBuffer:    0.08,
		ReassembleRetryDelay:     0.1,
		UnlockDelayMin:           0.133,
		UnlockDelayMax:           0.165,
		ProjectileLifetime:       2.5,

		DisassembleCooldown:         120 * time.Millisecond,
		CriticalDisassembleCooldown: 50 * time.Millisecond,
		CombineCooldown:             150 * time.Millisecond,

		EnemyThreatRadius:     450,
		CreepThreatExtraRange: 80,
		CreepAttackRangeFloor: 150,
	}
}

// KhandaTimings holds the fixed timings of the cast-intercept controller.
type KhandaTimings struct {
	WindowEpsilon         float64
	ReassembleRetryDelay  float64
	UnlockDelayMin        float64
	UnlockDelayMax        float64
	CastWindowExtraBuffer float64
	IntentTimeout         float64 // pending cast abandoned without a phase signal

	DisassembleCooldown         time.Duration
	CriticalDisassembleCooldown time.Duration
	CombineCooldown             time.Duration
}

// DefaultKhandaTimings returns the tuned defaults.
func DefaultKhandaTimings() KhandaTimings {
	return KhandaTimings{
		WindowEpsilon:         0.03,
		ReassembleRetryDelay:  0.1,
		UnlockDelayMin:        0.132,
		UnlockDelayMax:        0.165,
		CastWindowExtraBuffer: 0.08,
		IntentTimeout:         8.0,

		DisassembleCooldown:         120 * time.Millisecond,
		CriticalDisassembleCooldown: 50 * time.Millisecond,
		CombineCooldown:             150 * time.Millisecond,
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds process level settings.
type ServerConfig struct {
	APIAddr      string
	DebugAddr    string
	SocketPath   string
	EventLogPath string
	JournalPath  string
	SettingsPath string
	APIToken     string // bearer token for mutating API routes, empty disables
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		APIAddr:      "127.0.0.1:7480",
		DebugAddr:    "127.0.0.1:6060",
		SocketPath:   "/tmp/splitguard.sock",
		EventLogPath: "decisions.jsonl",
		JournalPath:  "splitguard.db",
		SettingsPath: "settings.yaml",
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	cfg.APIAddr = getEnvString("SPLITGUARD_API_ADDR", cfg.APIAddr)
	cfg.DebugAddr = getEnvString("SPLITGUARD_DEBUG_ADDR", cfg.DebugAddr)
	cfg.SocketPath = getEnvString("SPLITGUARD_SOCKET", cfg.SocketPath)
	cfg.EventLogPath = getEnvString("EVENT_LOG_PATH", cfg.EventLogPath)
	cfg.JournalPath = getEnvString("JOURNAL_PATH", cfg.JournalPath)
	cfg.SettingsPath = getEnvString("SETTINGS_PATH", cfg.SettingsPath)
	cfg.APIToken = os.Getenv("SPLITGUARD_API_TOKEN")

	return cfg
}

// SettingsFromEnv applies environment overrides on top of s.
func SettingsFromEnv(s Settings) Settings {
	if os.Getenv("TRANQUIL_ENABLED") == "false" {
		s.Tranquil.Enabled = false
	}
	if os.Getenv("KHANDA_ENABLED") == "false" {
		s.Khanda.Enabled = false
	}
	if os.Getenv("TRANQUIL_FORCE_CATCH_UP") == "true" {
		s.Tranquil.ForceCycleCatchUp = true
	}
	if v := getEnvFloat("TRANQUIL_THREAT_COOLDOWN", -1); v >= 0 {
		s.Tranquil.ThreatCooldown = v
	}
	if v := getEnvFloat("TRANQUIL_RECENT_DAMAGE_WINDOW", -1); v >= 0 {
		s.Tranquil.RecentDamageThreatWindow = v
	}
	if v := getEnvFloat("TRANQUIL_DAMAGE_DEBUFF_WINDOW", -1); v >= 0 {
		s.Tranquil.DamageDebuffThreatWindow = v
	}
	return s.Normalize()
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server          ServerConfig
	Settings        Settings
	TranquilTimings TranquilTimings
	KhandaTimings   KhandaTimings
}

// Load returns the complete configuration with environment overrides.
// A settings file, when present, is layered between defaults and env.
func Load() (AppConfig, error) {
	server := ServerFromEnv()

	settings := DefaultSettings()
	if server.SettingsPath != "" {
		fromFile, err := ReadSettingsFile(server.SettingsPath)
		switch {
		case err == nil:
			settings = fromFile
		case errors.Is(err, os.ErrNotExist):
		default:
			return AppConfig{}, err
		}
	}

	return AppConfig{
		Server:          server,
		Settings:        SettingsFromEnv(settings),
		TranquilTimings: DefaultTranquilTimings(),
		KhandaTimings:   DefaultKhandaTimings(),
	}, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
