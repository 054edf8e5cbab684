package ui

// Config contains TUI-specific configuration.
type Config struct {
	HomeDir      string `env:"HOME"`
	GlamourStyle string `env:"GLAMOUR_STYLE"`

	// Initial mixer settings, from flags or the config file.
	Volume float64
	Muted  bool

	// ConfigPath, when set, is watched while the TUI runs; edits to the
	// file re-apply volume and mute without a restart.
	ConfigPath string

	// ReloadConfig re-reads the config file named by ConfigPath. Wired up
	// by package main so the UI stays ignorant of the config format.
	ReloadConfig func() (volume float64, muted bool, err error)

	// For debugging the UI.
	MeterFPS       int  `env:"SYNTHLINE_METER_FPS"       envDefault:"10"`
	GlamourEnabled bool `env:"SYNTHLINE_ENABLE_GLAMOUR" envDefault:"true"`
}
