package config

import "testing"

func validConfig() Config {
	return Config{
		RulesPath: "rules.yml",
		LogLevel:  "info",
		LogStyle:  "auto",
		IP:        "0.0.0.0",
		PullPort:  7101,
		PubPort:   7102,
		Rhwm:      1000,
		Shwm:      1000,
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_MissingRulesPath(t *testing.T) {
	c := validConfig()
	c.RulesPath = ""
	if err := c.Validate(); err == nil {
		t.Error("expected error for empty rules path")
	}
}

func TestValidate_PortTooLow(t *testing.T) {
	c := validConfig()
	c.PullPort = 80
	if err := c.Validate(); err == nil {
		t.Error("expected error for port below range")
	}
}

func TestValidate_PortTooHigh(t *testing.T) {
	c := validConfig()
	c.PubPort = 70000
	if err := c.Validate(); err == nil {
		t.Error("expected error for port above range")
	}
}

func TestValidate_ZeroHWM(t *testing.T) {
	c := validConfig()
	c.Rhwm = 0
	if err := c.Validate(); err == nil {
		t.Error("expected error for rhwm < 1")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	c := validConfig()
	c.LogLevel = "verbose"
	if err := c.Validate(); err == nil {
		t.Error("expected error for invalid log_level")
	}
}

func TestValidate_InvalidLogStyle(t *testing.T) {
	c := validConfig()
	c.LogStyle = "sometimes"
	if err := c.Validate(); err == nil {
		t.Error("expected error for invalid log_style")
	}
}

func TestValidate_BoundaryPortsAccepted(t *testing.T) {
	c := validConfig()
	c.PullPort = 1024
	c.PubPort = 65535
	if err := c.Validate(); err != nil {
		t.Errorf("expected boundary ports to be valid, got: %v", err)
	}
}
