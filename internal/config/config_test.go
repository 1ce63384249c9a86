package config

import (
	"os"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	os.Clearenv()
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   any
		expected any
	}{
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 60 * time.Second},
		{"TokenExpiry", cfg.Auth.TokenExpiry, 24 * time.Hour},
		{"LockoutThreshold", cfg.Auth.LockoutThreshold, 5},
		{"LockoutDuration", cfg.Auth.LockoutDuration, 2 * time.Hour},
		{"PasswordHash", cfg.Auth.PasswordHash, "bcrypt"},
		{"MailProvider", cfg.Mail.Provider, "log"},
		{"NotifyTransport", cfg.Notify.Transport, "memory"},
		{"NotifyRetryBackoff", cfg.Notify.RetryBackoff, 500 * time.Millisecond},
		{"LoginMax", cfg.RateLimit.LoginMax, 5},
		{"AppointmentMax", cfg.RateLimit.AppointmentMax, 3},
		{"AppointmentWindow", cfg.RateLimit.AppointmentWindow, time.Hour},
		{"GeneralMax", cfg.RateLimit.GeneralMax, 100},
		{"HospitalLocation", cfg.Hospital.Location.String(), "UTC"},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestLoad_HospitalTimezone(t *testing.T) {
	setRequired(t)
	defer os.Clearenv()

	os.Setenv("HOSPITAL_TIMEZONE", "Africa/Lagos")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if got := cfg.Hospital.Location.String(); got != "Africa/Lagos" {
		t.Errorf("Location = %q, want Africa/Lagos", got)
	}

	os.Setenv("HOSPITAL_TIMEZONE", "Mars/Olympus")
	if _, err := Load(); err == nil {
		t.Error("Load() accepted an unknown time zone")
	}
}

func TestLoad_CustomTimeouts(t *testing.T) {
	setRequired(t)
	os.Setenv("SERVER_READ_TIMEOUT", "30s")
	os.Setenv("SERVER_WRITE_TIMEOUT", "45s")
	os.Setenv("LOCKOUT_DURATION", "30m")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout: got %v, want 30s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 45*time.Second {
		t.Errorf("WriteTimeout: got %v, want 45s", cfg.Server.WriteTimeout)
	}
	if cfg.Auth.LockoutDuration != 30*time.Minute {
		t.Errorf("LockoutDuration: got %v, want 30m", cfg.Auth.LockoutDuration)
	}
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	setRequired(t)
	os.Setenv("SERVER_READ_TIMEOUT", "not-a-duration")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout with invalid value: got %v, want %v", cfg.Server.ReadTimeout, 15*time.Second)
	}
}

func TestLoad_RequiredValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing db password", map[string]string{"JWT_SECRET": "test-secret-32-characters-long!"}},
		{"missing jwt secret", map[string]string{"DB_PASSWORD": "test"}},
		{"weak jwt secret", map[string]string{"DB_PASSWORD": "test", "JWT_SECRET": "short"}},
		{"half rsa config", map[string]string{"DB_PASSWORD": "test", "JWT_PRIVATE_KEY_PATH": "/keys/private.pem"}},
		{"unknown hash", map[string]string{"DB_PASSWORD": "test", "JWT_SECRET": "test-secret-32-characters-long!", "PASSWORD_HASH": "md5"}},
		{"unknown mail provider", map[string]string{"DB_PASSWORD": "test", "JWT_SECRET": "test-secret-32-characters-long!", "MAIL_PROVIDER": "carrier-pigeon"}},
		{"unknown transport", map[string]string{"DB_PASSWORD": "test", "JWT_SECRET": "test-secret-32-characters-long!", "NOTIFY_TRANSPORT": "kafka"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			defer os.Clearenv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			if _, err := Load(); err == nil {
				t.Errorf("Load() = nil, want error")
			}
		})
	}
}

func TestLoad_RSAKeysReplaceSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("JWT_PRIVATE_KEY_PATH", "/keys/private.pem")
	os.Setenv("JWT_PUBLIC_KEY_PATH", "/keys/public.pem")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if !cfg.Auth.UsesRSA() {
		t.Errorf("UsesRSA() = false, want true")
	}
}

func TestParseAllowedOrigins(t *testing.T) {
	os.Clearenv()
	defer os.Clearenv()

	if got := parseAllowedOrigins("production"); len(got) != 0 {
		t.Errorf("production default origins = %v, want none", got)
	}

	os.Setenv("ALLOWED_ORIGINS", "https://hospital.example, https://admin.hospital.example")
	got := parseAllowedOrigins("production")
	if len(got) != 2 || got[1] != "https://admin.hospital.example" {
		t.Errorf("parseAllowedOrigins() = %v", got)
	}
}
