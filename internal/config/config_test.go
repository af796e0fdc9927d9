package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	type want struct {
		runAddress     string
		backendAddress string
		sessionSecret  string
		timeZone       string
		sessionTTL     time.Duration
		overlapWait    time.Duration
		backendTimeout time.Duration
		backendRetries int
	}

	defaults := want{
		runAddress:     "localhost:8080",
		timeZone:       "UTC",
		sessionTTL:     30 * time.Minute,
		overlapWait:    3 * time.Second,
		backendTimeout: 10 * time.Second,
		backendRetries: 2,
	}

	tests := []struct {
		name  string
		env   map[string]string
		flags []string
		want  want
	}{
		{
			name:  "defaults",
			env:   map[string]string{},
			flags: []string{},
			want:  defaults,
		},
		{
			name: "env only",
			env: map[string]string{
				"RUN_ADDRESS":     "localhost:9999",
				"BACKEND_ADDRESS": "odoo.local:8069",
				"SESSION_SECRET":  "env-secret",
				"TIME_ZONE":       "Asia/Kolkata",
				"SESSION_TTL":     "1h",
				"OVERLAP_WAIT":    "500ms",
				"BACKEND_TIMEOUT": "5s",
				"BACKEND_RETRIES": "0",
			},
			flags: []string{},
			want: want{
				runAddress:     "localhost:9999",
				backendAddress: "odoo.local:8069",
				sessionSecret:  "env-secret",
				timeZone:       "Asia/Kolkata",
				sessionTTL:     time.Hour,
				overlapWait:    500 * time.Millisecond,
				backendTimeout: 5 * time.Second,
				backendRetries: 0,
			},
		},
		{
			name: "flags only",
			env:  map[string]string{},
			flags: []string{
				"-a", "localhost:7777",
				"-b", "http://odoo:8069",
				"-s", "flag-secret",
				"-z", "Europe/Moscow",
				"-t", "10m",
				"-w", "1s",
				"-backend-timeout", "2s",
				"-backend-retries", "4",
			},
			want: want{
				runAddress:     "localhost:7777",
				backendAddress: "http://odoo:8069",
				sessionSecret:  "flag-secret",
				timeZone:       "Europe/Moscow",
				sessionTTL:     10 * time.Minute,
				overlapWait:    time.Second,
				backendTimeout: 2 * time.Second,
				backendRetries: 4,
			},
		},
		{
			name: "env overrides flags",
			env: map[string]string{
				"RUN_ADDRESS":     "env:9000",
				"BACKEND_ADDRESS": "env-odoo:8069",
				"SESSION_TTL":     "45m",
			},
			flags: []string{
				"-a", "flag:8000",
				"-b", "flag-odoo:8069",
				"-t", "5m",
				"-backend-retries", "1",
			},
			want: want{
				runAddress:     "env:9000",
				backendAddress: "env-odoo:8069",
				timeZone:       "UTC",
				sessionTTL:     45 * time.Minute,
				overlapWait:    3 * time.Second,
				backendTimeout: 10 * time.Second,
				backendRetries: 1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			os.Args = append([]string{"test"}, tt.flags...)

			cfg, err := Parse()
			require.NoError(t, err)

			assert.Equal(t, tt.want.runAddress, cfg.RunAddress)
			assert.Equal(t, tt.want.backendAddress, cfg.BackendAddress)
			assert.Equal(t, tt.want.sessionSecret, cfg.SessionSecret)
			assert.Equal(t, tt.want.timeZone, cfg.TimeZone)
			assert.Equal(t, tt.want.sessionTTL, cfg.SessionTTL)
			assert.Equal(t, tt.want.overlapWait, cfg.OverlapWait)
			assert.Equal(t, tt.want.backendTimeout, cfg.BackendTimeout)
			assert.Equal(t, tt.want.backendRetries, cfg.BackendRetries)
		})
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		flags []string
	}{
		{name: "negative retries", flags: []string{"-backend-retries", "-1"}},
		{name: "zero overlap wait", flags: []string{"-w", "0s"}},
		{name: "malformed env duration", env: map[string]string{"SESSION_TTL": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			os.Args = append([]string{"test"}, tt.flags...)

			_, err := Parse()
			require.Error(t, err)
		})
	}
}
