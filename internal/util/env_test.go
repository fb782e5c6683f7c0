package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{"unset uses default true", "", true, true},
		{"unset uses default false", "", false, false},
		{"true", "true", false, true},
		{"TRUE", "TRUE", false, true},
		{"1", "1", false, true},
		{"yes", "yes", false, true},
		{"on", "on", false, true},
		{"false", "false", true, false},
		{"0", "0", true, false},
		{"no", "no", true, false},
		{"off", "off", true, false},
		{"whitespace trimmed", "  true  ", false, true},
		{"garbage uses default", "maybe", true, true},
		{"garbage uses default false", "maybe", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "SYNCRELAY_TEST_BOOL"
			if tt.value != "" {
				t.Setenv(key, tt.value)
			}
			if got := ParseBoolEnv(key, tt.defaultValue); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetenvDefault(t *testing.T) {
	key := "SYNCRELAY_TEST_STRING"

	if got := GetenvDefault(key, "fallback"); got != "fallback" {
		t.Errorf("GetenvDefault unset = %q, want fallback", got)
	}

	t.Setenv(key, "value")
	if got := GetenvDefault(key, "fallback"); got != "value" {
		t.Errorf("GetenvDefault set = %q, want value", got)
	}
}
