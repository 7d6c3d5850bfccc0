package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/roman-kulish/flybot-groundstation/internal/airframe"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want consoleCommand
	}{
		{"", consoleCommand{action: actionNone}},
		{"   ", consoleCommand{action: actionNone}},
		{"set motor1.x 120", consoleCommand{action: actionSet, key: "motor1.x", value: 120}},
		{"set motor2.y -42.5", consoleCommand{action: actionSet, key: "motor2.y", value: -42.5}},
		{"restore motor1.x", consoleCommand{action: actionRestore, key: "motor1.x"}},
		{"config", consoleCommand{action: actionConfig}},
		{"reconnect", consoleCommand{action: actionReconnect}},
		{"  arm motors ", consoleCommand{action: actionCommand, text: "arm motors"}},
		{"settle", consoleCommand{action: actionCommand, text: "settle"}},
	}

	for _, tt := range tests {
		got, err := parseCommand(tt.line)
		if err != nil {
			t.Errorf("parseCommand(%q) failed: %v", tt.line, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseCommand(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestParseCommand_Invalid(t *testing.T) {
	for _, line := range []string{"set", "set motor1.x", "set motor1.x wide", "set a 1 2", "restore", "restore a b"} {
		if _, err := parseCommand(line); err == nil {
			t.Errorf("parseCommand(%q) expected error", line)
		}
	}
}

func TestPrintConfig(t *testing.T) {
	current := airframe.Record{"numMotors": 4, "motor1.x": 120, "motor1.y": 80}
	defaults := airframe.Record{"numMotors": 4, "motor1.x": 80, "motor1.y": 80}

	var buf bytes.Buffer
	if err := printConfig(&buf, current, defaults); err != nil {
		t.Fatalf("printConfig() failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", lines)
	}
	if !strings.HasPrefix(lines[0], "motor1.x") || !strings.Contains(lines[0], "120 * (default 80)") {
		t.Errorf("modified key line = %q", lines[0])
	}
	if strings.Contains(lines[1], "*") || strings.Contains(lines[2], "*") {
		t.Errorf("unmodified keys marked: %q", lines[1:])
	}

	buf.Reset()
	if err := printConfig(&buf, nil, defaults); err != nil {
		t.Fatalf("printConfig() failed: %v", err)
	}
	if !strings.Contains(buf.String(), "not loaded") {
		t.Errorf("output without record = %q", buf.String())
	}
}
