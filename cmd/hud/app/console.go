package app

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/flybot-groundstation/internal/airframe"
)

const (
	actionNone action = iota
	actionCommand
	actionSet
	actionRestore
	actionConfig
	actionReconnect
)

type action int

// consoleCommand is one parsed line of operator input.
type consoleCommand struct {
	action action
	key    string
	value  float64
	text   string
}

// parseCommand interprets an operator line. Lines that are not a console
// keyword are forwarded to the flight controller verbatim.
func parseCommand(line string) (consoleCommand, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return consoleCommand{action: actionNone}, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "set":
		if len(fields) != 3 {
			return consoleCommand{}, errors.New("usage: set <key> <value>")
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return consoleCommand{}, fmt.Errorf("invalid value '%s': %w", fields[2], err)
		}
		return consoleCommand{action: actionSet, key: fields[1], value: v}, nil

	case "restore":
		if len(fields) != 2 {
			return consoleCommand{}, errors.New("usage: restore <key>")
		}
		return consoleCommand{action: actionRestore, key: fields[1]}, nil

	case "config":
		return consoleCommand{action: actionConfig}, nil

	case "reconnect":
		return consoleCommand{action: actionReconnect}, nil

	default:
		return consoleCommand{action: actionCommand, text: line}, nil
	}
}

// printConfig lists the current record, marking keys that differ from their
// default with '*'.
func printConfig(w io.Writer, current, defaults airframe.Record) error {
	if current == nil {
		_, err := fmt.Fprintln(w, "configuration not loaded")
		return err
	}

	modified := make(map[string]struct{})
	if defaults != nil {
		for _, k := range airframe.Modified(current, defaults) {
			modified[k] = struct{}{}
		}
	}

	for _, k := range current.Keys() {
		mark := ""
		if _, ok := modified[k]; ok {
			mark = " *"
			if def, ok := defaults[k]; ok {
				mark += " (default " + humanize.Ftoa(def) + ")"
			}
		}
		if _, err := fmt.Fprintf(w, "%-20s %s%s\n", k, humanize.Ftoa(current[k]), mark); err != nil {
			return err
		}
	}

	return nil
}
