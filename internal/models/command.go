package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/benmeehan/location-reporter/internal/constants"
)

// Command is a user action sent to the agent.
type Command struct {
	Action string `json:"action"`
}

// ParseCommand accepts either a JSON object ({"action":"report"}) or the bare action word.
func ParseCommand(payload []byte) (Command, error) {
	trimmed := strings.TrimSpace(string(payload))

	var cmd Command
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &cmd); err != nil {
			return Command{}, fmt.Errorf("invalid command payload: %w", err)
		}
	} else {
		cmd.Action = trimmed
	}
	cmd.Action = strings.ToLower(strings.TrimSpace(cmd.Action))

	switch cmd.Action {
	case constants.ActionStartUpdates, constants.ActionStopUpdates, constants.ActionReport:
		return cmd, nil
	default:
		return Command{}, fmt.Errorf("unknown command action %q", cmd.Action)
	}
}
