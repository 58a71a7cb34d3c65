package console

import (
	"encoding/json"
	"errors"
)

// Outbound frame types.
const (
	FrameState    = "state"
	FrameNotice   = "notice"
	FrameAlert    = "alert"
	FrameError    = "error"
	FrameActivity = "activity"
)

var errUnknownCommand = errors.New("unknown command")

// Command is what the console client sends.
type Command struct {
	Action  string `json:"action"`
	ID      string `json:"id,omitempty"`
	Query   string `json:"query,omitempty"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Group   string `json:"group,omitempty"`
	Key     string `json:"key,omitempty"`
	Index   int    `json:"index,omitempty"`
	Confirm bool   `json:"confirm,omitempty"`
}

type Frame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func encode(f Frame) []byte {
	data, err := json.Marshal(f)
	if err != nil {
		data, _ = json.Marshal(Frame{Type: FrameError, Message: "encode: " + err.Error()})
	}
	return data
}
