package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type CommandKind int

const (
	CommandStart CommandKind = iota + 1
	CommandStop
	CommandSetDesiredDate
	CommandStatus
)

var commandNames = map[CommandKind]string{
	CommandStart:          "start",
	CommandStop:           "stop",
	CommandSetDesiredDate: "set-desired-date",
	CommandStatus:         "status",
}

func (k CommandKind) String() string {
	name, ok := commandNames[k]
	if !ok {
		return fmt.Sprintf("command(%d)", int(k))
	}
	return name
}

var ErrUnknownCommand = errors.New("unknown command")

func ParseCommandKind(s string) (CommandKind, error) {
	for kind, name := range commandNames {
		if name == s {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownCommand, s)
}

type Command struct {
	Kind    CommandKind
	Monitor string
	// the date for CommandSetDesiredDate
	Argument string
}

type Reply struct {
	Message string `json:"message"`
	State   State  `json:"state"`
}

type commandHandler func(m *Monitor, arg string) (string, error)

var commandHandlers = map[CommandKind]commandHandler{
	CommandStart: func(m *Monitor, _ string) (string, error) {
		if !m.Start() {
			return "Already monitoring", nil
		}
		return "Monitoring started", nil
	},
	CommandStop: func(m *Monitor, _ string) (string, error) {
		if !m.Stop() {
			return "Not monitoring", nil
		}
		return "Monitoring stopped", nil
	},
	CommandSetDesiredDate: func(m *Monitor, arg string) (string, error) {
		err := m.SetDesiredDate(arg)
		if err != nil {
			return "Invalid date", err
		}
		return fmt.Sprintf("Desired date set to %s", arg), nil
	},
	CommandStatus: func(m *Monitor, _ string) (string, error) {
		if m.Active() {
			return "Monitoring", nil
		}
		return "Not monitoring", nil
	},
}

// Dispatch applies a control command to the named monitor. the reply
// carries the monitor state after the command, also when it failed.
func (s *Supervisor) Dispatch(ctx context.Context, cmd Command) (Reply, error) {
	handler, ok := commandHandlers[cmd.Kind]
	if !ok {
		return Reply{}, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Kind)
	}
	m, err := s.Monitor(cmd.Monitor)
	if err != nil {
		return Reply{}, err
	}

	message, err := handler(m, cmd.Argument)
	slog.InfoContext(ctx, "control command",
		"monitor", cmd.Monitor,
		"command", cmd.Kind.String(),
		"reply", message,
	)
	return Reply{Message: message, State: m.Snapshot()}, err
}
