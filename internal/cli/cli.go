// Package cli parses the bob command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandTalk    Command = "talk"
	CommandListen  Command = "listen"
	CommandStop    Command = "stop"
	CommandHush    Command = "hush"
	CommandSay     Command = "say"
	CommandStatus  Command = "status"
	CommandQuit    Command = "quit"
	CommandHistory Command = "history"
	CommandReset   Command = "reset"
	CommandCopy    Command = "copy"
	CommandTasks   Command = "tasks"
	CommandWeather Command = "weather"
	CommandVoices  Command = "voices"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// arity describes how many positional arguments a command accepts.
type arity struct {
	min int
	max int // -1 means unbounded
}

var validCommands = map[Command]arity{
	CommandTalk:    {},
	CommandListen:  {},
	CommandStop:    {},
	CommandHush:    {},
	CommandSay:     {min: 1, max: -1},
	CommandStatus:  {},
	CommandQuit:    {},
	CommandHistory: {},
	CommandReset:   {},
	CommandCopy:    {},
	CommandTasks:   {min: 0, max: -1},
	CommandWeather: {min: 1, max: -1},
	CommandVoices:  {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

// TaskAction is the subcommand of `bob tasks`.
type TaskAction string

const (
	TaskList   TaskAction = "list"
	TaskAdd    TaskAction = "add"
	TaskDone   TaskAction = "done"
	TaskRemove TaskAction = "rm"
)

type Parsed struct {
	Command    Command
	Args       []string
	ConfigPath string
	ShowHelp   bool
	NoListen   bool
}

// Text joins positional arguments the way `say` and `weather` consume them.
func (p Parsed) Text() string {
	return strings.TrimSpace(strings.Join(p.Args, " "))
}

// TaskCommand splits `tasks` arguments into an action and its operands.
func (p Parsed) TaskCommand() (TaskAction, []string) {
	if len(p.Args) == 0 {
		return TaskList, nil
	}
	return TaskAction(p.Args[0]), p.Args[1:]
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--no-listen":
			parsed.NoListen = true
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			bounds, ok := validCommands[cmd]
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			parsed.Args = append([]string(nil), args[i+1:]...)
			if err := checkArity(cmd, bounds, parsed.Args); err != nil {
				return Parsed{}, err
			}
			if cmd == CommandTasks {
				if err := checkTaskArgs(parsed); err != nil {
					return Parsed{}, err
				}
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func checkArity(cmd Command, bounds arity, args []string) error {
	if len(args) < bounds.min {
		return fmt.Errorf("%s requires %s", cmd, argumentName(cmd))
	}
	if bounds.max >= 0 && len(args) > bounds.max {
		return fmt.Errorf("unexpected arguments after command %q", cmd)
	}
	return nil
}

func argumentName(cmd Command) string {
	switch cmd {
	case CommandSay:
		return "text"
	case CommandWeather:
		return "a location"
	default:
		return "arguments"
	}
}

func checkTaskArgs(parsed Parsed) error {
	action, operands := parsed.TaskCommand()
	switch action {
	case TaskList:
		if len(operands) > 1 {
			return errors.New("tasks list accepts at most one status filter")
		}
	case TaskAdd:
		if strings.TrimSpace(strings.Join(operands, " ")) == "" {
			return errors.New("tasks add requires a title")
		}
	case TaskDone, TaskRemove:
		if len(operands) != 1 {
			return fmt.Errorf("tasks %s requires exactly one task id", action)
		}
	default:
		return fmt.Errorf("unknown tasks action: %s", action)
	}
	return nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--no-listen] <command> [args]

Session:
  talk              Own the microphone and speaker and run a voice conversation
  listen            Start listening in the running session
  stop              Stop listening
  hush              Stop speaking
  say TEXT...       Submit typed text (offline text-only mode when no session runs)
  status            Print current state
  quit              End the running session

Conversation:
  history           Print the conversation history
  reset             Export and clear the conversation history
  copy              Copy the last assistant reply to the clipboard

Backend:
  tasks [list [STATUS] | add TITLE... | done ID | rm ID]
                    Manage tasks
  weather LOCATION  Show the weather for a location

Diagnostics:
  voices            List synthesis voices
  devices           List available input devices
  doctor            Run configuration and environment checks
  version           Print version information
  help              Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/bob/config.jsonc)
  --no-listen     Do not start listening when talk starts
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
