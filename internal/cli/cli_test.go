package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/bob.jsonc", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/bob.jsonc", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseSayJoinsText(t *testing.T) {
	parsed, err := Parse([]string{"say", "what's", "the", "time?"})
	require.NoError(t, err)
	require.Equal(t, CommandSay, parsed.Command)
	require.Equal(t, "what's the time?", parsed.Text())
}

func TestParseTalkNoListen(t *testing.T) {
	parsed, err := Parse([]string{"--no-listen", "talk"})
	require.NoError(t, err)
	require.Equal(t, CommandTalk, parsed.Command)
	require.True(t, parsed.NoListen)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
		wantPath string
		wantArgs []string
	}{
		{name: "help short flag", args: []string{"-h"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help long flag", args: []string{"--help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "version flag", args: []string{"--version"}, wantCmd: CommandVersion},
		{name: "flag after command", args: []string{"status", "--config", "/tmp/cfg"}, wantErr: "unexpected arguments after command"},
		{name: "missing config path", args: []string{"--config"}, wantErr: "requires a path"},
		{name: "unknown flag", args: []string{"--bogus"}, wantErr: "unknown flag"},
		{name: "unknown command", args: []string{"bogus"}, wantErr: "unknown command"},
		{name: "extra args after command", args: []string{"doctor", "extra"}, wantErr: "unexpected arguments"},
		{name: "say without text", args: []string{"say"}, wantErr: "say requires text"},
		{name: "weather without location", args: []string{"weather"}, wantErr: "weather requires a location"},
		{name: "weather location", args: []string{"weather", "New", "York"}, wantCmd: CommandWeather, wantArgs: []string{"New", "York"}},
		{name: "tasks defaults to list", args: []string{"tasks"}, wantCmd: CommandTasks},
		{name: "tasks add title", args: []string{"tasks", "add", "buy", "milk"}, wantCmd: CommandTasks, wantArgs: []string{"add", "buy", "milk"}},
		{name: "tasks add without title", args: []string{"tasks", "add"}, wantErr: "requires a title"},
		{name: "tasks done without id", args: []string{"tasks", "done"}, wantErr: "exactly one task id"},
		{name: "tasks unknown action", args: []string{"tasks", "archive", "1"}, wantErr: "unknown tasks action"},
		{name: "valid hush command", args: []string{"hush"}, wantCmd: CommandHush},
		{name: "valid stop with config", args: []string{"--config", "/tmp/cfg", "stop"}, wantCmd: CommandStop, wantPath: "/tmp/cfg"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
			if tc.wantArgs != nil {
				require.Equal(t, tc.wantArgs, parsed.Args)
			}
		})
	}
}

func TestTaskCommand(t *testing.T) {
	parsed, err := Parse([]string{"tasks", "rm", "42"})
	require.NoError(t, err)

	action, operands := parsed.TaskCommand()
	require.Equal(t, TaskRemove, action)
	require.Equal(t, []string{"42"}, operands)
}

func TestHelpTextIncludesCoreCommands(t *testing.T) {
	text := HelpText("bob")
	require.Contains(t, text, "talk")
	require.Contains(t, text, "listen")
	require.Contains(t, text, "hush")
	require.Contains(t, text, "say TEXT")
	require.Contains(t, text, "weather LOCATION")
	require.Contains(t, text, "--config PATH")
}
