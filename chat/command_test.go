package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Command
	}{
		{name: "empty", line: "   ", want: Command{Kind: CommandEmpty}},
		{name: "quit", line: "quit", want: Command{Kind: CommandQuit}},
		{name: "exit any case", line: " EXIT ", want: Command{Kind: CommandQuit}},
		{name: "q", line: "q", want: Command{Kind: CommandQuit}},
		{name: "list prompts", line: "/prompts", want: Command{Kind: CommandListPrompts}},
		{name: "list tools", line: "/tools", want: Command{Kind: CommandListTools}},
		{name: "message", line: "  What's the weather in Oslo?  ", want: Command{Kind: CommandMessage, Text: "What's the weather in Oslo?"}},
		{name: "lone slash", line: "/", want: Command{Kind: CommandMessage, Text: "/"}},
		{name: "prompt without args", line: "/daily_briefing", want: Command{Kind: CommandPrompt, Name: "daily_briefing"}},
		{name: "prompt one arg", line: "/time_in_location Tokyo", want: Command{Kind: CommandPrompt, Name: "time_in_location", Args: []string{"Tokyo"}}},
		{name: "tab separates name", line: "/time_in_location\tTokyo", want: Command{Kind: CommandPrompt, Name: "time_in_location", Args: []string{"Tokyo"}}},
		{
			name: "prompt pipe args",
			line: "/weather_comparison  New York, NY |  Los Angeles, CA ",
			want: Command{Kind: CommandPrompt, Name: "weather_comparison", Args: []string{"New York, NY", "Los Angeles, CA"}},
		},
		{
			name: "empty middle arg kept",
			line: "/weather_comparison Paris || Rome",
			want: Command{Kind: CommandPrompt, Name: "weather_comparison", Args: []string{"Paris", "", "Rome"}},
		},
		{name: "quit is not a prompt", line: "/quit", want: Command{Kind: CommandPrompt, Name: "quit"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCommand(tt.line))
		})
	}
}
