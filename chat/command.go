package chat

import (
	"strings"
	"unicode"
)

type CommandKind int

const (
	CommandEmpty CommandKind = iota
	CommandMessage
	CommandQuit
	CommandListPrompts
	CommandListTools
	CommandPrompt
)

// Command is one parsed line of user input.
type Command struct {
	Kind CommandKind
	// Text is the trimmed line for CommandMessage.
	Text string
	// Name and Args are set for CommandPrompt.
	Name string
	Args []string
}

// ParseCommand classifies a line. "quit", "exit" and "q" leave the chat in
// any case; "/prompts" and "/tools" list what the server offers;
// "/name a | b" renders prompt name with positional arguments a and b.
// Anything else is a message for the model.
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{Kind: CommandEmpty}
	}

	switch strings.ToLower(line) {
	case "quit", "exit", "q":
		return Command{Kind: CommandQuit}
	case "/prompts":
		return Command{Kind: CommandListPrompts}
	case "/tools":
		return Command{Kind: CommandListTools}
	}

	if !strings.HasPrefix(line, "/") || len(line) == 1 {
		return Command{Kind: CommandMessage, Text: line}
	}

	name, rest := line[1:], ""
	if i := strings.IndexFunc(name, unicode.IsSpace); i >= 0 {
		name, rest = name[:i], name[i:]
	}
	cmd := Command{Kind: CommandPrompt, Name: name}
	if rest = strings.TrimSpace(rest); rest != "" {
		for _, arg := range strings.Split(rest, "|") {
			cmd.Args = append(cmd.Args, strings.TrimSpace(arg))
		}
	}
	return cmd
}
