package graph

import (
	"strings"
)

// CommandKind identifies a comment command.
type CommandKind string

const (
	CommandIgnore           CommandKind = "ignore"
	CommandIgnoreAll        CommandKind = "ignore:all"
	CommandIgnoreParameters CommandKind = "ignore:parameters"
	CommandUnknown          CommandKind = "unknown"
)

// commandPrefixes are the comment prefixes recognised as commands.
var commandPrefixes = []string{"deadwood:", "periphery:"}

// CommentCommand is a directive written in a source comment.
type CommentCommand struct {
	Kind CommandKind `json:"kind"`
	// Args holds the comma separated values after '=', e.g. parameter names.
	Args []string `json:"args,omitempty"`
	// Raw is the command text as written, without the prefix.
	Raw string `json:"raw"`
}

// ParseCommentCommand parses a single command body such as "ignore:parameters=a,b".
// The body excludes the "deadwood:" prefix.
func ParseCommentCommand(body string) CommentCommand {
	body = strings.TrimSpace(body)
	// Trailing free text after whitespace is a human explanation.
	if i := strings.IndexAny(body, " \t"); i >= 0 {
		body = body[:i]
	}
	name, args, hasArgs := strings.Cut(body, "=")
	cmd := CommentCommand{Raw: body, Kind: CommandUnknown}
	switch name {
	case string(CommandIgnore):
		cmd.Kind = CommandIgnore
	case string(CommandIgnoreAll):
		cmd.Kind = CommandIgnoreAll
	case string(CommandIgnoreParameters):
		cmd.Kind = CommandIgnoreParameters
	}
	if hasArgs {
		for _, a := range strings.Split(args, ",") {
			if a = strings.TrimSpace(a); a != "" {
				cmd.Args = append(cmd.Args, a)
			}
		}
	}
	return cmd
}

// ParseCommentCommands extracts every command from the text of a comment.
// Text without a recognised prefix yields no commands.
func ParseCommentCommands(comment string) []CommentCommand {
	var cmds []CommentCommand
	text := strings.TrimSpace(comment)
	text = strings.TrimPrefix(text, "///")
	text = strings.TrimPrefix(text, "//")
	text = strings.TrimPrefix(text, "/*")
	text = strings.TrimSuffix(text, "*/")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "*"))
		for _, prefix := range commandPrefixes {
			if rest, ok := strings.CutPrefix(line, prefix); ok {
				cmds = append(cmds, ParseCommentCommand(rest))
				break
			}
		}
	}
	return cmds
}

// HasCommand reports whether cmds contains a command of the given kind.
func HasCommand(cmds []CommentCommand, kind CommandKind) bool {
	for _, c := range cmds {
		if c.Kind == kind {
			return true
		}
	}
	return false
}
