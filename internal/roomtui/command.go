package roomtui

import "strings"

type command struct {
	name string
	arg  string
}

// parseCommand recognises "/name arg". A leading "//" escapes a literal slash
// and is not a command.
func parseCommand(text string) (command, bool) {
	if !strings.HasPrefix(text, "/") || strings.HasPrefix(text, "//") {
		return command{}, false
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return command{}, false
	}
	return command{name: name, arg: strings.TrimSpace(arg)}, true
}
