// Package server loads the static slash-command table from external
// configuration. The table is read once at startup and never mutated.
package server

import (
	"encoding/json"
	"log"
	"os"
)

// Command describes one slash command recognized inside group messages.
// MinArgs counts the command name itself, so a command taking one argument
// has MinArgs 2.
type Command struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	MinArgs     int    `json:"min_args"`
}

// CommandTable is the immutable set of commands known to the interpreter.
type CommandTable struct {
	commands []Command
}

// NewCommandTable builds a table from an in-memory command list.
func NewCommandTable(commands []Command) *CommandTable {
	return &CommandTable{commands: append([]Command(nil), commands...)}
}

// LoadCommandTable reads the command configuration from the given JSON file.
// A missing, unreadable, or empty file is a warning, not an error: the server
// still runs, recognizing zero commands.
func LoadCommandTable(path string) *CommandTable {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Could not read command table %q: %v; no commands will be recognized", path, err)
		return NewCommandTable(nil)
	}

	var commands []Command
	if err := json.Unmarshal(data, &commands); err != nil {
		log.Printf("Could not parse command table %q: %v; no commands will be recognized", path, err)
		return NewCommandTable(nil)
	}

	if len(commands) == 0 {
		log.Printf("Command table %q is empty; no commands will be recognized", path)
		return NewCommandTable(nil)
	}

	log.Printf("Loaded %d commands from %q", len(commands), path)
	return NewCommandTable(commands)
}

// Lookup returns the command with the given name.
func (t *CommandTable) Lookup(name string) (Command, bool) {
	for _, cmd := range t.commands {
		if cmd.Name == name {
			return cmd, true
		}
	}
	return Command{}, false
}

// Len returns the number of known commands.
func (t *CommandTable) Len() int {
	return len(t.commands)
}
