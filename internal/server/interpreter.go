// Package server interprets slash commands embedded in group messages.
// Each invocation is a pure function of the inbound record over the shared
// stores: parse, validate against the static command table, dispatch. All
// replies to the invoker travel as "Server" notices through the private
// delivery path; they never produce Go errors.
package server

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// Interpreter dispatches the recognized commands. It mutates the message
// store only through ownership-checked operations and re-delivers updated
// records through the router.
type Interpreter struct {
	table  *CommandTable
	store  *MessageStore
	router *Router
}

// NewInterpreter builds an interpreter over the given table, store, and router.
func NewInterpreter(table *CommandTable, store *MessageStore, router *Router) *Interpreter {
	return &Interpreter{table: table, store: store, router: router}
}

// Execute handles one slash-prefixed group message from sender. Unknown
// names, help flags, and short argument lists are answered with a notice and
// produce no group-visible side effect.
func (in *Interpreter) Execute(group, sender, content string) {
	args := strings.Fields(strings.TrimPrefix(content, "/"))
	if len(args) == 0 {
		in.router.SendServerNotice(sender, "Command does not exist.")
		return
	}

	cmd, known := in.table.Lookup(args[0])
	if !known {
		in.router.SendServerNotice(sender, "Command does not exist.")
		return
	}

	if wantsHelp(args) || len(args) < cmd.MinArgs {
		in.router.SendServerNotice(sender, fmt.Sprintf("\ndesc: %s\nusage:\n    %s", cmd.Description, cmd.Usage))
		return
	}

	switch cmd.Name {
	case "history":
		in.history(group, sender)
	case "delete":
		in.delete(group, sender, args, cmd)
	case "edit":
		in.edit(group, sender, args, cmd)
	default:
		log.Printf("Command %q is configured but has no handler", cmd.Name)
	}
}

func wantsHelp(args []string) bool {
	return len(args) >= 2 && (args[1] == "-h" || args[1] == "--help")
}

// history answers the invoker with a numbered listing of their own
// non-deleted messages in the group. No group-visible side effect.
func (in *Interpreter) history(group, sender string) {
	var builder strings.Builder
	builder.WriteString("\nID: Message\n")
	for _, msg := range in.store.OwnHistory(group, sender) {
		fmt.Fprintf(&builder, "%d: %s\n", msg.ID, msg.Message)
	}
	in.router.SendServerNotice(sender, builder.String())
}

// delete marks the invoker's own message as deleted and re-delivers the
// updated record to every current group member. Unknown or unowned IDs are
// silent no-ops.
func (in *Interpreter) delete(group, sender string, args []string, cmd Command) {
	id, err := strconv.Atoi(args[1])
	if err != nil {
		in.router.SendServerNotice(sender, fmt.Sprintf("\ndesc: %s\nusage:\n    %s", cmd.Description, cmd.Usage))
		return
	}

	updated, ok := in.store.MarkDeleted(group, id, sender)
	if !ok {
		return
	}
	in.router.DeliverToGroup(group, updated)
}

// edit replaces the content of the invoker's own message, flags it edited,
// and re-delivers it to every current group member. Unknown or unowned IDs
// are silent no-ops.
func (in *Interpreter) edit(group, sender string, args []string, cmd Command) {
	id, err := strconv.Atoi(args[1])
	if err != nil {
		in.router.SendServerNotice(sender, fmt.Sprintf("\ndesc: %s\nusage:\n    %s", cmd.Description, cmd.Usage))
		return
	}

	// Everything after the ID is the replacement content.
	content := strings.Join(args[2:], " ")

	updated, ok := in.store.Edit(group, id, sender, content)
	if !ok {
		return
	}
	in.router.DeliverToGroup(group, updated)
}
