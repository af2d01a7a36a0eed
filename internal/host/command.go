package host

// CommandKind enumerates the orders a controller can issue.
type CommandKind uint8

const (
	CommandDisassemble CommandKind = iota + 1
	CommandSetCombineLock
)

func (k CommandKind) String() string {
	switch k {
	case CommandDisassemble:
		return "disassemble"
	case CommandSetCombineLock:
		return "set_combine_lock"
	default:
		return "unknown"
	}
}

// Command is one issued order.
type Command struct {
	Kind   CommandKind
	Item   string
	Locked bool
	Queue  bool
}

// CommandBuffer collects commands issued during a frame.
type CommandBuffer struct {
	cmds []Command
}

func (b *CommandBuffer) Disassemble(item string, queue bool) {
	b.cmds = append(b.cmds, Command{Kind: CommandDisassemble, Item: item, Queue: queue})
}

func (b *CommandBuffer) SetCombineLock(item string, locked, queue bool) {
	b.cmds = append(b.cmds, Command{Kind: CommandSetCombineLock, Item: item, Locked: locked, Queue: queue})
}

// Len returns the number of buffered commands.
func (b *CommandBuffer) Len() int { return len(b.cmds) }

// Commands returns the buffered commands without clearing them.
func (b *CommandBuffer) Commands() []Command { return b.cmds }

// Drain returns the buffered commands and empties the buffer.
func (b *CommandBuffer) Drain() []Command {
	out := b.cmds
	b.cmds = nil
	return out
}
