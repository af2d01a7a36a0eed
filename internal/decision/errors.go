package decision

import "errors"

// Reasons a split or recombine step was skipped. None of them is a failure;
// the controller reconsiders on a later tick.
var (
	ErrNoComposite           = errors.New("composite not in inventory")
	ErrWindowClosed          = errors.New("disassemble window closed")
	ErrCooldownExceedsWindow = errors.New("cooldown exceeds disassemble window")
	ErrPairedOnCooldown      = errors.New("paired item on cooldown")
	ErrNotArmed              = errors.New("composite was ready when the cast started")
	ErrGated                 = errors.New("order cooldown running")
)
