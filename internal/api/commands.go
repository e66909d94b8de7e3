package api

// CommandKind decides which batch endpoint a command is sent to.
type CommandKind int

const (
	GeneralCommand CommandKind = iota
	ResponderCommand
	AdminCommand
)

func (k CommandKind) String() string {
	switch k {
	case AdminCommand:
		return "admin"
	case ResponderCommand:
		return "responder"
	default:
		return "general"
	}
}

// Path returns the batch command endpoint for the kind.
func (k CommandKind) Path() string {
	switch k {
	case AdminCommand:
		return BatchAdminCommandPath
	case ResponderCommand:
		return BatchResponderCommandPath
	default:
		return BatchCommandPath
	}
}

var adminCommands = map[string]bool{
	"put":       true,
	"run":       true,
	"runscript": true,
}

var responderCommands = map[string]bool{
	"cp":         true,
	"encrypt":    true,
	"kill":       true,
	"map":        true,
	"memdump":    true,
	"mkdir":      true,
	"mv":         true,
	"reg delete": true,
	"reg load":   true,
	"reg unload": true,
	"reg set":    true,
	"restart":    true,
	"rm":         true,
	"shutdown":   true,
	"unmap":      true,
	"xmemdump":   true,
	"zip":        true,
}

// Classify maps a base command to its kind. Matching is exact and case-sensitive.
func Classify(cmd string) CommandKind {
	switch {
	case adminCommands[cmd]:
		return AdminCommand
	case responderCommands[cmd]:
		return ResponderCommand
	default:
		return GeneralCommand
	}
}
