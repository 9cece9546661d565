// Package command defines all commands that can be sent to the application.
// Commands represent user intentions and are processed by the application layer.
package command

// Command is the base interface for all commands.
// Commands are sent from the CLI to the application layer.
type Command interface {
	// CommandName returns the name of the command for logging/debugging
	CommandName() string
}

// SetupCommand is a command that targets a specific setup.
type SetupCommand interface {
	Command
	// SetupID returns the target setup identity
	SetupID() string
}

// baseSetupCommand provides common implementation for setup commands.
type baseSetupCommand struct {
	setupID string
}

func (c *baseSetupCommand) SetupID() string {
	return c.setupID
}
