package ledger

// Command is a sub-command of the ledger binary.
type Command interface {
	Name() string
}

// MigrateCommand creates or extends the database schema and exits.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string { return "migrate" }

// RunCommand starts the HTTP server.
type RunCommand struct{}

func (c *RunCommand) Name() string { return "run" }
