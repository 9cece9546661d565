package command

// RunGlobalSetup saves the login state of every setup needed by the tests
// found under TestsDir. An empty TestsDir considers every registered setup needed.
type RunGlobalSetup struct {
	TestsDir string
}

func (c *RunGlobalSetup) CommandName() string {
	return "RunGlobalSetup"
}

// RunSetup runs a single setup regardless of which tests are present.
type RunSetup struct {
	baseSetupCommand
}

func NewRunSetup(setupID string) *RunSetup {
	return &RunSetup{baseSetupCommand{setupID: setupID}}
}

func (c *RunSetup) CommandName() string {
	return "RunSetup"
}

// ListSetups reports every registered setup and whether the tests under
// TestsDir need it.
type ListSetups struct {
	TestsDir string
}

func (c *ListSetups) CommandName() string {
	return "ListSetups"
}

// ShowCacheStatus reports the TTL cache entry of every registered setup.
type ShowCacheStatus struct{}

func (c *ShowCacheStatus) CommandName() string {
	return "ShowCacheStatus"
}
