package command

import "testing"

func TestCommand_Names(t *testing.T) {
	tests := []struct {
		cmd      Command
		expected string
	}{
		{&RunGlobalSetup{TestsDir: "tests"}, "RunGlobalSetup"},
		{NewRunSetup("DemoLogin"), "RunSetup"},
		{&ListSetups{}, "ListSetups"},
		{&ShowCacheStatus{}, "ShowCacheStatus"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.cmd.CommandName(); got != tt.expected {
				t.Errorf("CommandName() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSetupCommand_SetupID(t *testing.T) {
	var cmd SetupCommand = NewRunSetup("DemoSiteLogin")

	if got := cmd.SetupID(); got != "DemoSiteLogin" {
		t.Errorf("SetupID() = %v, want DemoSiteLogin", got)
	}
}
