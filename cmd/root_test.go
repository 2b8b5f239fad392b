package cmd

import "testing"

func TestRootCommand_Subcommands(t *testing.T) {
	want := map[string]bool{
		"index":   false,
		"ask":     false,
		"serve":   false,
		"version": false,
	}

	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestAskCommand_RequiresQuestion(t *testing.T) {
	if err := askCmd.Args(askCmd, nil); err == nil {
		t.Error("ask should reject zero arguments")
	}
	if err := askCmd.Args(askCmd, []string{"Jak zwrócić produkt?"}); err != nil {
		t.Errorf("ask rejected a valid argument: %v", err)
	}
}

func TestVersionDefaults(t *testing.T) {
	if Version == "" {
		t.Error("Version must not be empty")
	}
}
