package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()
	names := []string{}
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "sweep", "summarize"})
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"migrate", "--db-driver", "memory", "--log-level", "error"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestSweep_RequiresPostgres(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"sweep", "--db-driver", "memory", "--log-level", "error"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
	assert.Empty(t, out.String())
}

func TestServe_BadConfigFile(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"serve", "--config", "/nonexistent/hr-approvals.yaml"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}
