package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLICommands(t *testing.T) {
	app := newCLIApp()

	var names []string
	for _, c := range app.Commands {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "enqueue", "campaign", "token"}, names)

	migrate := app.Command("migrate")
	require.NotNil(t, migrate)
	assert.NotNil(t, migrate.Command("up"))
	assert.NotNil(t, migrate.Command("down"))

	campaign := app.Command("campaign")
	require.NotNil(t, campaign)
	assert.NotNil(t, campaign.Command("create"))
}

func TestEnqueueRequiresOneFile(t *testing.T) {
	err := newCLIApp().Run([]string{"coldpipe", "enqueue", "--campaign", "camp_1"})
	require.Error(t, err)
}
