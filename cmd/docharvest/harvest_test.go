package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangedFlagsOnlyIncludesSetFlags(t *testing.T) {
	require.NoError(t, harvestCmd.Flags().Parse([]string{"--first-page", "42", "--headless", "--engine", "http"}))

	flags := changedFlags(harvestCmd)
	assert.Equal(t, 42, flags["first-page"])
	assert.Equal(t, true, flags["headless"])
	assert.Equal(t, "http", flags["engine"])
	assert.NotContains(t, flags, "last-page")
	assert.NotContains(t, flags, "output")
}

func TestListCommandHasNoArchiveFlags(t *testing.T) {
	assert.NotNil(t, listCmd.Flags().Lookup("first-page"))
	assert.Nil(t, listCmd.Flags().Lookup("archive"))
	assert.Nil(t, listCmd.Flags().Lookup("publish"))
}
