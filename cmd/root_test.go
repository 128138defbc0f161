package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"fetch", "clean", "breaks", "process", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "atlas", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCleanCommand_HasSubcommands(t *testing.T) {
	cmds := cleanCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"emdat", "wdi", "flood"} {
		assert.True(t, names[name], "clean should have subcommand %q", name)
	}
}

func TestBreaksCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"raster", "country", "dataset", "method", "classes", "save"} {
		flag := breaksCmd.Flags().Lookup(flagName)
		require.NotNil(t, flag, "breaks should have --%s flag", flagName)
	}
	assert.Equal(t, "gdp", breaksCmd.Flags().Lookup("dataset").DefValue)
}

func TestProcessCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"raster", "countries", "method", "classes", "reports", "export"} {
		flag := processCmd.Flags().Lookup(flagName)
		require.NotNil(t, flag, "process should have --%s flag", flagName)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestFetchCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"only", "manifest"} {
		flag := fetchCmd.Flags().Lookup(flagName)
		require.NotNil(t, flag, "fetch should have --%s flag", flagName)
	}
}

func TestCleanWDICommand_DefaultIndicators(t *testing.T) {
	flag := cleanWDICmd.Flags().Lookup("indicators")
	require.NotNil(t, flag)
	assert.Contains(t, flag.DefValue, "NY.GDP.MKTP.CD")
	assert.Contains(t, flag.DefValue, "SP.POP.TOTL")
}
