package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	for _, name := range []string{"server", "version"} {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
}

func TestServerCommand_AddrFlag(t *testing.T) {
	c := newServerCmd()

	flag := c.Flags().Lookup("addr")
	require.NotNil(t, flag)
	assert.Empty(t, flag.DefValue)
}

func TestVersionCommand_Output(t *testing.T) {
	c := newVersionCmd()
	var buf bytes.Buffer
	c.SetOut(&buf)

	c.Run(c, nil)
	assert.Contains(t, buf.String(), "mailauth version")
}
