package main

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsk_NeedsQuestionOrListen(t *testing.T) {
	rootCmd.SetArgs([]string{"ask"})
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	err := rootCmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--listen")

	listen := askCmd.Flags().Lookup("listen")
	require.NotNil(t, listen)
	assert.Equal(t, "0s", listen.DefValue)
}
