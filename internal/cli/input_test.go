package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubPassword(t *testing.T, pw []byte, err error) {
	t.Helper()
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(fd int) ([]byte, error) { return pw, err }
}

func TestGetPassword(t *testing.T) {
	stubPassword(t, []byte("hunter2"), nil)

	var out bytes.Buffer
	pw, err := GetPassword(&out)
	require.NoError(t, err)

	assert.Equal(t, []byte("hunter2"), pw)
	assert.Contains(t, out.String(), "Enter password:")
}

func TestGetPassword_TerminalError(t *testing.T) {
	stubPassword(t, nil, errors.New("not a terminal"))

	var out bytes.Buffer
	_, err := GetPassword(&out)
	require.Error(t, err)
}
