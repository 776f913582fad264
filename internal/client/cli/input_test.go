package cli

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPrompter(in string, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(strings.NewReader(in)), out: out}
}

func stubPassword(t *testing.T, fn func(int) ([]byte, error)) {
	t.Helper()
	old := readPassword
	readPassword = fn
	t.Cleanup(func() { readPassword = old })
}

func TestPrompterLine(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter("  alice \n", &out)

	got, err := p.line("Username")
	require.NoError(t, err)
	assert.Equal(t, "alice", got)
	assert.Equal(t, "Username: ", out.String())
}

func TestPrompterLine_LastLineWithoutNewline(t *testing.T) {
	p := newPrompter("bob", io.Discard)

	got, err := p.line("")
	require.NoError(t, err)
	assert.Equal(t, "bob", got)
}

func TestPrompterLine_EOF(t *testing.T) {
	p := newPrompter("", io.Discard)

	_, err := p.line("Username")
	assert.ErrorIs(t, err, io.EOF)
}

func TestPrompterSecret(t *testing.T) {
	stubPassword(t, func(int) ([]byte, error) { return []byte("pw"), nil })
	var out bytes.Buffer
	p := newPrompter("", &out)

	got, err := p.secret("Password")
	require.NoError(t, err)
	assert.Equal(t, []byte("pw"), got)
	assert.Equal(t, "Password: \n", out.String())
}

func TestPrompterSecret_Error(t *testing.T) {
	boom := errors.New("boom")
	stubPassword(t, func(int) ([]byte, error) { return nil, boom })

	_, err := newPrompter("", io.Discard).secret("Password")
	assert.ErrorIs(t, err, boom)
}
