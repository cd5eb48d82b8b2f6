package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatchLocked(t *testing.T) {
	var out bytes.Buffer
	a := &App{out: &out}

	a.dispatch(context.Background(), "list", nil)
	assert.Contains(t, out.String(), "Locked")

	out.Reset()
	a.dispatch(context.Background(), "help", nil)
	assert.Contains(t, out.String(), "unlock")
}

func TestStatus(t *testing.T) {
	a := &App{}
	assert.Equal(t, "(locked)", a.status())
}

func TestRequireVault(t *testing.T) {
	var out bytes.Buffer
	a := &App{out: &out}

	assert.False(t, a.requireVault())
	assert.Contains(t, out.String(), "No vault selected")

	a.share = "share-1"
	assert.True(t, a.requireVault())
}

func TestOneArg(t *testing.T) {
	var out bytes.Buffer
	a := &App{out: &out}

	_, ok := a.oneArg(nil, "use <shareId>")
	assert.False(t, ok)
	assert.Contains(t, out.String(), "usage: use <shareId>")

	got, ok := a.oneArg([]string{"share-1"}, "use <shareId>")
	assert.True(t, ok)
	assert.Equal(t, "share-1", got)
}
