package kafka

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingCloser struct {
	closed bool
	err    error
}

func (c *recordingCloser) Close() error {
	c.closed = true
	return c.err
}

func TestCloseWritersClosesAllOnFailure(t *testing.T) {
	first := &recordingCloser{err: assert.AnError}
	second := &recordingCloser{err: assert.AnError}

	err := closeWriters(map[string]io.Closer{
		"reserved": first,
		"failed":   second,
	})

	// A failing writer must not leave the other one open
	assert.True(t, first.closed)
	assert.True(t, second.closed)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
	assert.Contains(t, err.Error(), "failed")
}

func TestCloseWritersNilWhenAllSucceed(t *testing.T) {
	first := &recordingCloser{}
	second := &recordingCloser{}

	err := closeWriters(map[string]io.Closer{
		"reserved": first,
		"failed":   second,
	})

	assert.NoError(t, err)
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}
