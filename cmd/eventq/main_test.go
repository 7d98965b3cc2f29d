package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/automaxprocs/maxprocs"
)

func TestSetMaxProcs(t *testing.T) {
	t.Run("reports failure", func(t *testing.T) {
		var buf bytes.Buffer
		set := func(...maxprocs.Option) (func(), error) {
			return nil, errors.New("cgroup quota unreadable")
		}
		undo := setMaxProcs(set, &buf)
		assert.NotNil(t, undo)
		undo()
		assert.Contains(t, buf.String(), "failed to set GOMAXPROCS")
		assert.Contains(t, buf.String(), "cgroup quota unreadable")
	})

	t.Run("quiet on success", func(t *testing.T) {
		var buf bytes.Buffer
		undone := false
		set := func(opts ...maxprocs.Option) (func(), error) {
			assert.Len(t, opts, 1)
			return func() { undone = true }, nil
		}
		setMaxProcs(set, &buf)()
		assert.True(t, undone)
		assert.Empty(t, buf.String())
	})
}
