package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"pricewatch/internal/types"
)

func TestSessionRelease(t *testing.T) {
	client := NewBrowserClient(types.DefaultConfig(), logrus.New())

	var cancelled int
	first := client.newSession(context.Background(), func() { cancelled++ })
	second := client.newSession(context.Background(), func() { cancelled++ })
	assert.Equal(t, 2, client.ActiveSessions())

	first.Release()
	first.Release()
	assert.Equal(t, 1, cancelled, "release closes the tab once")
	assert.Equal(t, 1, client.ActiveSessions())

	second.Release()
	assert.Equal(t, 2, cancelled)
	assert.Zero(t, client.ActiveSessions())
}

func TestSessionRelease_OnErrorPath(t *testing.T) {
	client := NewBrowserClient(types.DefaultConfig(), logrus.New())

	snapshot := func() (err error) {
		session := client.newSession(context.Background(), func() {})
		defer session.Release()
		return errors.New("navigation failed")
	}

	assert.Error(t, snapshot())
	assert.Zero(t, client.ActiveSessions())
}
