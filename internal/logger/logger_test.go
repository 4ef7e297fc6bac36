package logger

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestDefaultsToStandardLogger(t *testing.T) {
	assert.Equal(t, logrus.StandardLogger(), G(context.Background()))
}

func TestWithFieldIsCarried(t *testing.T) {
	l, hook := test.NewNullLogger()
	ctx := WithLogger(context.Background(), l)
	ctx = WithField(ctx, "network_id", "net-1")

	G(ctx).Info("bound")

	entry := hook.LastEntry()
	if assert.NotNil(t, entry) {
		assert.Equal(t, "net-1", entry.Data["network_id"])
		assert.Equal(t, "bound", entry.Message)
	}
}
