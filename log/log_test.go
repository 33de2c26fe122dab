package log_test

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/dudk/plinth/log"
)

func TestGetLogger(t *testing.T) {
	l := log.GetLogger()
	assert.NotNil(t, l)
	assert.Contains(t, []logrus.Level{logrus.InfoLevel, logrus.DebugLevel}, l.GetLevel())
}

func TestDiscard(t *testing.T) {
	assert.Equal(t, io.Discard, log.Discard().Out)
}
