/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package zap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fennec-im/fennec/log"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "test.log")

	l := NewLogger("debug", outPath)
	log.Set(l)
	log.Debugf("debug entry %d", 1)
	log.Infof("info entry")
	log.Unset()

	b, err := os.ReadFile(outPath)
	require.Nil(t, err)
	require.Contains(t, string(b), "debug entry 1")
	require.Contains(t, string(b), "info entry")
}

func TestLoggerLevel(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "test.log")

	l := NewLogger("warn", outPath)
	l.Infof("filtered entry")
	l.Warnf("kept entry")
	_ = l.Close()

	b, err := os.ReadFile(outPath)
	require.Nil(t, err)
	require.NotContains(t, string(b), "filtered entry")
	require.Contains(t, string(b), "kept entry")
}
