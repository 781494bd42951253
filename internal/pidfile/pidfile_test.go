// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireWritesPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dnsflow.pid")

	pf, err := Acquire(path)
	require.NoError(t, err)
	defer pf.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte(fmt.Sprintf("%d\n", os.Getpid())), data)
}

func TestAcquireFailsWhenAlreadyLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dnsflow.pid")

	pf, err := Acquire(path)
	require.NoError(t, err)
	defer pf.Close()

	_, err = Acquire(path)
	require.Error(t, err)
}

func TestCloseRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dnsflow.pid")

	pf, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, pf.Close())

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestCloseThenReacquireSucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dnsflow.pid")

	pf, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, pf.Close())

	pf2, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, pf2.Close())
}
