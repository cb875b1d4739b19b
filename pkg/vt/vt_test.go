package vt

import (
	"github.com/stretchr/testify/assert"
	"os"
	"path/filepath"
	"testing"
)

func TestLockSwitch_NotAConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	lock, err := LockSwitch(path)
	assert.Error(t, err)
	assert.Nil(t, lock)
}

func TestLockSwitch_Missing(t *testing.T) {
	_, err := LockSwitch(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUnlock_Idempotent(t *testing.T) {
	file, err := os.CreateTemp(t.TempDir(), "console")
	if err != nil {
		t.Fatal(err)
	}

	lock := &SwitchLock{file: file}
	// The ioctl fails on a regular file, the file is still closed and forgotten.
	assert.Error(t, lock.Unlock())
	assert.Nil(t, lock.file)
	assert.NoError(t, lock.Unlock())
}
