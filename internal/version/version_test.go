package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info()
	assert.Contains(t, info, "steve")
	assert.Contains(t, info, Version)
	assert.Contains(t, info, runtime.GOOS)
}

func TestInfoTruncatesCommit(t *testing.T) {
	origCommit, origVersion := Commit, Version
	t.Cleanup(func() { Commit, Version = origCommit, origVersion })

	Version = "0.4.0"
	Commit = "deadbeefcafe"

	assert.Contains(t, Info(), "deadbee")
	assert.NotContains(t, Info(), "deadbeefcafe")
	assert.Equal(t, "0.4.0", Fields()["version"])
	assert.Equal(t, "deadbee", Fields()["commit"])
}

func TestShort(t *testing.T) {
	assert.Equal(t, "", short(""))
	assert.Equal(t, "abc", short("abc"))
	assert.Equal(t, "1234567", short("12345678"))
}
