package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillFromBuildInfo(t *testing.T) {
	origVersion, origRevision, origDate := Version, Revision, BuildDate
	t.Cleanup(func() { Version, Revision, BuildDate = origVersion, origRevision, origDate })

	Version, Revision, BuildDate = devVersion, "HEAD", ""
	fillFromBuildInfo("v1.2.3", map[string]string{
		"vcs.revision": "5e23a4f0c1d2",
		"vcs.modified": "true",
		"vcs.time":     "2025-01-01T00:00:00Z",
	})

	assert.Equal(t, "1.2.3", Version)
	assert.Equal(t, "5e23a4f-dirty", Revision)
	assert.Equal(t, "2025-01-01T00:00:00Z", BuildDate)
	assert.Equal(t, "1.2.3 (5e23a4f-dirty)", Short())
}

func TestFillFromBuildInfoKeepsLinkerValues(t *testing.T) {
	origVersion, origRevision, origDate := Version, Revision, BuildDate
	t.Cleanup(func() { Version, Revision, BuildDate = origVersion, origRevision, origDate })

	Version, Revision, BuildDate = "2.0.0", "abc1234", "today"
	fillFromBuildInfo("(devel)", map[string]string{"vcs.revision": "ffffffffff"})

	assert.Equal(t, "2.0.0", Version)
	assert.Equal(t, "abc1234", Revision)
	assert.Equal(t, "today", BuildDate)
}
