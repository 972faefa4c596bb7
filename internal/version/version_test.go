package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func restoreVersion(t *testing.T) {
	v, r, d := Version, Revision, BuildDate
	t.Cleanup(func() {
		Version, Revision, BuildDate = v, r, d
	})
}

func TestVersionStrings(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Revision)

	assert.Contains(t, Short(), Version)
	assert.Contains(t, Short(), Revision)
	assert.Contains(t, Detailed(), "/")
	assert.True(t, strings.HasPrefix(DetailedWithApp(), AppName+" "))
}

func TestApplyBuildInfo_PopulatesDefaults(t *testing.T) {
	restoreVersion(t)
	Version, Revision, BuildDate = devVersion, "HEAD", ""

	applyBuildInfo("v1.2.3", map[string]string{
		"vcs.revision": "abcdef1234567890",
		"vcs.modified": "true",
		"vcs.time":     "2026-01-02T03:04:05Z",
	})

	assert.Equal(t, "1.2.3", Version)
	assert.Equal(t, "abcdef123456-dirty", Revision)
	assert.Equal(t, "2026-01-02T03:04:05Z", BuildDate)
}

func TestApplyBuildInfo_KeepsLdflags(t *testing.T) {
	restoreVersion(t)
	Version, Revision, BuildDate = "2.0.0", "cafebabe", "2025-05-05T00:00:00Z"

	applyBuildInfo("v9.9.9", map[string]string{
		"vcs.revision": "0123456789",
		"vcs.time":     "2026-01-02T03:04:05Z",
	})

	assert.Equal(t, "2.0.0", Version)
	assert.Equal(t, "cafebabe", Revision)
	assert.Equal(t, "2025-05-05T00:00:00Z", BuildDate)
}

func TestApplyBuildInfo_IgnoresDevelModule(t *testing.T) {
	restoreVersion(t)
	Version = devVersion

	applyBuildInfo("(devel)", nil)
	assert.Equal(t, devVersion, Version)
}

func TestCurrent(t *testing.T) {
	info := Current()
	assert.Equal(t, AppName, info.App)
	assert.Contains(t, info.Platform, "/")
	assert.True(t, strings.HasPrefix(info.GoVersion, "go"))
}
