package semver_test

import (
	"testing"

	"github.com/SpatiumPortae/trickle/internal/semver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("positive", func(t *testing.T) {
		for _, s := range []string{"v0.0.1", "v10.24.30", "v1.0.0"} {
			ver, err := semver.Parse(s)
			require.NoError(t, err, s)
			assert.Equal(t, s, ver.String())
		}
		ver, err := semver.Parse("v3.14.15")
		require.NoError(t, err)
		assert.Equal(t, semver.Version{Major: 3, Minor: 14, Patch: 15}, ver)
	})
	t.Run("negative", func(t *testing.T) {
		for name, s := range map[string]string{
			"no leading v":      "0.0.1",
			"major leading 0":   "v01.0.1",
			"minor leading 0":   "v0.01.1",
			"patch leading 0":   "v0.1.01",
			"missing patch":     "v1.2",
			"pre-release":       "v1.2.3-rc1",
			"overflowing major": "v99999999999999999999.0.0",
		} {
			_, err := semver.Parse(s)
			assert.ErrorIs(t, err, semver.ErrParse, name)
		}
	})
}

func TestCurrent(t *testing.T) {
	assert.Equal(t, "v0.1.0", semver.Current().String())
}
