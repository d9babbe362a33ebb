package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkanaBidURL(t *testing.T) {
	t.Parallel()

	w := NewWorkana()

	t.Run("rewrites job path to bid path", func(t *testing.T) {
		t.Parallel()
		got, err := w.BidURL("https://www.workana.com/job/tienda-online")
		require.NoError(t, err)
		assert.Equal(t, "https://www.workana.com/messages/bid/tienda-online", got)
	})

	t.Run("rejects non-job links", func(t *testing.T) {
		t.Parallel()
		_, err := w.BidURL("https://www.workana.com/freelancers/maria")
		assert.Error(t, err)
	})
}

func TestFreelancerBidURL(t *testing.T) {
	t.Parallel()

	f := NewFreelancer()

	t.Run("appends details tab", func(t *testing.T) {
		t.Parallel()
		got, err := f.BidURL("https://www.freelancer.com/projects/php/build-shop-12345")
		require.NoError(t, err)
		assert.Equal(t, "https://www.freelancer.com/projects/php/build-shop-12345/details", got)
	})

	t.Run("strips query and fragment", func(t *testing.T) {
		t.Parallel()
		got, err := f.BidURL("https://www.freelancer.com/projects/php/build-shop-12345?w=f&ngsw-bypass=#top")
		require.NoError(t, err)
		assert.Equal(t, "https://www.freelancer.com/projects/php/build-shop-12345/details", got)
	})

	t.Run("rejects non-project links", func(t *testing.T) {
		t.Parallel()
		_, err := f.BidURL("https://www.freelancer.com/contest/logo-999")
		assert.Error(t, err)
	})
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := DefaultRegistry()

	t.Run("built-in platforms registered in order", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []string{"workana", "freelancer"}, reg.Names())
	})

	t.Run("get returns strategy", func(t *testing.T) {
		t.Parallel()
		s, err := reg.Get("workana")
		require.NoError(t, err)
		assert.Equal(t, "workana", s.Name())
	})

	t.Run("unknown platform errors", func(t *testing.T) {
		t.Parallel()
		_, err := reg.Get("upwork")
		assert.Error(t, err)
	})
}

func TestApplyOverrides(t *testing.T) {
	t.Parallel()

	writeOverrides := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "selectors.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("overrides replace only listed fields", func(t *testing.T) {
		t.Parallel()
		reg := DefaultRegistry()
		path := writeOverrides(t, `
workana:
  bid_input:
    - "textarea#new-bid-box"
  bid_submit:
    candidates:
      - "button#place-bid"
    exclude:
      - "search"
`)
		require.NoError(t, reg.ApplyOverrides(path))

		s, err := reg.Get("workana")
		require.NoError(t, err)
		sels := s.Selectors()
		assert.Equal(t, []string{"textarea#new-bid-box"}, sels.BidInput)
		assert.Equal(t, []string{"button#place-bid"}, sels.BidSubmit.Candidates)
		// Untouched fields keep their built-in values.
		assert.NotEmpty(t, sels.LoginEmail)
		assert.NotEmpty(t, sels.LoggedInMarkers)
	})

	t.Run("unknown platform in overrides errors", func(t *testing.T) {
		t.Parallel()
		reg := DefaultRegistry()
		path := writeOverrides(t, "upwork:\n  bid_input: [\"textarea\"]\n")
		assert.Error(t, reg.ApplyOverrides(path))
	})

	t.Run("empty path is a no-op", func(t *testing.T) {
		t.Parallel()
		reg := DefaultRegistry()
		assert.NoError(t, reg.ApplyOverrides(""))
	})

	t.Run("missing file errors", func(t *testing.T) {
		t.Parallel()
		reg := DefaultRegistry()
		assert.Error(t, reg.ApplyOverrides("/nonexistent/selectors.yaml"))
	})
}
