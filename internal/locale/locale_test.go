package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedCatalog(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "en", c.Default)
	require.Len(t, c.Options, 4)
	for _, opt := range c.Options {
		cp := c.Copy[opt.Code]
		assert.NotEmpty(t, cp.Title, opt.Code)
		assert.NotEmpty(t, cp.ChatNow, opt.Code)
		assert.NotEmpty(t, cp.Intro, opt.Code)
		assert.Len(t, cp.YourRoleList, 3, opt.Code)
		assert.Len(t, cp.HowToUseList, 5, opt.Code)
		assert.Len(t, cp.BeforeYouStart.List, 4, opt.Code)
		assert.Len(t, cp.WantToGetBetter.List, 2, opt.Code)
	}
	assert.Equal(t, "Meet Alex Carter", c.Page.Title)
}

func TestLookup_FallsBackToDefault(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Ontmoet Alex Carter", c.Lookup("nl").Title)
	assert.Equal(t, "Meet Alex Carter", c.Lookup("es").Title)
	assert.Equal(t, "Meet Alex Carter", c.Lookup("").Title)
	assert.Equal(t, "en", c.Resolve("xx"))
	assert.Equal(t, "fr", c.Resolve("fr"))
}

func TestIntro_ByLanguage(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Contains(t, c.Intro("de"), "Willkommen!")
	assert.Contains(t, c.Intro("fr"), "Bienvenue")
	assert.Equal(t, c.Intro("en"), c.Intro("pt"))
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("copy: [unclosed"))
	assert.Error(t, err)

	_, err = Parse([]byte("default: nl\ncopy:\n  en:\n    title: x\n"))
	assert.ErrorIs(t, err, ErrNoDefault)
}
