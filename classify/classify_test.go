package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func families(r Result) []Family {
	out := make([]Family, len(r.Evidence))
	for i, s := range r.Evidence {
		out[i] = s.Family
	}
	return out
}

func TestClassify_ConsoleURLAndTwoPhrases(t *testing.T) {
	c := New(Rules{
		Phrases:           []string{"App Launchpad", "Devbox", "Billing"},
		ConsoleURLMarkers: []string{"console"},
		LoginURLMarkers:   []string{"github.com", "login"},
	})

	r := c.Classify(Snapshot{
		URL:     "https://us-west-1.run.claw.cloud/console/apps",
		Content: "<div>Open App Launchpad</div><span>devbox</span>",
	})

	require.True(t, r.Success)
	assert.Equal(t, []string{
		"found text: App Launchpad",
		"found text: Devbox",
		"URL contains console marker: console",
	}, r.Labels())
	assert.Equal(t, []Family{FamilyText, FamilyText, FamilyURL}, families(r))
}

func TestClassify_NegativeURLOnlyWhenPositiveMissing(t *testing.T) {
	c := New(DefaultRules())

	positive := c.Classify(Snapshot{URL: "https://run.claw.cloud/private-team/x"})
	assert.Equal(t, []Family{FamilyURL}, families(positive))

	negative := c.Classify(Snapshot{URL: "https://run.claw.cloud/apps"})
	assert.Equal(t, []Family{FamilyNotLogin}, families(negative))
	assert.True(t, negative.Success)
}

func TestClassify_LoginPageFails(t *testing.T) {
	c := New(DefaultRules())

	r := c.Classify(Snapshot{
		URL:     "https://github.com/login?return_to=x",
		Content: "<form>Sign in to GitHub</form>",
	})

	assert.False(t, r.Success)
	assert.Empty(t, r.Evidence)
}

func TestClassify_StructureAlone(t *testing.T) {
	c := New(DefaultRules())

	r := c.Classify(Snapshot{
		URL:       "https://github.com/sessions/two-factor",
		Structure: "nav",
	})

	assert.True(t, r.Success)
	assert.Equal(t, []Family{FamilyStructure}, families(r))
	assert.Contains(t, r.Evidence[0].Label, "nav")
}

func TestClassify_EmptyURLIsNotEvidence(t *testing.T) {
	r := New(DefaultRules()).Classify(Snapshot{})
	assert.False(t, r.Success)
}

func TestClassify_TextMarkersMonotonic(t *testing.T) {
	c := New(DefaultRules())
	base := Snapshot{URL: "https://github.com/login", Content: "Welcome back"}

	before := c.Classify(base)
	assert.Contains(t, before.Labels(), "found text: Welcome")

	more := base
	more.Content += " <h1>Projects</h1>"
	after := c.Classify(more)

	for _, label := range before.Labels() {
		assert.Contains(t, after.Labels(), label)
	}
	assert.Contains(t, after.Labels(), "found text: Projects")

	// same input, same evidence
	assert.Equal(t, after, c.Classify(more))
}
