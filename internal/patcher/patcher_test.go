package patcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adflow/internal/domain"
)

func TestReplaceReferenceExactRewritesOnlyMatchingImage(t *testing.T) {
	markup := `<p><img src="https://cdn.example.com/x/one.png"><img src="https://cdn.example.com/x/two.png"></p>`
	swap := ReplaceReference(markup, "https://cdn.example.com/x/one.png", "https://files.example.com/de/one.png", NoHint)

	require.True(t, swap.Matched())
	assert.Equal(t, StrategyExact, swap.Strategy)
	assert.Equal(t, 1, swap.Rewritten)
	assert.Equal(t, `<p><img src="https://files.example.com/de/one.png"><img src="https://cdn.example.com/x/two.png"></p>`, swap.Markup)
}

func TestReplaceReferenceSharedFilenameFallsThroughToPosition(t *testing.T) {
	markup := `<img src="https://cdn-a.example.com/de/hero.png"><img src="https://cdn-b.example.com/fr/hero.png">`
	oldRef := "https://old.example.com/en/hero.png"

	swap := ReplaceReference(markup, oldRef, "https://files.example.com/new.png", 1)
	require.True(t, swap.Matched())
	assert.Equal(t, StrategyPosition, swap.Strategy)
	assert.Equal(t, `<img src="https://cdn-a.example.com/de/hero.png"><img src="https://files.example.com/new.png">`, swap.Markup)

	noHint := ReplaceReference(markup, oldRef, "https://files.example.com/new.png", NoHint)
	assert.False(t, noHint.Matched(), "ambiguous filename must not be rewritten")
	assert.Equal(t, markup, noHint.Markup)
}

func TestReplaceReferenceStrategies(t *testing.T) {
	const newRef = "https://files.example.com/out.png"
	cases := []struct {
		name   string
		markup string
		oldRef string
		want   Strategy
		result string
	}{
		{
			name:   "encoded space",
			markup: `<img src="https://cdn.example.com/my%20photo.png">`,
			oldRef: "https://cdn.example.com/my photo.png",
			want:   StrategyEncoded,
			result: `<img src="https://files.example.com/out.png">`,
		},
		{
			name:   "html escaped query",
			markup: `<img src="https://cdn.example.com/a.png?w=1&amp;h=2">`,
			oldRef: "https://cdn.example.com/a.png?w=1&h=2",
			want:   StrategyEncoded,
			result: `<img src="https://files.example.com/out.png">`,
		},
		{
			name:   "decoded",
			markup: `<img src="https://cdn.example.com/my photo.png">`,
			oldRef: "https://cdn.example.com/my%20photo.png",
			want:   StrategyDecoded,
			result: `<img src="https://files.example.com/out.png">`,
		},
		{
			name:   "path ignoring query",
			markup: `<img src="https://cdn.example.com/a.png?v=2">`,
			oldRef: "https://cdn.example.com/a.png?v=1",
			want:   StrategyPath,
			result: `<img src="https://files.example.com/out.png">`,
		},
		{
			name:   "unique filename",
			markup: `<section><img src="https://new.example.com/img/banner.png"></section>`,
			oldRef: "https://old.example.com/assets/banner.png",
			want:   StrategyFilename,
			result: `<section><img src="https://files.example.com/out.png"></section>`,
		},
		{
			name:   "css url",
			markup: `<div style="background:url('https://cdn.example.com/bg.png')"></div>`,
			oldRef: "https://cdn.example.com/bg.png",
			want:   StrategyExact,
			result: `<div style="background:url('https://files.example.com/out.png')"></div>`,
		},
		{
			name:   "global literal",
			markup: `<div data-bg="https://cdn.example.com/a.png"></div>`,
			oldRef: "https://cdn.example.com/a.png",
			want:   StrategyGlobal,
			result: `<div data-bg="https://files.example.com/out.png"></div>`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			swap := ReplaceReference(tc.markup, tc.oldRef, newRef, NoHint)
			assert.Equal(t, tc.want, swap.Strategy)
			assert.Equal(t, tc.result, swap.Markup)
		})
	}
}

func TestReplaceReferenceNoMatchIsUnchanged(t *testing.T) {
	markup := `<img src="https://cdn.example.com/a.png">`
	swap := ReplaceReference(markup, "https://elsewhere.example.com/b.png", "https://files.example.com/c.png", NoHint)
	assert.False(t, swap.Matched())
	assert.Equal(t, markup, swap.Markup)

	swap = ReplaceReference(markup, "https://cdn.example.com/a.png", "https://cdn.example.com/a.png", 0)
	assert.False(t, swap.Matched())

	swap = ReplaceReference(markup, "https://elsewhere.example.com/b.png", "https://files.example.com/c.png", 5)
	assert.False(t, swap.Matched(), "hint past the last image")
}

func TestApplyCorrectionsCountsAppliedAndFailed(t *testing.T) {
	content := "Jetzt kaufen und sparen. Angebot gultig bis Sonntag. Versand kostenlos."
	corrections := []domain.Correction{
		{Find: "gultig", Replace: "gültig"},
		{Find: "Jetzt kaufen", Replace: "Jetzt bestellen"},
		{Find: "not in the text", Replace: "anything"},
		{Find: "Versand kostenlos", Replace: "Kostenloser Versand"},
	}

	out, report := ApplyCorrections(content, corrections)
	require.Len(t, report.Applied, 3)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "not in the text", report.Failed[0].Find)
	for _, c := range report.Applied {
		assert.Zero(t, strings.Count(out, c.Find), "applied find %q must be gone", c.Find)
	}
	assert.Equal(t, "Jetzt bestellen und sparen. Angebot gültig bis Sonntag. Kostenloser Versand.", out)

	again, second := ApplyCorrections(out, corrections)
	assert.Equal(t, out, again, "second pass must not transform twice")
	assert.Empty(t, second.Applied)
	assert.Len(t, second.Failed, 4)
}

func TestApplyCorrectionsReplacesEveryOccurrence(t *testing.T) {
	out, report := ApplyCorrections("colour, colour, colour", []domain.Correction{{Find: "colour", Replace: "Farbe"}, {Find: ""}})
	assert.Equal(t, "Farbe, Farbe, Farbe", out)
	assert.Equal(t, 3, report.Replacements)
	assert.Equal(t, 1, report.AppliedCount())
	assert.Len(t, report.Failed, 1)
}

func TestApplyCorrectionsIdentityReplaceCountsAsApplied(t *testing.T) {
	out, report := ApplyCorrections("hello world", []domain.Correction{
		{Find: "hello", Replace: "hello"},
		{Find: "absent", Replace: "absent"},
	})
	assert.Equal(t, "hello world", out)
	require.Len(t, report.Applied, 1)
	assert.Equal(t, "hello", report.Applied[0].Find)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "absent", report.Failed[0].Find)
}

func TestReplaceReferencePositionSkipsDataSrc(t *testing.T) {
	markup := `<p><img data-src="lazy/a.png" src="/x/a.png"></p>`
	swap := ReplaceReference(markup, "https://old.example.com/gone.png", "https://files.example.com/new.png", 0)

	require.True(t, swap.Matched())
	assert.Equal(t, StrategyPosition, swap.Strategy)
	assert.Equal(t, `<p><img data-src="lazy/a.png" src="https://files.example.com/new.png"></p>`, swap.Markup)
}
