package rollup

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genorollup/pkg/domain"
)

func validInput() SettingsInput {
	return SettingsInput{
		Variant:             MarkerVariant,
		SentinelTerm:        testSentinel,
		ProvenanceTerm:      testProvenance,
		MaxBatchAnnotations: 5000,
		DockingSites:        []domain.DockingSite{{Marker: hprtKey, Symbol: "Hprt", IntrinsicPhenotype: true}},
	}
}

func TestNewSettings(t *testing.T) {
	s, err := NewSettings(validInput())
	require.NoError(t, err)
	assert.Equal(t, domain.TargetMarker, s.Target())
	assert.Equal(t, testSentinel, s.SentinelTerm())
	assert.Equal(t, testProvenance, s.ProvenanceTerm())
	assert.Equal(t, 5000, s.MaxBatchAnnotations())
	assert.Equal(t, "marker", s.Variant().Name)

	site, ok := s.DockingSite(hprtKey)
	require.True(t, ok)
	assert.True(t, site.IntrinsicPhenotype)
	_, ok = s.DockingSite(rosaKey)
	assert.False(t, ok)
}

func TestNewSettingsRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SettingsInput)
		field  string
	}{
		{"no variant", func(in *SettingsInput) { in.Variant = Variant{} }, "variant.target"},
		{"null sentinel", func(in *SettingsInput) { in.SentinelTerm = 0 }, "sentinel_term_key"},
		{"null provenance", func(in *SettingsInput) { in.ProvenanceTerm = 0 }, "provenance_term_key"},
		{"zero batch", func(in *SettingsInput) { in.MaxBatchAnnotations = 0 }, "max_batch_annotations"},
		{"site without marker", func(in *SettingsInput) {
			in.DockingSites = append(in.DockingSites, domain.DockingSite{Symbol: "X"})
		}, "docking_sites"},
		{"duplicate site", func(in *SettingsInput) {
			in.DockingSites = append(in.DockingSites, domain.DockingSite{Marker: hprtKey, Symbol: "Hprt"})
		}, "docking_sites"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := NewSettings(in)
			require.Error(t, err)
			assert.True(t, IsConfig(err))

			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tc.field, ce.Field)
		})
	}
}

func TestSettingsDockingSitesAreCopied(t *testing.T) {
	in := validInput()
	s, err := NewSettings(in)
	require.NoError(t, err)

	in.DockingSites[0].IntrinsicPhenotype = false
	site, _ := s.DockingSite(hprtKey)
	assert.True(t, site.IntrinsicPhenotype)
}

func TestVariantFor(t *testing.T) {
	v, ok := VariantFor(domain.TargetAllele)
	require.True(t, ok)
	assert.False(t, v.ExemptExpressing)
	assert.False(t, v.MarkerRules)

	v, ok = VariantFor(domain.TargetMarker)
	require.True(t, ok)
	assert.True(t, v.ExemptExpressing)

	_, ok = VariantFor("strain")
	assert.False(t, ok)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "rollup config: f: bad", (&ConfigError{Field: "f", Reason: "bad"}).Error())
	err := integrityf("term", 5, "missing %s", "row")
	assert.Equal(t, "rollup integrity: term 5: missing row", err.Error())
	assert.False(t, IsConfig(err))
}
