package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/guideline-extractor/internal/llm"
	"github.com/jonathan/guideline-extractor/internal/llm/llmtest"
	"github.com/jonathan/guideline-extractor/internal/types"
)

func TestBootstrapMetadata(t *testing.T) {
	client := reply("```json\n{\"guideline_name\":\"Primary Healthcare STG\",\"guideline_version\":\"7th edition\",\"country\":\"South Africa\",\"jurisdiction_level\":\"National\"}\n```")

	meta, usage, err := BootstrapMetadata(context.Background(), client, testRegistry(t), testPage(1), nil)
	require.NoError(t, err)
	require.NotNil(t, meta)

	assert.Equal(t, "Primary Healthcare STG", meta.GuidelineName)
	assert.Equal(t, "7th edition", meta.GuidelineVersion)
	assert.Equal(t, "National", meta.JurisdictionLevel)
	assert.Equal(t, 1500, usage.InputTokens)

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "cover page")
	assert.False(t, isPagePrompt(calls[0].Prompt))
}

func TestBootstrapMetadata_Rejected(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "not json", text: "The title is STG"},
		{name: "array", text: `[{"guideline_name":"STG"}]`},
		{name: "missing name", text: `{"country":"Kenya"}`},
		{name: "empty name", text: `{"guideline_name":""}`},
		{name: "wrong field type", text: `{"guideline_name":"STG","country":5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, _, err := BootstrapMetadata(context.Background(), reply(tt.text), testRegistry(t), testPage(1), nil)
			require.Error(t, err)
			assert.Nil(t, meta)
			assert.Contains(t, err.Error(), "metadata reply rejected")
		})
	}
}

func TestBootstrapMetadata_TransportFailure(t *testing.T) {
	client := llmtest.New(func(llmtest.Call) llmtest.Reply {
		return llmtest.Reply{Err: &llm.TransportError{Provider: llm.ProviderGemini, Message: "API key is required"}}
	})

	_, _, err := BootstrapMetadata(context.Background(), client, testRegistry(t), testPage(1), nil)
	var transportErr *llm.TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestDeriveGuidelineID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "spaces", in: "Standard Treatment Guidelines", want: "standard_treatment_guidelines"},
		{name: "surrounding spaces kept", in: "  EML 2024 ", want: "__eml_2024_"},
		{name: "tabs untouched", in: "EML\t2024", want: "eml\t2024"},
		{name: "already an id", in: "stg_phc", want: "stg_phc"},
		{name: "truncated", in: strings.Repeat("Long Title ", 10), want: strings.Repeat("long_title_", 10)[:50]},
		{name: "runes", in: strings.Repeat("é", 60), want: strings.Repeat("é", 50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveGuidelineID(tt.in)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len([]rune(got)), 50)
			assert.Equal(t, got, DeriveGuidelineID(tt.in))
		})
	}
}

func TestToGuidelineInfo(t *testing.T) {
	meta := &types.GuidelineMetadata{
		GuidelineName:     "Primary Healthcare STG",
		GuidelineVersion:  "2024",
		Country:           "South Africa",
		JurisdictionLevel: "Provincial",
		JurisdictionName:  "Western Cape",
		Organization:      "Department of Health",
	}

	info, err := ToGuidelineInfo(meta, GuidelineOverrides{})
	require.NoError(t, err)
	assert.Equal(t, "primary_healthcare_stg", info.GuidelineID)
	assert.Equal(t, "Western Cape", info.Jurisdiction)
	assert.Equal(t, "Department of Health", info.Organization)
	assert.Equal(t, types.RegulatoryDraft, info.RegulatoryStatus)

	meta.JurisdictionName = ""
	info, err = ToGuidelineInfo(meta, GuidelineOverrides{})
	require.NoError(t, err)
	assert.Equal(t, "Provincial", info.Jurisdiction)

	meta.GuidelineID = "PHC STG 7"
	info, err = ToGuidelineInfo(meta, GuidelineOverrides{})
	require.NoError(t, err)
	assert.Equal(t, "phc_stg_7", info.GuidelineID)
}

func TestToGuidelineInfo_OverridesWin(t *testing.T) {
	meta := &types.GuidelineMetadata{GuidelineName: "Extracted", Country: "Kenya"}

	info, err := ToGuidelineInfo(meta, GuidelineOverrides{
		GuidelineID:      "custom",
		GuidelineVersion: "v9",
		Country:          "Uganda",
		RegulatoryStatus: types.RegulatoryOfficial,
	})
	require.NoError(t, err)
	assert.Equal(t, "custom", info.GuidelineID)
	assert.Equal(t, "Extracted", info.GuidelineName)
	assert.Equal(t, "v9", info.GuidelineVersion)
	assert.Equal(t, "Uganda", info.Country)
	assert.Equal(t, types.RegulatoryOfficial, info.RegulatoryStatus)
}

func TestToGuidelineInfo_WithoutMetadata(t *testing.T) {
	info, err := ToGuidelineInfo(nil, GuidelineOverrides{GuidelineName: "Manual Name"})
	require.NoError(t, err)
	assert.Equal(t, "manual_name", info.GuidelineID)

	_, err = ToGuidelineInfo(nil, GuidelineOverrides{})
	assert.Error(t, err)

	_, err = ToGuidelineInfo(nil, GuidelineOverrides{GuidelineName: "x", RegulatoryStatus: "final"})
	assert.Error(t, err)
}
