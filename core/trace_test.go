package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObservation_EndClampsTimestamp(t *testing.T) {
	obs := NewObservation("t1", "", "root", ObservationSpan)
	obs.StartTime = time.Now().UTC().Add(time.Hour)

	obs.End("done", StatusOK, "")
	assert.False(t, obs.EndTime.Before(obs.StartTime), "end must never precede start")
	assert.True(t, obs.Closed())
}

func TestTrace_MergeMetadataKeepsExistingKeys(t *testing.T) {
	tr := NewTrace("run", "u1", "s1", []string{"banking"}, map[string]any{"repo": "a/b"})

	tr.MergeMetadata(map[string]any{"repo": "c/d", "turns": 3}, false)
	assert.Equal(t, "a/b", tr.Metadata["repo"])
	assert.Equal(t, 3, tr.Metadata["turns"])

	tr.MergeMetadata(map[string]any{"repo": "c/d"}, true)
	assert.Equal(t, "c/d", tr.Metadata["repo"])
}

func TestTrace_AddTagsDeduplicates(t *testing.T) {
	tr := NewTrace("run", "u1", "s1", []string{"banking"}, nil)
	tr.AddTags("pass", "banking", "pass")
	assert.Equal(t, []string{"banking", "pass"}, tr.Tags)
}

func TestTrace_Root(t *testing.T) {
	tr := NewTrace("run", "u1", "s1", nil, nil)
	tr.Observations = []Observation{
		{ID: "a", ParentID: "root"},
		{ID: "root", ParentID: ""},
	}
	root := tr.Root()
	assert.NotNil(t, root)
	assert.Equal(t, "root", root.ID)
}

func TestObservation_CloneIsolation(t *testing.T) {
	obs := NewObservation("t1", "", "span", ObservationGeneration)
	obs.Metadata = map[string]any{"k": "v"}
	obs.Usage = &Usage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3}

	clone := obs.Clone()
	clone.Metadata["k"] = "changed"
	clone.Usage.TotalTokens = 99

	assert.Equal(t, "v", obs.Metadata["k"])
	assert.Equal(t, 3, obs.Usage.TotalTokens)
}
