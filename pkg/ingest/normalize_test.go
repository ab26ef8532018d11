package ingest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/mswim/pkg/models"
)

func TestNormalizeEvent_PrefersPageContextOverRoot(t *testing.T) {
	raw := json.RawMessage(`{
		"category": "navigation",
		"event_type": "page_view",
		"page_context": {"page_type": "pdp", "page_url": "/p/1"},
		"page_type": "landing",
		"page_url": "/"
	}`)
	evt, err := normalizeEvent("sess-1", raw, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PagePDP, evt.PageType)
	assert.Equal(t, "/p/1", evt.PageURL)
}

func TestNormalizeEvent_AcceptsCamelCaseVariants(t *testing.T) {
	raw := json.RawMessage(`{"category":"cart","eventType":"add_to_cart","frictionId":"F010","pageContext":{"pageType":"cart","pageUrl":"/cart"}}`)
	evt, err := normalizeEvent("sess-1", raw, 1)
	require.NoError(t, err)
	assert.Equal(t, "add_to_cart", evt.EventType)
	assert.Equal(t, "F010", evt.FrictionID)
}

func TestNormalizeEvent_MissingFieldsUseDocumentedDefaults(t *testing.T) {
	raw := json.RawMessage(`{}`)
	evt, err := normalizeEvent("sess-1", raw, 1)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryUnknown, evt.Category)
	assert.Equal(t, "unknown", evt.EventType)
	assert.Equal(t, models.PageOther, evt.PageType)
	assert.Equal(t, "", evt.PageURL)
}

func TestNormalizeEvent_SnakeCaseRootFallback(t *testing.T) {
	raw := json.RawMessage(`{"category":"navigation","event_type":"page_view","page_type":"category","page_url":"/c/1","time_on_page_ms":500,"scroll_depth_pct":40}`)
	evt, err := normalizeEvent("sess-1", raw, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PageCategory, evt.PageType)
	assert.Equal(t, "/c/1", evt.PageURL)
	assert.EqualValues(t, 500, evt.TimeOnPageMs)
	assert.Equal(t, 40, evt.ScrollDepthPct)
}

func TestParseCartSignals_ValidJSON(t *testing.T) {
	cs, ok := parseCartSignals(`{"value":99.5,"itemCount":3}`)
	require.True(t, ok)
	assert.Equal(t, 99.5, cs.Value)
	assert.Equal(t, 3, cs.ItemCount)
}

func TestParseCartSignals_EmptyOrInvalid(t *testing.T) {
	_, ok := parseCartSignals("")
	assert.False(t, ok)

	_, ok = parseCartSignals("not json")
	assert.False(t, ok)
}
