package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicPathRoundTrip(t *testing.T) {
	p := TopicPath{Namespace: "ns", Host: "h1", ProcessID: "123", ServiceID: "0"}
	assert.Equal(t, "ns/h1/123/0", p.String())
	assert.Equal(t, "ns/h1/123/0/in", p.In())
	assert.Equal(t, "ns/h1/123/0/out", p.Out())
	assert.Equal(t, "ns/h1/123/0/state", p.State())
	assert.Equal(t, "ns/h1/123/0/control", p.Control())
	assert.Equal(t, "ns/h1/123/0/log", p.Log())

	parsed, err := ParseTopicPath("ns/h1/123/0")
	require.NoError(t, err)
	assert.Equal(t, p, parsed)
}

func TestParseTopicPathRejectsMalformed(t *testing.T) {
	_, err := ParseTopicPath("ns/h1/123")
	assert.Error(t, err)
}

func TestTagsGetAndMatch(t *testing.T) {
	tags := Tags{"role=leader", "zone=us-east"}
	v, ok := tags.Get("role")
	require.True(t, ok)
	assert.Equal(t, "leader", v)

	_, ok = tags.Get("missing")
	assert.False(t, ok)

	assert.True(t, tags.Match(Tags{"role=leader"}))
	assert.False(t, tags.Match(Tags{"role=follower"}))
	assert.True(t, tags.Match(nil))
}

func TestFilterMatch(t *testing.T) {
	rec := Record{
		TopicPath: "ns/h1/123/0",
		Name:      "registrar",
		Protocol:  "aiko:0",
		Transport: "mqtt",
		Owner:     "alice",
		Tags:      Tags{"role=primary"},
	}

	assert.True(t, (Filter{}).Match(rec))
	assert.True(t, (Filter{Name: "registrar", Tags: Tags{"role=primary"}}).Match(rec))
	assert.False(t, (Filter{Name: "other"}).Match(rec))
	assert.False(t, (Filter{Tags: Tags{"role=secondary"}}).Match(rec))
	assert.True(t, (Filter{Protocol: "*"}).Match(rec))
}
