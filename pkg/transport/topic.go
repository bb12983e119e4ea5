package transport

import "strings"

// TopicMatches reports whether topic matches an MQTT-style subscription
// pattern: "+" matches exactly one path segment, "#" (only legal as the
// final segment) matches the remaining segments. Used by both
// FakeTransport and the registrar's "namespace/+/+/+/state" subscription
// (spec.md §4.10).
func TopicMatches(pattern, topic string) bool {
	pSegs := strings.Split(pattern, "/")
	tSegs := strings.Split(topic, "/")

	for i, p := range pSegs {
		if p == "#" {
			return true
		}
		if i >= len(tSegs) {
			return false
		}
		if p == "+" {
			continue
		}
		if p != tSegs[i] {
			return false
		}
	}
	return len(pSegs) == len(tSegs)
}
