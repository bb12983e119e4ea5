// Package service implements the Aiko process identity primitives of
// spec.md §3: topic paths, service records, tags and the wildcard
// conjunctive filter shared by the Registrar's catalog query and the
// discovery cache.
package service

import (
	"fmt"
	"strings"
)

// TopicPath identifies one service instance on the broker:
// namespace/host/process_id/service_id.
type TopicPath struct {
	Namespace string
	Host      string
	ProcessID string
	ServiceID string
}

// String renders the topic path.
func (p TopicPath) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", p.Namespace, p.Host, p.ProcessID, p.ServiceID)
}

// ParseTopicPath parses a "namespace/host/process_id/service_id" string.
func ParseTopicPath(s string) (TopicPath, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 4 {
		return TopicPath{}, fmt.Errorf("service: malformed topic path %q", s)
	}
	return TopicPath{Namespace: parts[0], Host: parts[1], ProcessID: parts[2], ServiceID: parts[3]}, nil
}

// In is the service's inbound command topic.
func (p TopicPath) In() string { return p.String() + "/in" }

// Out is the service's outbound event topic.
func (p TopicPath) Out() string { return p.String() + "/out" }

// State is the service's lifecycle-state topic.
func (p TopicPath) State() string { return p.String() + "/state" }

// Control is the service's EC control topic.
func (p TopicPath) Control() string { return p.String() + "/control" }

// Log is the service's diagnostic log topic.
func (p TopicPath) Log() string { return p.String() + "/log" }

// Tags is a set of "key=value" strings.
type Tags []string

// Get returns the value for key, and whether it was present.
func (t Tags) Get(key string) (string, bool) {
	prefix := key + "="
	for _, tag := range t {
		if strings.HasPrefix(tag, prefix) {
			return strings.TrimPrefix(tag, prefix), true
		}
	}
	return "", false
}

// Match reports whether every tag in required is present in t
// (subset-containment, per spec.md §4.11).
func (t Tags) Match(required Tags) bool {
	set := make(map[string]bool, len(t))
	for _, tag := range t {
		set[tag] = true
	}
	for _, req := range required {
		if !set[req] {
			return false
		}
	}
	return true
}

// Record is the Registrar's catalog entry for one service (spec.md §3).
type Record struct {
	TopicPath  string
	Name       string
	Protocol   string
	Transport  string
	Owner      string
	Tags       Tags
	TimeAdd    int64
	TimeRemove int64
}

// Filter describes a service query; any field left "*" (or Tags empty)
// is a wildcard. Matching is conjunctive across all fields (spec.md §3).
type Filter struct {
	TopicPath string
	Name      string
	Protocol  string
	Transport string
	Owner     string
	Tags      Tags
}

const wildcard = "*"

// Match reports whether rec satisfies f.
func (f Filter) Match(rec Record) bool {
	if !fieldMatch(f.TopicPath, rec.TopicPath) {
		return false
	}
	if !fieldMatch(f.Name, rec.Name) {
		return false
	}
	if !fieldMatch(f.Protocol, rec.Protocol) {
		return false
	}
	if !fieldMatch(f.Transport, rec.Transport) {
		return false
	}
	if !fieldMatch(f.Owner, rec.Owner) {
		return false
	}
	if len(f.Tags) > 0 && !rec.Tags.Match(f.Tags) {
		return false
	}
	return true
}

func fieldMatch(filterValue, recordValue string) bool {
	return filterValue == "" || filterValue == wildcard || filterValue == recordValue
}
