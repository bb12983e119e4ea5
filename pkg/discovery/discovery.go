// Package discovery implements the process-wide service cache of
// spec.md §4.11: a singleton fed by the primary registrar's /out topic,
// with (handler, filter) registration and synchronous change dispatch.
package discovery

import (
	"strings"
	"sync"

	"github.com/aikoservices/aiko/pkg/log"
	"github.com/aikoservices/aiko/pkg/sexp"
	"github.com/aikoservices/aiko/pkg/service"
	"github.com/aikoservices/aiko/pkg/transport"
	"github.com/rs/zerolog"
)

// ChangeHandler is invoked synchronously, on the event-loop thread, when
// an add or remove event matches the handler's registered filter.
type ChangeHandler func(action string, rec service.Record)

type registration struct {
	filter  service.Filter
	handler ChangeHandler
}

// Cache is the shared discovery cache, grounded on the teacher's
// scheduler.Scheduler's periodic ListNodes/ListServices read-then-act
// loop, converted here from polled to event-driven.
type Cache struct {
	mu     sync.Mutex
	recs   map[string]service.Record
	regs   map[int]*registration
	nextID int
	log    zerolog.Logger
}

var (
	defaultOnce sync.Once
	defaultC    *Cache
)

// Default returns the process-wide Cache singleton.
func Default() *Cache {
	defaultOnce.Do(func() {
		defaultC = New()
	})
	return defaultC
}

// New creates an unattached Cache; most callers want Default().
func New() *Cache {
	return &Cache{
		recs: make(map[string]service.Record),
		regs: make(map[int]*registration),
		log:  log.WithComponent("discovery"),
	}
}

// Attach subscribes to the primary registrar's /out topic at
// registrarTopicPath and begins updating the cache.
func (c *Cache) Attach(tr transport.Transport, registrarTopicPath string) error {
	return tr.Subscribe([]string{registrarTopicPath + "/out"}, c.handleEvent)
}

func (c *Cache) handleEvent(msg transport.Message) {
	command, params := sexp.Parse(msg.Payload)
	switch command {
	case "add":
		rec := service.Record{
			TopicPath: sexp.ParamString(params, 0),
			Protocol:  sexp.ParamString(params, 1),
			Transport: sexp.ParamString(params, 2),
			Owner:     sexp.ParamString(params, 3),
		}
		if len(params) > 4 && strings.HasPrefix(params[4], "(") {
			rec.Tags = service.Tags(sexp.Sublist(params[4]))
		}
		if name, ok := rec.Tags.Get("name"); ok {
			rec.Name = name
		}
		c.mu.Lock()
		c.recs[rec.TopicPath] = rec
		c.mu.Unlock()
		c.dispatch("add", rec)
	case "remove":
		topicPath := sexp.ParamString(params, 0)
		c.mu.Lock()
		rec, ok := c.recs[topicPath]
		delete(c.recs, topicPath)
		c.mu.Unlock()
		if ok {
			c.dispatch("remove", rec)
		}
	case "sync":
		// informational only.
	}
}

func (c *Cache) dispatch(action string, rec service.Record) {
	c.mu.Lock()
	regs := make([]*registration, 0, len(c.regs))
	for _, reg := range c.regs {
		regs = append(regs, reg)
	}
	c.mu.Unlock()

	for _, reg := range regs {
		if reg.filter.Match(rec) {
			reg.handler(action, rec)
		}
	}
}

// RegisterHandler registers fn to be invoked on every add/remove event
// matching filter. Returns a token Unregister accepts.
func (c *Cache) RegisterHandler(filter service.Filter, fn ChangeHandler) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.regs[id] = &registration{filter: filter, handler: fn}
	return id
}

// Unregister removes the handler identified by token.
func (c *Cache) Unregister(token int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.regs, token)
}

// Query returns every currently-cached record matching filter.
func (c *Cache) Query(filter service.Filter) []service.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []service.Record
	for _, rec := range c.recs {
		if filter.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}
