package registrar

import (
	"strconv"
	"strings"

	"github.com/aikoservices/aiko/pkg/metrics"
	"github.com/aikoservices/aiko/pkg/sexp"
	"github.com/aikoservices/aiko/pkg/service"
	"github.com/aikoservices/aiko/pkg/transport"
)

// handleIn dispatches /in catalog-maintenance commands, grounded on the
// teacher's fsm.go Apply switch-on-cmd.Op plus reconciler.go's
// sweep-and-prune shape (spec.md §4.10).
func (r *Registrar) handleIn(msg transport.Message) {
	command, params := sexp.Parse(msg.Payload)
	switch command {
	case "add":
		r.catalogAdd(params)
	case "remove":
		r.catalogRemove(sexp.ParamString(params, 0))
	case "query":
		r.catalogQuery(params)
	}
}

func (r *Registrar) catalogAdd(params []string) {
	topicPath := sexp.ParamString(params, 0)
	if topicPath == "" {
		return
	}
	rec := service.Record{
		TopicPath: topicPath,
		Protocol:  sexp.ParamString(params, 1),
		Transport: sexp.ParamString(params, 2),
		Owner:     sexp.ParamString(params, 3),
	}
	if len(params) > 4 {
		tagsTok := params[4]
		if strings.HasPrefix(tagsTok, "(") {
			rec.Tags = service.Tags(sexp.Sublist(tagsTok))
		}
	}
	if name, ok := rec.Tags.Get("name"); ok {
		rec.Name = name
	}
	rec.TimeAdd = Now()

	r.mu.Lock()
	if _, exists := r.catalog[topicPath]; !exists {
		r.catalog[topicPath] = rec
	}
	count := len(r.catalog)
	r.mu.Unlock()
	metrics.RegistrarServiceCount.Set(float64(count))

	_ = r.tr.Publish(r.selfTopic+"/out", sexp.Generate("add", params), false, false)
}

func (r *Registrar) catalogRemove(topicPath string) {
	if topicPath == "" {
		return
	}

	r.mu.Lock()
	rec, ok := r.catalog[topicPath]
	if ok {
		delete(r.catalog, topicPath)
		rec.TimeRemove = Now()
		r.history = append(r.history, rec)
		if len(r.history) > historyLimit {
			r.history = r.history[len(r.history)-historyLimit:]
		}
	}
	count := len(r.catalog)
	r.mu.Unlock()
	if ok {
		metrics.RegistrarServiceCount.Set(float64(count))
	}

	if ok {
		_ = r.tr.Publish(r.selfTopic+"/out", sexp.Generate("remove", []string{topicPath}), false, false)
	}
}

// removeProcess removes every service whose topic path lies under
// processPrefix ("namespace/host/process_id"); service-id "0" absence
// means the whole process vanished, per spec.md §4.10's last bullet.
func (r *Registrar) removeProcess(processPrefix string) {
	r.mu.Lock()
	var victims []string
	for tp := range r.catalog {
		if tp == processPrefix || strings.HasPrefix(tp, processPrefix+"/") {
			victims = append(victims, tp)
		}
	}
	r.mu.Unlock()

	for _, tp := range victims {
		r.catalogRemove(tp)
	}
}

func (r *Registrar) catalogQuery(params []string) {
	responseTopic := sexp.ParamString(params, 0)
	if responseTopic == "" {
		return
	}
	filter := service.Filter{
		Protocol:  sexp.ParamString(params, 1),
		Transport: sexp.ParamString(params, 2),
		Owner:     sexp.ParamString(params, 3),
	}
	if len(params) > 4 && strings.HasPrefix(params[4], "(") {
		filter.Tags = service.Tags(sexp.Sublist(params[4]))
	}

	r.mu.Lock()
	var matches []service.Record
	for _, rec := range r.catalog {
		if filter.Match(rec) {
			matches = append(matches, rec)
		}
	}
	r.mu.Unlock()

	_ = r.tr.Publish(responseTopic, sexp.Generate("item_count", []string{strconv.Itoa(len(matches))}), false, false)
	for _, rec := range matches {
		addParams := []string{rec.TopicPath, rec.Protocol, rec.Transport, rec.Owner}
		if len(rec.Tags) > 0 {
			addParams = append(addParams, "("+strings.Join(rec.Tags, " ")+")")
		}
		_ = r.tr.Publish(responseTopic, sexp.Generate("add", addParams), false, false)
	}
	_ = r.tr.Publish(r.selfTopic+"/out", sexp.Generate("sync", []string{responseTopic}), false, false)
}

// handleServiceState watches namespace/+/+/+/state for "(absent)"
// payloads, treating them as a remove for that topic path, or for the
// whole owning process if the service id is "0".
func (r *Registrar) handleServiceState(msg transport.Message) {
	command, _ := sexp.Parse(msg.Payload)
	if command != "absent" {
		return
	}

	topicPath := strings.TrimSuffix(msg.Topic, "/state")
	parts := strings.Split(topicPath, "/")
	if len(parts) == 4 && parts[3] == "0" {
		r.removeProcess(strings.Join(parts[:3], "/"))
		return
	}
	r.catalogRemove(topicPath)
}
