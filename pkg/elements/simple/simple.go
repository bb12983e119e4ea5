// Package simple implements a handful of example pipeline elements,
// trimmed of numpy, ported from original_source/aiko_services/elements/
// simple.py (MathList, RandInt, Print) to demonstrate the
// element.Element contract against pkg/pipeline's factory registry.
package simple

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/aikoservices/aiko/pkg/element"
	"github.com/aikoservices/aiko/pkg/log"
	"github.com/aikoservices/aiko/pkg/pipeline"
)

func init() {
	pipeline.Register("simple.MathList", NewMathList)
	pipeline.Register("simple.RandInt", NewRandInt)
	pipeline.Register("simple.Print", NewPrint)
}

// parseNumbers splits a comma-separated "numbers" input token into ints,
// skipping any that fail to parse.
func parseNumbers(s string) []int {
	var out []int
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if n, err := strconv.Atoi(tok); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// MathList sums or multiplies the numbers in its "numbers" input.
type MathList struct {
	name      string
	operation string
}

// NewMathList is a pipeline.Factory for MathList.
func NewMathList(name string, parameters map[string]string) (element.Element, error) {
	op := parameters["operation"]
	if op != "add" && op != "product" {
		return nil, fmt.Errorf("simple.MathList: unsupported operation %q", op)
	}
	return &MathList{name: name, operation: op}, nil
}

func (m *MathList) Name() string { return m.name }

func (m *MathList) StartStream(ctx context.Context, s element.Stream) (element.StreamEvent, string) {
	return element.OKAY, ""
}

func (m *MathList) StopStream(ctx context.Context, s element.Stream) (element.StreamEvent, string) {
	return element.OKAY, ""
}

func (m *MathList) ProcessFrame(ctx context.Context, s element.Stream, inputs map[string]string) (element.StreamEvent, map[string]string) {
	numbers := parseNumbers(inputs["numbers"])
	var result int
	switch m.operation {
	case "add":
		for _, n := range numbers {
			result += n
		}
	case "product":
		result = 1
		for _, n := range numbers {
			result *= n
		}
	}
	return element.OKAY, map[string]string{"result": strconv.Itoa(result)}
}

// RandInt generates a list of random ints each frame, for "iterations"
// frames, then signals LOOP_END.
type RandInt struct {
	name       string
	listLen    int
	iterations int
	min, max   int
}

// NewRandInt is a pipeline.Factory for RandInt.
func NewRandInt(name string, parameters map[string]string) (element.Element, error) {
	r := &RandInt{name: name, listLen: 10, iterations: 10, min: 0, max: 10}
	if v, ok := parameters["list_len"]; ok {
		r.listLen, _ = strconv.Atoi(v)
	}
	if v, ok := parameters["iterations"]; ok {
		r.iterations, _ = strconv.Atoi(v)
	}
	if v, ok := parameters["min"]; ok {
		r.min, _ = strconv.Atoi(v)
	}
	if v, ok := parameters["max"]; ok {
		r.max, _ = strconv.Atoi(v)
	}
	return r, nil
}

func (r *RandInt) Name() string { return r.name }

func (r *RandInt) StartStream(ctx context.Context, s element.Stream) (element.StreamEvent, string) {
	return element.OKAY, ""
}

func (r *RandInt) StopStream(ctx context.Context, s element.Stream) (element.StreamEvent, string) {
	return element.OKAY, ""
}

func (r *RandInt) ProcessFrame(ctx context.Context, s element.Stream, inputs map[string]string) (element.StreamEvent, map[string]string) {
	frame := 0
	if s != nil {
		if v, ok := s.Variable("randint_frame"); ok {
			frame, _ = v.(int)
		}
	}
	if frame >= r.iterations {
		return element.LoopEnd, nil
	}
	if s != nil {
		s.SetVariable("randint_frame", frame+1)
	}

	nums := make([]int, r.listLen)
	for i := range nums {
		nums[i] = r.min + rand.IntN(r.max-r.min+1)
	}
	return element.OKAY, map[string]string{"list": joinInts(nums)}
}

// Print logs two labeled inputs at info level.
type Print struct {
	name     string
	message1 string
	message2 string
}

// NewPrint is a pipeline.Factory for Print.
func NewPrint(name string, parameters map[string]string) (element.Element, error) {
	return &Print{name: name, message1: parameters["message_1"], message2: parameters["message_2"]}, nil
}

func (p *Print) Name() string { return p.name }

func (p *Print) StartStream(ctx context.Context, s element.Stream) (element.StreamEvent, string) {
	return element.OKAY, ""
}

func (p *Print) StopStream(ctx context.Context, s element.Stream) (element.StreamEvent, string) {
	return element.OKAY, ""
}

func (p *Print) ProcessFrame(ctx context.Context, s element.Stream, inputs map[string]string) (element.StreamEvent, map[string]string) {
	logger := log.WithComponent("element.print")
	logger.Info().Msg(p.message1 + inputs["to_print_1"])
	logger.Info().Msg(p.message2 + inputs["to_print_2"])
	return element.OKAY, nil
}
