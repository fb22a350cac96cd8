package main

import (
	"strings"
)

// scenario is the answer the mock gives, independent of the wire format.
type scenario struct {
	tokens []string
	call   *mockCall
	// finish is one of "stop", "length" or "blocked".
	finish string
}

type mockCall struct {
	name      string
	arguments string
}

func (s scenario) text() string {
	return strings.Join(s.tokens, "")
}

// classify picks the scenario from the last user text and whether tools
// or system instructions were sent.
func classify(lastUser string, hasTools, hasSystem bool) scenario {
	lower := strings.ToLower(lastUser)
	switch {
	case hasTools:
		return scenario{
			call:   &mockCall{name: "get_weather", arguments: `{"location":"San Francisco","unit":"celsius"}`},
			finish: "stop",
		}
	case strings.Contains(lower, "overflow"):
		return scenario{tokens: []string{"This answer is ", "cut"}, finish: "length"}
	case strings.Contains(lower, "blocked"):
		return scenario{tokens: []string{"I was about to "}, finish: "blocked"}
	case hasSystem:
		return scenario{tokens: []string{"Ahoy there, ", "matey! ", "Welcome aboard!"}, finish: "stop"}
	case strings.Contains(lower, "count from 1 to 5"):
		return scenario{tokens: []string{"1", ", ", "2", ", ", "3", ", ", "4", ", ", "5"}, finish: "stop"}
	default:
		return scenario{tokens: []string{"Hello", ", ", "nice", " ", "day", "!"}, finish: "stop"}
	}
}
