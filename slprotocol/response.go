package slprotocol

import (
	"regexp"
	"strconv"
	"strings"
)

// messagePattern matches the three line shapes the device emits:
//
//	!METHOD
//	!METHOD(DATA)
//	!METHOD(DATA)"EXTRA"
var messagePattern = regexp.MustCompile(`^!([A-Z0-9]+)(?:\(([^)]+)\)(?:"([^"]+)")?)?$`)

// Message is one decoded inbound line.
type Message struct {
	Method string
	Data   string // Content of the parentheses; empty when absent
	Extra  string // Quoted text after the parentheses; empty when absent
}

// ParseMessage decodes a raw line. Surrounding whitespace, including the
// carriage return, is ignored. The second return value is false when the
// line does not conform to the grammar; such lines are noise, not errors.
func ParseMessage(line string) (Message, bool) {
	m := messagePattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Message{}, false
	}
	return Message{Method: m[1], Data: m[2], Extra: m[3]}, true
}

// HasData reports whether the line carried a parenthesized value.
func (m Message) HasData() bool {
	return m.Data != ""
}

// Int returns the data field as an integer.
func (m Message) Int() (int, bool) {
	n, err := strconv.Atoi(m.Data)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Format reconstructs the wire form of the message, without the terminator.
func (m Message) Format() string {
	var b strings.Builder
	b.WriteString(Prefix)
	b.WriteString(m.Method)
	if m.Data != "" {
		b.WriteByte('(')
		b.WriteString(m.Data)
		b.WriteByte(')')
		if m.Extra != "" {
			b.WriteByte('"')
			b.WriteString(m.Extra)
			b.WriteByte('"')
		}
	}
	return b.String()
}

// String implements fmt.Stringer.
func (m Message) String() string {
	return m.Format()
}
