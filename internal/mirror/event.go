// 文件路径: internal/mirror/event.go
// 模块说明: webhook 事件类型的解析：实体种类 × 操作，共 15 种组合。
package mirror

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EntityKind is the mirrored entity a delivery concerns.
type EntityKind int

const (
	KindNode EntityKind = iota + 1
	KindAllocation
	KindEgg
	KindServer
	KindUser
)

var kindNames = map[EntityKind]string{
	KindNode:       "node",
	KindAllocation: "allocation",
	KindEgg:        "egg",
	KindServer:     "server",
	KindUser:       "user",
}

var modelKinds = map[string]EntityKind{
	"Node":       KindNode,
	"Allocation": KindAllocation,
	"Egg":        KindEgg,
	"Server":     KindServer,
	"User":       KindUser,
}

func (k EntityKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Operation is what happened to the entity remotely.
type Operation int

const (
	OpCreate Operation = iota + 1
	OpUpdate
	OpDelete
)

var opNames = map[Operation]string{
	OpCreate: "create",
	OpUpdate: "update",
	OpDelete: "delete",
}

var verbOps = map[string]Operation{
	"created": OpCreate,
	"updated": OpUpdate,
	"deleted": OpDelete,
}

func (o Operation) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// EventType pairs a kind with an operation, e.g. "server.update".
type EventType struct {
	Kind EntityKind
	Op   Operation
}

func (t EventType) String() string {
	return t.Kind.String() + "." + t.Op.String()
}

// Valid reports whether both halves are known.
func (t EventType) Valid() bool {
	_, k := kindNames[t.Kind]
	_, o := opNames[t.Op]
	return k && o
}

const (
	headerPrefix = "eloquent."
	modelPrefix  = `App\Models\`
)

// ParseEventHeader maps an x-webhook-event value such as
// `eloquent.updated: App\Models\Server` to its EventType.
func ParseEventHeader(h string) (EventType, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(h), headerPrefix)
	if !ok {
		return EventType{}, false
	}
	verb, model, ok := strings.Cut(rest, ":")
	if !ok {
		return EventType{}, false
	}
	op, ok := verbOps[verb]
	if !ok {
		return EventType{}, false
	}
	model, ok = strings.CutPrefix(strings.TrimSpace(model), modelPrefix)
	if !ok {
		return EventType{}, false
	}
	kind, ok := modelKinds[model]
	if !ok {
		return EventType{}, false
	}
	return EventType{Kind: kind, Op: op}, true
}

// ParseEventType is the inverse of EventType.String.
func ParseEventType(kind, op string) (EventType, bool) {
	var t EventType
	for k, name := range kindNames {
		if name == kind {
			t.Kind = k
		}
	}
	for o, name := range opNames {
		if name == op {
			t.Op = o
		}
	}
	return t, t.Valid()
}

// Event is one delivery ready to be applied.
type Event struct {
	Type    EventType
	Payload json.RawMessage
}

// ExtractRecord returns the record carried by a delivery body: the first element
// of an array, or the object itself.
func ExtractRecord(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}
	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("%w: empty array", ErrMalformedPayload)
		}
		first := bytes.TrimSpace(items[0])
		if len(first) == 0 || first[0] != '{' {
			return nil, fmt.Errorf("%w: first element is not an object", ErrMalformedPayload)
		}
		return json.RawMessage(first), nil
	case '{':
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("%w: invalid json object", ErrMalformedPayload)
		}
		return json.RawMessage(trimmed), nil
	default:
		return nil, fmt.Errorf("%w: expected array or object", ErrMalformedPayload)
	}
}
