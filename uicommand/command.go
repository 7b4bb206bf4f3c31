// Package uicommand defines the ordered command stream that carries
// document mutations from the script side to the native rendering layer.
package uicommand

import "fmt"

// Op identifies the kind of a command record.
type Op uint8

const (
	OpCreateElement Op = iota + 1
	OpCreateTextNode
	OpDispose
	OpSetProperty
	OpRemoveProperty
	OpSetStyle
	OpInsertAdjacentNode
	OpRemoveNode
	OpAddEvent
)

var opNames = map[Op]string{
	OpCreateElement:      "create-element",
	OpCreateTextNode:     "create-text-node",
	OpDispose:            "dispose",
	OpSetProperty:        "set-property",
	OpRemoveProperty:     "remove-property",
	OpSetStyle:           "set-style",
	OpInsertAdjacentNode: "insert-adjacent-node",
	OpRemoveNode:         "remove-node",
	OpAddEvent:           "add-event",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Positions understood by OpInsertAdjacentNode.
const (
	PositionBeforeEnd   = "beforeend"
	PositionBeforeBegin = "beforebegin"
)

// Command is one record of the stream. Name and Value carry the
// operation payload; ChildID is only meaningful for structural ops.
type Command struct {
	Op       Op     `cbor:"1,keyasint" json:"op"`
	TargetID int32  `cbor:"2,keyasint" json:"target"`
	Name     string `cbor:"3,keyasint,omitempty" json:"name,omitempty"`
	Value    string `cbor:"4,keyasint,omitempty" json:"value,omitempty"`
	ChildID  int32  `cbor:"5,keyasint,omitempty" json:"child,omitempty"`
}

func (c Command) String() string {
	switch c.Op {
	case OpInsertAdjacentNode:
		return fmt.Sprintf("%s #%d %s #%d", c.Op, c.TargetID, c.Name, c.ChildID)
	case OpDispose, OpRemoveNode:
		return fmt.Sprintf("%s #%d", c.Op, c.TargetID)
	case OpRemoveProperty, OpAddEvent, OpCreateElement:
		return fmt.Sprintf("%s #%d %s", c.Op, c.TargetID, c.Name)
	default:
		return fmt.Sprintf("%s #%d %s=%q", c.Op, c.TargetID, c.Name, c.Value)
	}
}

// CreateElement builds a create-element record.
func CreateElement(id int32, tag string) Command {
	return Command{Op: OpCreateElement, TargetID: id, Name: tag}
}

// CreateTextNode builds a create-text-node record.
func CreateTextNode(id int32, data string) Command {
	return Command{Op: OpCreateTextNode, TargetID: id, Value: data}
}

// Dispose builds a dispose record.
func Dispose(id int32) Command {
	return Command{Op: OpDispose, TargetID: id}
}

// SetProperty builds a set-property record.
func SetProperty(id int32, name, value string) Command {
	return Command{Op: OpSetProperty, TargetID: id, Name: name, Value: value}
}

// RemoveProperty builds a remove-property record.
func RemoveProperty(id int32, name string) Command {
	return Command{Op: OpRemoveProperty, TargetID: id, Name: name}
}

// SetStyle builds a set-style record. An empty value clears the property.
func SetStyle(id int32, name, value string) Command {
	return Command{Op: OpSetStyle, TargetID: id, Name: name, Value: value}
}

// InsertAdjacentNode builds an insert-adjacent-node record placing child
// relative to target.
func InsertAdjacentNode(target int32, position string, child int32) Command {
	return Command{Op: OpInsertAdjacentNode, TargetID: target, Name: position, ChildID: child}
}

// RemoveNode builds a remove-node record.
func RemoveNode(id int32) Command {
	return Command{Op: OpRemoveNode, TargetID: id}
}

// AddEvent builds an add-event record.
func AddEvent(id int32, eventType string) Command {
	return Command{Op: OpAddEvent, TargetID: id, Name: eventType}
}
