package entity

import (
	"errors"
	"fmt"
	"strings"
)

// Class is one of the entity kinds managed by the console.
type Class uint8

// Supported entity classes.
const (
	Sensor Class = iota + 1
	Zone
	Setup
	Worker
	Action
	ActionParam
	Notifier
	NotifierParam
	SensorParam
	Alarm
	Log
)

// ErrUnknownClass is returned when a name does not match any registered class.
var ErrUnknownClass = errors.New("unknown entity class")

// classInfo describes how a class is addressed on the remote API.
type classInfo struct {
	// name is the singular form used in relationship keys ("zone" -> "zone_id").
	name string
	// collection is the plural form every endpoint path starts with.
	collection string
}

//nolint:gochecknoglobals // Static registry of the closed class set.
var registry = map[Class]classInfo{
	Sensor:        {name: "sensor", collection: "sensors"},
	Zone:          {name: "zone", collection: "zones"},
	Setup:         {name: "setup", collection: "setups"},
	Worker:        {name: "worker", collection: "workers"},
	Action:        {name: "action", collection: "actions"},
	ActionParam:   {name: "actionparam", collection: "actionparams"},
	Notifier:      {name: "notifier", collection: "notifiers"},
	NotifierParam: {name: "notifierparam", collection: "notifierparams"},
	SensorParam:   {name: "sensorparam", collection: "sensorparams"},
	Alarm:         {name: "alarm", collection: "alarms"},
	Log:           {name: "log", collection: "logs"},
}

// Classes returns every registered class in declaration order.
func Classes() []Class {
	result := make([]Class, 0, len(registry))
	for c := Sensor; c <= Log; c++ {
		result = append(result, c)
	}

	return result
}

// ParseClass resolves a singular or plural class name.
func ParseClass(name string) (Class, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, info := range registry {
		if info.name == name || info.collection == name {
			return c, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownClass, name)
}

// Valid reports whether c is a registered class.
func (c Class) Valid() bool {
	_, ok := registry[c]

	return ok
}

// Name returns the singular class name.
func (c Class) Name() string {
	return registry[c].name
}

// Collection returns the plural class name used in endpoint paths and exports.
func (c Class) Collection() string {
	return registry[c].collection
}

// String implements fmt.Stringer.
func (c Class) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Class(%d)", uint8(c))
	}

	return c.Collection()
}

// Endpoint builds the path of an operation on this class, e.g. "/zones/list".
func (c Class) Endpoint(op Operation) string {
	return "/" + c.Collection() + "/" + string(op)
}

// Operation names the endpoints of a class family.
type Operation string

// Operations of the entity endpoint family.
const (
	OpFieldList Operation = "fieldList"
	OpList      Operation = "list"
	OpAdd       Operation = "add"
	OpUpdate    Operation = "update"
	OpDelete    Operation = "delete"
	OpAck       Operation = "ack"
	OpAckAll    Operation = "ackAll"
)

// Singleton activation endpoints.
const (
	ActivatePath   = "/activate"
	DeactivatePath = "/deactivate"
)
