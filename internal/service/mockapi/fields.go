package mockapi

import (
	"github.com/oshokin/secpi-console/internal/domain/entity"
)

// Visibility sets shared by the descriptor tables.
//
//nolint:gochecknoglobals // Read-only tables.
var (
	listOnly = []entity.Purpose{entity.PurposeList}
	allViews = []entity.Purpose{entity.PurposeList, entity.PurposeAdd, entity.PurposeUpdate}
	listAdd  = []entity.Purpose{entity.PurposeList, entity.PurposeAdd}
)

// field builds one descriptor.
func field(key, name string, visible []entity.Purpose, meta ...any) entity.FieldDescriptor {
	m := map[string]any{"name": name}
	for i := 0; i+1 < len(meta); i += 2 {
		if k, ok := meta[i].(string); ok {
			m[k] = meta[i+1]
		}
	}

	return entity.FieldDescriptor{Key: key, Meta: m, Visible: visible}
}

// paramFields describes the key/value parameter classes.
func paramFields(objectName, objectType string) []entity.FieldDescriptor {
	return []entity.FieldDescriptor{
		field("id", "ID", listOnly),
		field("object_id", objectName, allViews, "type", "number", "default", 0),
		field("object_type", "Type", allViews, "type", "hidden", "default", objectType),
		field("key", "Key", allViews),
		field("value", "Value", allViews),
		field("description", "Description", allViews),
	}
}

// schemaOf returns the field descriptors the mock API serves for class.
//
//nolint:funlen // One table entry per class.
func schemaOf(class entity.Class) []entity.FieldDescriptor {
	switch class {
	case entity.Sensor:
		return []entity.FieldDescriptor{
			field("id", "ID", listOnly),
			field("name", "Name", allViews),
			field("description", "Description", allViews),
			field("zone_id", "Zone ID", allViews, "type", "number"),
			field("worker_id", "Worker ID", allViews, "type", "number"),
			field("cl", "Class", allViews),
			field("module", "Module", allViews),
		}
	case entity.Zone:
		return []entity.FieldDescriptor{
			field("id", "ID", listOnly),
			field("name", "Name", allViews),
			field("description", "Description", allViews),
		}
	case entity.Setup:
		return []entity.FieldDescriptor{
			field("id", "ID", listOnly),
			field("name", "Name", allViews),
			field("description", "Description", allViews),
			field("active_state", "Active", allViews, "type", "bool", "default", 0),
		}
	case entity.Worker:
		return []entity.FieldDescriptor{
			field("id", "ID", listOnly),
			field("name", "Name", allViews),
			field("address", "IP Address", allViews),
			field("description", "Description", allViews),
			field("active_state", "Active", allViews, "type", "bool", "default", 0),
		}
	case entity.Action:
		return []entity.FieldDescriptor{
			field("id", "ID", listOnly),
			field("name", "Name", allViews),
			field("description", "Description", allViews),
			field("cl", "Class", allViews),
		}
	case entity.ActionParam:
		return []entity.FieldDescriptor{
			field("id", "ID", listOnly),
			field("action_id", "Action ID", allViews),
			field("key", "Key", allViews),
			field("value", "Value", allViews),
			field("description", "Description", allViews),
		}
	case entity.Notifier:
		return []entity.FieldDescriptor{
			field("id", "ID", listOnly),
			field("name", "Name", allViews),
			field("description", "Description", allViews),
			field("cl", "Class", allViews),
			field("module", "Module", allViews),
			field("active_state", "Active", allViews, "type", "bool", "default", 0),
		}
	case entity.NotifierParam:
		return paramFields("Notifier ID", "notifier")
	case entity.SensorParam:
		return paramFields("Object ID", "sensor")
	case entity.Alarm:
		return []entity.FieldDescriptor{
			field("id", "ID", listOnly),
			field("alarmtime", "Alarm Time", listOnly),
			field("sensor_id", "Sensor ID", allViews),
			field("message", "Message", listAdd),
			field("ack", "Ack", allViews, "type", "bool", "default", 0),
		}
	case entity.Log:
		return []entity.FieldDescriptor{
			field("id", "ID", listOnly),
			field("logtime", "Time", listAdd),
			field("ack", "Ack", allViews, "type", "bool", "default", 0),
			field("level", "Log Level", listAdd),
			field("message", "Message", listAdd),
		}
	default:
		return nil
	}
}

// timeField is the server-stamped creation time of classes that have one.
func timeField(class entity.Class) string {
	switch class {
	case entity.Alarm:
		return "alarmtime"
	case entity.Log:
		return "logtime"
	default:
		return ""
	}
}

// acknowledgeable reports whether class supports the ack endpoints.
func acknowledgeable(class entity.Class) bool {
	return class == entity.Alarm || class == entity.Log
}
