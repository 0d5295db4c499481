package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestLead_Fields(t *testing.T) {
	typ := reflect.TypeOf(Lead{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:36")
	assertGormTag(t, typ, "Platform", "not null")
	assertGormTag(t, typ, "Platform", "index")
	assertGormTag(t, typ, "ChatID", "index")
	assertGormTag(t, typ, "UserID", "not null")
	assertGormTag(t, typ, "Language", "default:uz")
	assertGormTag(t, typ, "Project", "type:text")
	assertGormTag(t, typ, "Delivered", "index")
	assertGormTag(t, typ, "DeliveryErr", "type:text")
	assertGormTag(t, typ, "CreatedAt", "index")

	assertFieldType(t, typ, "ID", "string")
	assertFieldType(t, typ, "Delivered", "bool")
	assertFieldType(t, typ, "CreatedAt", "time.Time")
}

func TestConversationState_Fields(t *testing.T) {
	typ := reflect.TypeOf(ConversationState{})

	assertGormTag(t, typ, "Key", "column:conv_key")
	assertGormTag(t, typ, "Key", "primaryKey")
	assertGormTag(t, typ, "Stage", "default:idle")
	assertGormTag(t, typ, "Stage", "index")
	assertGormTag(t, typ, "Fields", "type:text")
	assertGormTag(t, typ, "LastSeen", "index")

	assertFieldType(t, typ, "MessageCount", "int")
	assertFieldType(t, typ, "LastSeen", "time.Time")

	if got := (ConversationState{}).TableName(); got != "conversation_states" {
		t.Errorf("TableName() = %q", got)
	}
}

func TestInstanceLock_Fields(t *testing.T) {
	typ := reflect.TypeOf(InstanceLock{})

	assertGormTag(t, typ, "Key", "primaryKey")
	assertGormTag(t, typ, "Key", "size:160")
	assertGormTag(t, typ, "Holder", "not null")
	assertGormTag(t, typ, "LastHeartbeat", "index")

	assertFieldType(t, typ, "AcquiredAt", "time.Time")
	assertFieldType(t, typ, "LastHeartbeat", "time.Time")
}
