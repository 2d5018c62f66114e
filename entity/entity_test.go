package entity

import (
	"errors"
	"testing"
)

func TestDescriptor_ColumnOrder(t *testing.T) {
	t.Parallel()

	var id int64
	var name, note string
	d := NewDescriptor("widget",
		Col("widget_id", &id).Key(),
		Col("widget_name", &name).Read().Write(),
		Col("widget_note", &note).Write(),
	)
	if err := d.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}

	read := d.ReadColumns()
	if len(read) != 2 || read[0] != "widget_id" || read[1] != "widget_name" {
		t.Fatalf("ReadColumns = %v", read)
	}
	write := d.WriteColumns()
	if len(write) != 2 || write[0] != "widget_name" || write[1] != "widget_note" {
		t.Fatalf("WriteColumns = %v", write)
	}
	if len(d.ReadDests()) != len(read) {
		t.Fatalf("ReadDests length %d != ReadColumns length %d", len(d.ReadDests()), len(read))
	}
}

func TestDescriptor_KeyImpliesReadable(t *testing.T) {
	t.Parallel()

	var id int64
	d := NewDescriptor("widget", Col("widget_id", &id).Key())
	read := d.ReadColumns()
	if len(read) != 1 || read[0] != "widget_id" {
		t.Fatalf("key column should be readable, got %v", read)
	}
	f, err := d.KeyField()
	if err != nil {
		t.Fatalf("KeyField: %v", err)
	}
	if f.Writable() {
		t.Fatalf("key column should not be writable by default")
	}
}

func TestDescriptor_Check_NoKey(t *testing.T) {
	t.Parallel()

	var name string
	d := NewDescriptor("widget", Col("widget_name", &name).Read())
	err := d.Check()
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestDescriptor_Check_TwoKeys(t *testing.T) {
	t.Parallel()

	var a, b int64
	d := NewDescriptor("widget",
		Col("a", &a).Key(),
		Col("b", &b).Key(),
	)
	var se *SchemaError
	if err := d.Check(); !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if _, err := d.KeyField(); !errors.As(err, &se) {
		t.Fatalf("expected SchemaError from KeyField, got %v", err)
	}
}

func TestDescriptor_Check_DuplicateColumn(t *testing.T) {
	t.Parallel()

	var id int64
	var name string
	d := NewDescriptor("widget",
		Col("widget_id", &id).Key(),
		Col("widget_id", &name).Read(),
	)
	var se *SchemaError
	if err := d.Check(); !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestDescriptor_Project(t *testing.T) {
	t.Parallel()

	var id int64
	var name, note string
	d := NewDescriptor("widget",
		Col("widget_id", &id).Key(),
		Col("widget_name", &name).Read(),
		Col("widget_note", &note).Read(),
	)

	d.Project([]string{"widget_note"})
	read := d.ReadColumns()
	if len(read) != 2 || read[0] != "widget_id" || read[1] != "widget_note" {
		t.Fatalf("Project should keep the key and the named columns, got %v", read)
	}
}

func TestField_Value(t *testing.T) {
	t.Parallel()

	id := int64(7)
	tags := []string{"red", "round"}
	if got := Col("id", &id).Value(); got != int64(7) {
		t.Fatalf("Value() = %v, want 7", got)
	}
	got, ok := Col("tags", &tags).Value().([]string)
	if !ok || len(got) != 2 {
		t.Fatalf("Value() = %v, want the slice", got)
	}
}
