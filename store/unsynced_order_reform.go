package store

// generated with gopkg.in/reform.v1

import (
	"fmt"
	"strings"

	"gopkg.in/reform.v1"
	"gopkg.in/reform.v1/parse"
)

type unsyncedOrderTableType struct {
	s parse.StructInfo
	z []interface{}
}

// Schema returns a schema name in SQL database ("checkout").
func (v *unsyncedOrderTableType) Schema() string {
	return v.s.SQLSchema
}

// Name returns a view or table name in SQL database ("unsynced_orders").
func (v *unsyncedOrderTableType) Name() string {
	return v.s.SQLName
}

// Columns returns a new slice of column names for that view or table in SQL database.
func (v *unsyncedOrderTableType) Columns() []string {
	return []string{"id", "order_uid", "payload", "created_at", "updated_at"}
}

// NewStruct makes a new struct for that view or table.
func (v *unsyncedOrderTableType) NewStruct() reform.Struct {
	return new(UnsyncedOrder)
}

// NewRecord makes a new record for that table.
func (v *unsyncedOrderTableType) NewRecord() reform.Record {
	return new(UnsyncedOrder)
}

// PKColumnIndex returns an index of primary key column for that table in SQL database.
func (v *unsyncedOrderTableType) PKColumnIndex() uint {
	return uint(v.s.PKFieldIndex)
}

// UnsyncedOrderTable represents unsynced_orders view or table in SQL database.
var UnsyncedOrderTable = &unsyncedOrderTableType{
	s: parse.StructInfo{Type: "UnsyncedOrder", SQLSchema: "checkout", SQLName: "unsynced_orders", Fields: []parse.FieldInfo{{Name: "ID", PKType: "int64", Column: "id"}, {Name: "OrderUID", PKType: "", Column: "order_uid"}, {Name: "Payload", PKType: "", Column: "payload"}, {Name: "CreatedAt", PKType: "", Column: "created_at"}, {Name: "UpdatedAt", PKType: "", Column: "updated_at"}}, PKFieldIndex: 0},
	z: new(UnsyncedOrder).Values(),
}

// String returns a string representation of this struct or record.
func (s UnsyncedOrder) String() string {
	res := make([]string, 5)
	res[0] = "ID: " + reform.Inspect(s.ID, true)
	res[1] = "OrderUID: " + reform.Inspect(s.OrderUID, true)
	res[2] = "Payload: " + reform.Inspect(s.Payload, true)
	res[3] = "CreatedAt: " + reform.Inspect(s.CreatedAt, true)
	res[4] = "UpdatedAt: " + reform.Inspect(s.UpdatedAt, true)
	return strings.Join(res, ", ")
}

// Values returns a slice of struct or record field values.
// Returned interface{} values are never untyped nils.
func (s *UnsyncedOrder) Values() []interface{} {
	return []interface{}{
		s.ID,
		s.OrderUID,
		s.Payload,
		s.CreatedAt,
		s.UpdatedAt,
	}
}

// Pointers returns a slice of pointers to struct or record fields.
// Returned interface{} values are never untyped nils.
func (s *UnsyncedOrder) Pointers() []interface{} {
	return []interface{}{
		&s.ID,
		&s.OrderUID,
		&s.Payload,
		&s.CreatedAt,
		&s.UpdatedAt,
	}
}

// View returns View object for that struct.
func (s *UnsyncedOrder) View() reform.View {
	return UnsyncedOrderTable
}

// Table returns Table object for that record.
func (s *UnsyncedOrder) Table() reform.Table {
	return UnsyncedOrderTable
}

// PKValue returns a value of primary key for that record.
// Returned interface{} value is never untyped nil.
func (s *UnsyncedOrder) PKValue() interface{} {
	return s.ID
}

// PKPointer returns a pointer to primary key field for that record.
// Returned interface{} value is never untyped nil.
func (s *UnsyncedOrder) PKPointer() interface{} {
	return &s.ID
}

// HasPK returns true if record has non-zero primary key set, false otherwise.
func (s *UnsyncedOrder) HasPK() bool {
	return s.ID != UnsyncedOrderTable.z[UnsyncedOrderTable.s.PKFieldIndex]
}

// SetPK sets record primary key.
func (s *UnsyncedOrder) SetPK(pk interface{}) {
	if i64, ok := pk.(int64); ok {
		s.ID = int64(i64)
	} else {
		s.ID = pk.(int64)
	}
}

// check interfaces
var (
	_ reform.View   = UnsyncedOrderTable
	_ reform.Struct = new(UnsyncedOrder)
	_ reform.Table  = UnsyncedOrderTable
	_ reform.Record = new(UnsyncedOrder)
	_ fmt.Stringer  = new(UnsyncedOrder)
)

func init() {
	parse.AssertUpToDate(&UnsyncedOrderTable.s, new(UnsyncedOrder))
}
