package provider

// generated with gopkg.in/reform.v1

import (
	"fmt"
	"strings"

	"gopkg.in/reform.v1"
	"gopkg.in/reform.v1/parse"
)

type terminalOperationTableType struct {
	s parse.StructInfo
	z []interface{}
}

// Schema returns a schema name in SQL database ("checkout").
func (v *terminalOperationTableType) Schema() string {
	return v.s.SQLSchema
}

// Name returns a view or table name in SQL database ("terminal_operations").
func (v *terminalOperationTableType) Name() string {
	return v.s.SQLName
}

// Columns returns a new slice of column names for that view or table in SQL database.
func (v *terminalOperationTableType) Columns() []string {
	return []string{"id", "line_id", "order_uid", "provider", "ext_id", "raw_status", "created_at", "updated_at"}
}

// NewStruct makes a new struct for that view or table.
func (v *terminalOperationTableType) NewStruct() reform.Struct {
	return new(TerminalOperation)
}

// NewRecord makes a new record for that table.
func (v *terminalOperationTableType) NewRecord() reform.Record {
	return new(TerminalOperation)
}

// PKColumnIndex returns an index of primary key column for that table in SQL database.
func (v *terminalOperationTableType) PKColumnIndex() uint {
	return uint(v.s.PKFieldIndex)
}

// TerminalOperationTable represents terminal_operations view or table in SQL database.
var TerminalOperationTable = &terminalOperationTableType{
	s: parse.StructInfo{Type: "TerminalOperation", SQLSchema: "checkout", SQLName: "terminal_operations", Fields: []parse.FieldInfo{{Name: "ID", PKType: "int64", Column: "id"}, {Name: "LineID", PKType: "", Column: "line_id"}, {Name: "OrderUID", PKType: "", Column: "order_uid"}, {Name: "Provider", PKType: "", Column: "provider"}, {Name: "ExtID", PKType: "", Column: "ext_id"}, {Name: "RawStatus", PKType: "", Column: "raw_status"}, {Name: "CreatedAt", PKType: "", Column: "created_at"}, {Name: "UpdatedAt", PKType: "", Column: "updated_at"}}, PKFieldIndex: 0},
	z: new(TerminalOperation).Values(),
}

// String returns a string representation of this struct or record.
func (s TerminalOperation) String() string {
	res := make([]string, 8)
	res[0] = "ID: " + reform.Inspect(s.ID, true)
	res[1] = "LineID: " + reform.Inspect(s.LineID, true)
	res[2] = "OrderUID: " + reform.Inspect(s.OrderUID, true)
	res[3] = "Provider: " + reform.Inspect(s.Provider, true)
	res[4] = "ExtID: " + reform.Inspect(s.ExtID, true)
	res[5] = "RawStatus: " + reform.Inspect(s.RawStatus, true)
	res[6] = "CreatedAt: " + reform.Inspect(s.CreatedAt, true)
	res[7] = "UpdatedAt: " + reform.Inspect(s.UpdatedAt, true)
	return strings.Join(res, ", ")
}

// Values returns a slice of struct or record field values.
// Returned interface{} values are never untyped nils.
func (s *TerminalOperation) Values() []interface{} {
	return []interface{}{
		s.ID,
		s.LineID,
		s.OrderUID,
		s.Provider,
		s.ExtID,
		s.RawStatus,
		s.CreatedAt,
		s.UpdatedAt,
	}
}

// Pointers returns a slice of pointers to struct or record fields.
// Returned interface{} values are never untyped nils.
func (s *TerminalOperation) Pointers() []interface{} {
	return []interface{}{
		&s.ID,
		&s.LineID,
		&s.OrderUID,
		&s.Provider,
		&s.ExtID,
		&s.RawStatus,
		&s.CreatedAt,
		&s.UpdatedAt,
	}
}

// View returns View object for that struct.
func (s *TerminalOperation) View() reform.View {
	return TerminalOperationTable
}

// Table returns Table object for that record.
func (s *TerminalOperation) Table() reform.Table {
	return TerminalOperationTable
}

// PKValue returns a value of primary key for that record.
// Returned interface{} value is never untyped nil.
func (s *TerminalOperation) PKValue() interface{} {
	return s.ID
}

// PKPointer returns a pointer to primary key field for that record.
// Returned interface{} value is never untyped nil.
func (s *TerminalOperation) PKPointer() interface{} {
	return &s.ID
}

// HasPK returns true if record has non-zero primary key set, false otherwise.
func (s *TerminalOperation) HasPK() bool {
	return s.ID != TerminalOperationTable.z[TerminalOperationTable.s.PKFieldIndex]
}

// SetPK sets record primary key.
func (s *TerminalOperation) SetPK(pk interface{}) {
	if i64, ok := pk.(int64); ok {
		s.ID = int64(i64)
	} else {
		s.ID = pk.(int64)
	}
}

// check interfaces
var (
	_ reform.View   = TerminalOperationTable
	_ reform.Struct = new(TerminalOperation)
	_ reform.Table  = TerminalOperationTable
	_ reform.Record = new(TerminalOperation)
	_ fmt.Stringer  = new(TerminalOperation)
)

func init() {
	parse.AssertUpToDate(&TerminalOperationTable.s, new(TerminalOperation))
}
