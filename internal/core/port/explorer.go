package port

import "context"

// ColumnDescriptor describes one column as recorded in the table catalog.
type ColumnDescriptor struct {
	Name         string  `json:"name"`
	DeclaredType string  `json:"declared_type"`
	Nullable     bool    `json:"nullable"`
	IsPrimaryKey bool    `json:"is_primary_key"`
	DefaultValue *string `json:"default_value,omitempty"`
}

// TableDescriptor is the full catalog view of a single table, columns in
// declaration order.
type TableDescriptor struct {
	Name    string             `json:"name"`
	Columns []ColumnDescriptor `json:"columns"`
}

// SchemaExplorer reads table and column metadata from the database catalog.
type SchemaExplorer interface {
	// ListTables returns user table names in catalog declaration order,
	// excluding engine-internal tables.
	ListTables(ctx context.Context) ([]string, error)
	DescribeTable(ctx context.Context, name string) (*TableDescriptor, error)
}
