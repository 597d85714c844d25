package domain

// DatabaseDriver represents the type of database engine behind the lookup pool.
type DatabaseDriver string

const (
	DatabaseDriverMySQL     DatabaseDriver = "mysql"
	DatabaseDriverPostgres  DatabaseDriver = "postgres"
	DatabaseDriverSQLite    DatabaseDriver = "sqlite"
	DatabaseDriverSQLServer DatabaseDriver = "sqlserver"
)

// DataTypeName is the configured name of a key or column type.
type DataTypeName string

const (
	DataTypeText      DataTypeName = "TEXT"
	DataTypeNumber    DataTypeName = "NUMBER"
	DataTypeTimestamp DataTypeName = "TIMESTAMP"
)
