package adapter

import (
	"database/sql"
	"fmt"

	_ "github.com/denisenkom/go-mssqldb"
)

var sqlServerDialect = dialect{
	name: "sqlserver",
	sampleQuery: func(table string) string {
		return fmt.Sprintf("SELECT TOP (@p1) * FROM [%s]", table)
	},
	existsQuery: func(table, column string) string {
		return fmt.Sprintf("SELECT TOP 1 1 FROM [%s] WHERE [%s] = @p1", table, column)
	},
}

// NewSQLServerSource 创建 SQL Server 记录源
func NewSQLServerSource(dsn string) (*SQLSource, error) {
	db, err := openSQL("sqlserver", dsn)
	if err != nil {
		return nil, err
	}
	return newSQLSource(db, sqlServerDialect), nil
}

// NewSQLServerSourceFromDB 复用已有连接
func NewSQLServerSourceFromDB(db *sql.DB) *SQLSource {
	return newSQLSource(db, sqlServerDialect)
}
