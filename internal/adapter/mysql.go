package adapter

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name: "mysql",
	sampleQuery: func(table string) string {
		return fmt.Sprintf("SELECT * FROM `%s` LIMIT ?", table)
	},
	existsQuery: func(table, column string) string {
		return fmt.Sprintf("SELECT 1 FROM `%s` WHERE `%s` = ? LIMIT 1", table, column)
	},
}

// NewMySQLSource 创建 MySQL 记录源
func NewMySQLSource(dsn string) (*SQLSource, error) {
	db, err := openSQL("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return newSQLSource(db, mysqlDialect), nil
}

// NewMySQLSourceFromDB 复用已有连接
func NewMySQLSourceFromDB(db *sql.DB) *SQLSource {
	return newSQLSource(db, mysqlDialect)
}
