package inmemdb

import (
	"sync"

	"github.com/trezcool/schoolportal/core/account"
)

type (
	// DB holds one table per account kind, each with its own primary key sequence.
	DB struct {
		tables map[account.Kind]*accountTable
	}

	accountTable struct {
		sync.RWMutex
		pkCount int64
		table   map[int64]*account.Account
	}
)

func Open() *DB {
	db := &DB{tables: make(map[account.Kind]*accountTable, len(account.Kinds))}
	for _, kind := range account.Kinds {
		db.tables[kind] = &accountTable{table: make(map[int64]*account.Account)}
	}
	return db
}
