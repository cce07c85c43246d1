package store

import (
	"gorm.io/gorm"
)

type Store interface {
	Job() Job
	Account() Account
	Lease() Lease
	Close() error
}

type DataStore struct {
	db      *gorm.DB
	job     Job
	account Account
	lease   Lease
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:      db,
		job:     NewJobStore(db),
		account: NewAccountStore(db),
		lease:   NewLeaseStore(db),
	}
}

func (s *DataStore) Job() Job {
	return s.job
}

func (s *DataStore) Account() Account {
	return s.account
}

func (s *DataStore) Lease() Lease {
	return s.lease
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
