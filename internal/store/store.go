package store

import (
	"context"

	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Assignment() Assignment
	Submission() Submission
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db         *gorm.DB
	assignment Assignment
	submission Submission
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		assignment: NewAssignmentStore(db),
		submission: NewSubmissionStore(db),
		db:         db,
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Assignment() Assignment {
	return s.assignment
}

func (s *DataStore) Submission() Submission {
	return s.submission
}

func (s *DataStore) InitialMigration() error {
	if err := s.assignment.InitialMigration(); err != nil {
		return err
	}
	return s.submission.InitialMigration()
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
