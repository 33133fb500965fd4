// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livegate/livegate/internal/core"
)

func TestPostgresRecordStore_Insert(t *testing.T) {
	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		record    core.Record
		setupMock func(mock pgxmock.PgxPoolIface)
		wantID    int64
		wantErr   bool
		errMsg    string
	}{
		{
			name: "successful insert",
			record: core.Record{
				Topic:    "stream-42",
				AuthorID: "u-1",
				Author:   "Ada",
				Message:  "hello",
				Type:     core.RecordTypeText,
			},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"id", "created_at"}).
					AddRow(int64(7), createdAt)
				mock.ExpectQuery(`INSERT INTO records`).
					WithArgs("stream-42", "u-1", "Ada", "hello", "text", "").
					WillReturnRows(rows)
			},
			wantID: 7,
		},
		{
			name: "insert with media",
			record: core.Record{
				Topic:    "stream-42",
				AuthorID: "u-1",
				Author:   "Ada",
				Type:     core.RecordTypeImage,
				MediaURL: "https://cdn.example/pic.png",
			},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"id", "created_at"}).
					AddRow(int64(8), createdAt)
				mock.ExpectQuery(`INSERT INTO records`).
					WithArgs("stream-42", "u-1", "Ada", "", "image", "https://cdn.example/pic.png").
					WillReturnRows(rows)
			},
			wantID: 8,
		},
		{
			name:   "database error",
			record: core.Record{Topic: "stream-42", Message: "hello"},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO records`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
			errMsg:  "connection refused",
		},
		{
			name:   "missing schema gets migration hint",
			record: core.Record{Topic: "stream-42", Message: "hello"},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO records`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UndefinedTable})
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			s := NewPostgresRecordStoreWithPool(mock)
			stored, err := s.Insert(context.Background(), tt.record)

			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, stored.ID)
				assert.Equal(t, createdAt, stored.CreatedAt)
				assert.Equal(t, tt.record.Topic, stored.Topic)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestPostgresRecordStore_Recent(t *testing.T) {
	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	columns := []string{"id", "topic", "author_id", "author", "message", "type", "media_url", "created_at"}

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantLen   int
		wantErr   bool
	}{
		{
			name: "returns records ascending",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(columns).
					AddRow(int64(5), "stream-42", "u-1", "Ada", "older", "text", "", createdAt).
					AddRow(int64(6), "stream-42", "u-2", "Grace", "newer", "text", "", createdAt)
				mock.ExpectQuery(`SELECT id, topic, author_id, author, message, type`).
					WithArgs("stream-42", 50).
					WillReturnRows(rows)
			},
			wantLen: 2,
		},
		{
			name: "unknown topic is empty, not an error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, topic, author_id, author, message, type`).
					WithArgs("stream-42", 50).
					WillReturnRows(pgxmock.NewRows(columns))
			},
			wantLen: 0,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, topic, author_id, author, message, type`).
					WithArgs("stream-42", 50).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			s := NewPostgresRecordStoreWithPool(mock)
			records, err := s.Recent(context.Background(), "stream-42", 50)

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.Len(t, records, tt.wantLen)
				if tt.wantLen == 2 {
					assert.Equal(t, int64(5), records[0].ID)
					assert.Equal(t, "older", records[0].Message)
					assert.Equal(t, int64(6), records[1].ID)
					assert.Equal(t, core.RecordTypeText, records[1].Type)
				}
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}
