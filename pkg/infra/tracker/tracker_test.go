package tracker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/railguard/railguard/pkg/infra/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordViolation(t *testing.T) {
	db, mock := redismock.NewClientMock()
	tr := tracker.NewRedisTracker(db)

	mock.ExpectTxPipeline()
	mock.ExpectIncr("guard:violations:session-1").SetVal(1)
	mock.ExpectExpire("guard:violations:session-1", time.Minute).SetVal(true)
	mock.ExpectTxPipelineExec()

	err := tr.RecordViolation(context.Background(), "session-1", time.Minute)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordViolation_DefaultTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	tr := tracker.NewRedisTracker(db)

	mock.ExpectTxPipeline()
	mock.ExpectIncr("guard:violations:10.0.0.1").SetVal(2)
	mock.ExpectExpire("guard:violations:10.0.0.1", tracker.DefaultExpiration).SetVal(true)
	mock.ExpectTxPipelineExec()

	err := tr.RecordViolation(context.Background(), "10.0.0.1", 0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordViolation_EmptyClientID(t *testing.T) {
	db, _ := redismock.NewClientMock()
	tr := tracker.NewRedisTracker(db)

	err := tr.RecordViolation(context.Background(), "", time.Minute)
	assert.Error(t, err)
}

func TestRecordViolation_RedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	tr := tracker.NewRedisTracker(db)

	mock.ExpectTxPipeline()
	mock.ExpectIncr("guard:violations:session-1").SetErr(errors.New("connection lost"))

	err := tr.RecordViolation(context.Background(), "session-1", time.Minute)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record violation")
}

func TestViolationCount(t *testing.T) {
	db, mock := redismock.NewClientMock()
	tr := tracker.NewRedisTracker(db)

	mock.ExpectGet("guard:violations:session-1").SetVal("3")

	count, err := tr.ViolationCount(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestViolationCount_Missing(t *testing.T) {
	db, mock := redismock.NewClientMock()
	tr := tracker.NewRedisTracker(db)

	mock.ExpectGet("guard:violations:unknown").RedisNil()

	count, err := tr.ViolationCount(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestViolationCount_RedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	tr := tracker.NewRedisTracker(db)

	mock.ExpectGet("guard:violations:session-1").SetErr(errors.New("connection lost"))

	_, err := tr.ViolationCount(context.Background(), "session-1")
	assert.Error(t, err)
}
