package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/dutybill/internal/audit/domain"
	"github.com/smallbiznis/dutybill/internal/audit/repository"
	"github.com/smallbiznis/dutybill/internal/clock"
	"github.com/smallbiznis/dutybill/internal/observability/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (auditdomain.Service, *gorm.DB) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
	})
	return svc, conn
}

func TestRecordAndList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := logger.WithRequestID(context.Background(), "req-1")
	firmID := snowflake.ID(7)
	actor := "  ops-1 "

	require.NoError(t, svc.Record(ctx, nil, auditdomain.Entry{
		FirmID:     &firmID,
		Action:     "bill.generated",
		TargetType: "bill",
		TargetID:   "42",
		Metadata:   map[string]any{"bill_number": "BILL-7-1", "": "dropped"},
	}))
	require.NoError(t, svc.Record(ctx, nil, auditdomain.Entry{
		FirmID:     &firmID,
		ActorType:  auditdomain.ActorTypeUser,
		ActorID:    &actor,
		Action:     "bill.cancelled",
		TargetType: "bill",
		TargetID:   "42",
	}))
	require.NoError(t, svc.Record(ctx, nil, auditdomain.Entry{
		Action:     "bill.generated",
		TargetType: "bill",
		TargetID:   "43",
	}))

	logs, err := svc.ListForTarget(context.Background(), "bill", "42")
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Equal(t, "bill.generated", logs[0].Action)
	assert.Equal(t, "system", logs[0].ActorType)
	assert.Equal(t, "BILL-7-1", logs[0].Metadata["bill_number"])
	assert.Equal(t, "req-1", logs[0].Metadata["request_id"])
	assert.NotContains(t, logs[0].Metadata, "")

	assert.Equal(t, "bill.cancelled", logs[1].Action)
	require.NotNil(t, logs[1].ActorID)
	assert.Equal(t, "ops-1", *logs[1].ActorID)
}

func TestRecordValidates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.Record(ctx, nil, auditdomain.Entry{TargetType: "bill", TargetID: "1"})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)

	err = svc.Record(ctx, nil, auditdomain.Entry{Action: "bill.generated"})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTarget)

	_, err = svc.ListForTarget(ctx, "bill", "")
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTarget)
}

func TestRecordJoinsCallerTransaction(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	err := conn.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, svc.Record(ctx, tx, auditdomain.Entry{
			Action:     "bill.finalized",
			TargetType: "bill",
			TargetID:   "9",
		}))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	logs, err := svc.ListForTarget(ctx, "bill", "9")
	require.NoError(t, err)
	assert.Empty(t, logs)
}
