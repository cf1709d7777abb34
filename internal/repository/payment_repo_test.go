package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aadiprofessional/edusmart-server/internal/model"
	"github.com/Aadiprofessional/edusmart-server/internal/testutil"
)

func TestPaymentRepository_Transition_OnlyFromPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewPaymentRepository(db)
	user := testutil.TestUser(t, db)
	txn := testutil.TestPayment(t, db, user.ID)

	ok, err := repo.Transition(txn.ID, model.PaymentCompleted, map[string]interface{}{"result_status": "S"})
	require.NoError(t, err)
	assert.True(t, ok)

	// 终态不可再变
	ok, err = repo.Transition(txn.ID, model.PaymentFailed, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.GetByRequestID(txn.PaymentRequestID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, found.Status)
	assert.Equal(t, "S", found.ResultStatus)
}

func TestPaymentRepository_ClaimCreditApplication(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewPaymentRepository(db)
	user := testutil.TestUser(t, db)
	pending := testutil.TestPayment(t, db, user.ID)
	completed := testutil.TestPayment(t, db, user.ID, testutil.WithPaymentStatus(model.PaymentCompleted))

	ok, err := repo.ClaimCreditApplication(pending.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "pending payment cannot be applied")

	ok, err = repo.ClaimCreditApplication(completed.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClaimCreditApplication(completed.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPaymentRepository_ListByUserID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewPaymentRepository(db)
	user := testutil.TestUser(t, db)
	other := testutil.TestUser(t, db)
	plan := testutil.TestPlan(t, db)

	testutil.TestPayment(t, db, user.ID, testutil.ForPlan(plan))
	testutil.TestPayment(t, db, user.ID, testutil.WithPaymentStatus(model.PaymentFailed))
	testutil.TestPayment(t, db, other.ID)

	txns, total, err := repo.ListByUserID(user.ID, 1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, txns, 2)

	failed, total, err := repo.ListByUserID(user.ID, 1, 10, model.PaymentFailed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, failed, 1)
	assert.Equal(t, model.PaymentFailed, failed[0].Status)
}

func TestPaymentRepository_ListUnapplied(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewPaymentRepository(db)
	user := testutil.TestUser(t, db)
	plan := testutil.TestPlan(t, db)

	want := testutil.TestPayment(t, db, user.ID, testutil.ForPlan(plan), testutil.WithPaymentStatus(model.PaymentCompleted))
	testutil.TestPayment(t, db, user.ID, testutil.ForPlan(plan))
	testutil.TestPayment(t, db, user.ID, testutil.WithPaymentStatus(model.PaymentCompleted))

	txns, err := repo.ListUnapplied(10)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, want.ID, txns[0].ID)
}
