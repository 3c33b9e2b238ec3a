package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zakuro-ec/orderpay/internal/apperr"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"bad request", apperr.BadRequest("validateShop", apperr.ReasonShopIsNotActive, "x"), apperr.KindBadRequest},
		{"retry", apperr.Retry("loadData", errors.New("timeout")), apperr.KindRetry},
		{"completed", apperr.Completed("preventMultipleProcessing"), apperr.KindCompleted},
		{"fatal", apperr.Fatal("updateOrder", errors.New("boom")), apperr.KindFatal},
		{"retry failed is fatal", apperr.RetryFailed("checkRetryCount", 4), apperr.KindFatal},
		{"unclassified defaults to fatal", errors.New("surprise"), apperr.KindFatal},
		{"wrapped keeps kind", fmt.Errorf("outer: %w", apperr.Retry("loadData", errors.New("x"))), apperr.KindRetry},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, apperr.KindOf(tc.err))
		})
	}
}

func TestReasonOf(t *testing.T) {
	err := apperr.BadRequest("updateSKUStock", apperr.ReasonOutOfStock, "short")
	assert.Equal(t, apperr.ReasonOutOfStock, apperr.ReasonOf(err))
	assert.Equal(t, apperr.Reason(""), apperr.ReasonOf(errors.New("plain")))
	assert.Equal(t, apperr.ReasonRetryFailed, apperr.ReasonOf(apperr.RetryFailed("checkRetryCount", 5)))
}

func TestClassify(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, apperr.Classify("step", nil))
	})
	t.Run("stamps missing step", func(t *testing.T) {
		e := apperr.Classify("validateSKU", &apperr.Error{Kind: apperr.KindBadRequest})
		assert.Equal(t, "validateSKU", e.Step)
	})
	t.Run("keeps existing step", func(t *testing.T) {
		e := apperr.Classify("other", apperr.Retry("loadData", errors.New("x")))
		assert.Equal(t, "loadData", e.Step)
	})
	t.Run("plain errors become fatal", func(t *testing.T) {
		e := apperr.Classify("updateOrder", errors.New("boom"))
		assert.Equal(t, apperr.KindFatal, e.Kind)
		assert.Equal(t, "updateOrder", e.Step)
	})
}

func TestErrorString(t *testing.T) {
	e := apperr.BadRequest("validateShop", apperr.ReasonShopIsNotActive, "shop s1 is not active")
	assert.Contains(t, e.Error(), "ShopIsNotActive")
	assert.Contains(t, e.Error(), "validateShop")

	wrapped := apperr.Retry("loadData", errors.New("connection reset"))
	assert.Contains(t, wrapped.Error(), "connection reset")
	assert.ErrorIs(t, wrapped, wrapped.Err)
}
