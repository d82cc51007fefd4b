package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrServiceIDRequired, http.StatusBadRequest},
		{ErrInvalidToken, http.StatusUnauthorized},
		{ErrStaffOnly, http.StatusForbidden},
		{ErrTicketNotFound, http.StatusNotFound},
		{ErrActiveTicketExists, http.StatusConflict},
		{ErrCounterNotInService, http.StatusConflict},
		{ErrSearchDisabled, http.StatusServiceUnavailable},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), "%v", tc.err)
	}
}

func TestWrappedDomainErrorKeepsKind(t *testing.T) {
	err := fmt.Errorf("create ticket: %w", ErrActiveTicketExists)

	assert.True(t, errors.Is(err, ErrConflict))
	assert.True(t, IsDomain(err))
	assert.False(t, IsDomain(errors.New("boom")))
	assert.Equal(t, "You already have an active ticket", ErrActiveTicketExists.Error())
	assert.Equal(t, "You already have an active ticket", Message(err, "Internal server error"))
	assert.Equal(t, "Internal server error", Message(errors.New("boom"), "Internal server error"))
}
