package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evently/ticketing/internal/entity"
	"github.com/evently/ticketing/internal/transport/middleware"
)

func authedContext(t *testing.T, userID string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if userID != "" {
		c.Request.Header.Set("X-User-ID", userID)
	}
	middleware.Identity()(c)
	return c
}

func TestResolveBuyerID(t *testing.T) {
	tests := []struct {
		name    string
		authID  string
		claimed string
		want    string
		wantErr error
	}{
		{name: "authenticated id wins", authID: "buyer-1", claimed: "", want: "buyer-1"},
		{name: "matching claim accepted", authID: "buyer-1", claimed: "buyer-1", want: "buyer-1"},
		{name: "conflicting claim rejected", authID: "buyer-1", claimed: "buyer-2", wantErr: entity.ErrForbidden},
		{name: "anonymous falls back to claim", authID: "", claimed: "buyer-2", want: "buyer-2"},
		{name: "nothing resolves to empty", authID: "", claimed: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := authedContext(t, tt.authID)

			got, err := resolveBuyerID(c, tt.claimed)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
