package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hcmut-dev/rollcall-backend/internal/model"
	"github.com/hcmut-dev/rollcall-backend/internal/response"
)

// RequireRole checks that the authenticated caller has the given role.
// Must be mounted after RequireAuth.
func RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if claims.Role != role {
			response.AbortFail(c, http.StatusForbidden, roleErrCode(role))
			return
		}

		c.Next()
	}
}

// RequireAnyRole admits callers holding at least one of the given roles.
func RequireAnyRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}

		response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
	}
}

func roleErrCode(role model.Role) response.ErrCode {
	switch role {
	case model.RoleStudent:
		return response.ErrStudentAccessOnly
	case model.RoleLecturer:
		return response.ErrLecturerAccessOnly
	case model.RoleAdmin:
		return response.ErrAdminAccessOnly
	default:
		return response.ErrForbidden
	}
}
