package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
)

const (
	contextClaimsKey = "claims"
	tokenQueryParam  = "token"
)

var (
	errMissingToken = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	errInvalidToken = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	StudentID string `json:"student_id,omitempty"` // -> STUDENT|LEADER PORTAL
}

// UserID identifies the user in messages: the student ID, or the role of staff members.
func (c Claims) UserID() string {
	if c.StudentID != "" {
		return c.StudentID
	}
	return c.Role
}

func (c Claims) IsStaff() bool {
	return core.Contains(auth.StaffRoles, c.Role)
}

// NewClaims returns the claims of a login state.
func NewClaims(conf *core.Config, role, studentID string) *Claims {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.AppName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(conf.Server.JWTExpirationDelta)),
		},
		Role:      role,
		StudentID: studentID,
	}
	claims.Subject = claims.UserID()
	return claims
}

func stateClaims(conf *core.Config, state auth.State) *Claims {
	var studentID string
	if state.CurrentStudent != nil {
		studentID = state.CurrentStudent.ID
	}
	return NewClaims(conf, state.UserType, studentID)
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(tokenStr, secretKey string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

// jwtMiddleware authenticates requests with a bearer token, or a `token` query param (websockets).
func jwtMiddleware(secretKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			tokenStr := ctx.QueryParam(tokenQueryParam)
			if header := ctx.Request().Header.Get(echo.HeaderAuthorization); header != "" {
				scheme, value, ok := strings.Cut(header, " ")
				if !ok || !strings.EqualFold(scheme, "bearer") {
					return errMissingToken
				}
				tokenStr = value
			}
			if tokenStr = strings.TrimSpace(tokenStr); tokenStr == "" {
				return errMissingToken
			}
			claims, err := parseToken(tokenStr, secretKey)
			if err != nil {
				return err
			}
			ctx.Set(contextClaimsKey, *claims)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(Claims); ok {
		return claims, nil
	}
	return Claims{}, errUnauthorized
}
