package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/requestcontext"
)

// JWTValidator validates console operator tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*OperatorClaims, error)
}

// OperatorClaims are the claims of a console operator token.
type OperatorClaims struct {
	OperatorID string   `json:"operator_id,omitempty"`
	Roles      []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Operator returns the operator identifier, falling back to the subject.
func (c *OperatorClaims) Operator() string {
	if c.OperatorID != "" {
		return c.OperatorID
	}
	return c.Subject
}

// HMACValidator validates HS256 operator tokens issued by the console.
type HMACValidator struct {
	signingKey []byte
	issuer     string
	audience   string
	leeway     time.Duration
}

func NewHMACValidator(signingKey, issuer, audience string) *HMACValidator {
	return &HMACValidator{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		leeway:     30 * time.Second,
	}
}

func (v *HMACValidator) ValidateToken(tokenString string) (*OperatorClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(*jwt.Token) (any, error) {
		return v.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*OperatorClaims)
	if !ok || !parsed.Valid || claims.Operator() == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// IssueToken signs an operator token. Used by tests and local tooling.
func (v *HMACValidator) IssueToken(operatorID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := OperatorClaims{
		OperatorID: operatorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireOperator rejects requests without a valid operator bearer token and
// puts the operator id on the context.
func RequireOperator(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}
			ctx = requestcontext.WithOperatorID(ctx, claims.Operator())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
