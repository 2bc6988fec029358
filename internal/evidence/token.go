package evidence

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "peticao/pkg/domain"
	"peticao/pkg/platform/sentinel"
)

const tokenIssuer = "peticao-verifier"

// downloadClaims are the JWT claims of a custody certificate download
// token: short-lived, bound to one submission.
type downloadClaims struct {
	jwt.RegisteredClaims
}

// IssueDownloadToken creates a signed short-lived token granting
// download access to one submission's custody certificate.
func IssueDownloadToken(signingKey []byte, submissionID id.SubmissionID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := downloadClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   submissionID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("sign download token: %w", err)
	}
	return signed, nil
}

// VerifyDownloadToken validates a download token and returns the
// submission it grants access to. Expired tokens map to
// sentinel.ErrExpired, everything else invalid to a generic error.
func VerifyDownloadToken(signingKey []byte, tokenString string) (id.SubmissionID, error) {
	var claims downloadClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (any, error) { return signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return id.SubmissionID{}, sentinel.ErrExpired
		}
		return id.SubmissionID{}, fmt.Errorf("invalid download token: %w", err)
	}
	return id.ParseSubmissionID(claims.Subject)
}
