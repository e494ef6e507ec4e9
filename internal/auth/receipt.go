package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ReceiptExpiry is how long a submitter has to view the confirmation page.
const ReceiptExpiry = 10 * time.Minute

// ReceiptClaims prove that a submission was accepted. Each receipt has its
// own JTI so it can be consumed exactly once.
type ReceiptClaims struct {
	OfferingID int64 `json:"offering_id"`
	jwt.RegisteredClaims
}

// IssueReceipt signs a receipt for a stored offering.
func IssueReceipt(secret string, offeringID int64) (string, *ReceiptClaims, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", nil, fmt.Errorf("generating JTI: %w", err)
	}

	now := time.Now()
	claims := &ReceiptClaims{
		OfferingID: offeringID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Audience:  jwt.ClaimStrings{AudienceReceipt},
			ExpiresAt: jwt.NewNumericDate(now.Add(ReceiptExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := sign(secret, claims)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ValidateReceipt checks a receipt's signature, audience and expiry. It does
// not know whether the receipt was already used.
func ValidateReceipt(secret, tokenStr string) (*ReceiptClaims, error) {
	claims := &ReceiptClaims{}
	if err := parse(secret, tokenStr, AudienceReceipt, claims); err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("receipt has no id")
	}
	return claims, nil
}
