package utils

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/oklog/ulid/v2"
)

const (
	promoterCodeLength = 8
	promoterCodeTries  = 10
	letterBytes        = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// GenerateUniquePromoterCode draws random codes until taken reports false.
func GenerateUniquePromoterCode(ctx context.Context, taken func(ctx context.Context, code string) (bool, error)) (string, error) {
	for range promoterCodeTries {
		b := make([]byte, promoterCodeLength)
		for i := range b {
			b[i] = letterBytes[rand.IntN(len(letterBytes))]
		}
		code := string(b)

		exists, err := taken(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free promoter code after %d attempts", promoterCodeTries)
}

// NewPayoutReference returns a sortable, human-quotable payout reference.
func NewPayoutReference() string {
	return "PO-" + ulid.Make().String()
}
