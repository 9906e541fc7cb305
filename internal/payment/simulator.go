package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"strings"

	"github.com/fjod/billflow/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Roller picks a number in [0, 100] for each simulated payment.
type Roller interface {
	Roll() int
}

type RandomRoll struct{}

func (RandomRoll) Roll() int {
	return rand.Intn(101) // Intn is exclusive of the upper bound
}

// DefaultSuccessRate is the share of simulated payments, in percent, that succeed.
const DefaultSuccessRate = 95

// Simulator is a development widget that resolves as soon as it opens.
// Successful payments carry a signature the backend can verify with the same secret.
type Simulator struct {
	secret      []byte
	roller      Roller
	successRate int
	log         *zap.Logger
}

func NewSimulator(secret string, roller Roller, log *zap.Logger) *Simulator {
	if roller == nil {
		roller = RandomRoll{}
	}
	return &Simulator{
		secret:      []byte(secret),
		roller:      roller,
		successRate: DefaultSuccessRate,
		log:         logger.OrNop(log),
	}
}

func (s *Simulator) Open(ctx context.Context, opts Options) (Handle, error) {
	if opts.ProviderOrderID == "" {
		return nil, ErrMissingProviderID
	}
	p := NewPending(opts)
	log := logger.WithTrace(ctx, s.log).With(zap.String("provider_order_id", opts.ProviderOrderID))

	if !succeeds(s.roller.Roll(), s.successRate) {
		log.Info("simulated payment dismissed")
		p.Dismiss()
		return p, nil
	}

	paymentID := "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	p.Succeed(Result{
		ProviderOrderID: opts.ProviderOrderID,
		PaymentID:       paymentID,
		Signature:       Sign(s.secret, opts.ProviderOrderID, paymentID),
	})
	log.Info("simulated payment succeeded", zap.String("payment_id", paymentID))
	return p, nil
}

func succeeds(roll, rate int) bool {
	return roll < rate
}

// Sign computes the provider signature: hex HMAC-SHA256 of "orderID|paymentID".
func Sign(secret []byte, providerOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(providerOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifySignature(secret []byte, r Result) bool {
	expected := Sign(secret, r.ProviderOrderID, r.PaymentID)
	return hmac.Equal([]byte(expected), []byte(r.Signature))
}
