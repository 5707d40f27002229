package otp

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"gatekeeper/config"
	"gatekeeper/internal/domain/service"
	"gatekeeper/internal/errors"
)

// hotpService derives codes from a time counter, RFC 4226 style. No state is
// written anywhere: the same (subject, counter) pair always yields the same
// code, and single-use is enforced by the caller consuming the enrollment
// entry the code belongs to.
type hotpService struct {
	secret []byte
	step   time.Duration
	skew   int // accepted counter steps on either side of now
	clock  service.Clock
}

// NewHOTPService is the constructor for hotpService.
func NewHOTPService(cfg *config.Config, clock service.Clock) (service.OTPService, error) {
	if cfg.OTP.Secret == "" {
		return nil, errors.New("otp secret must be provided for the hotp strategy")
	}

	return &hotpService{
		secret: []byte(cfg.OTP.Secret),
		step:   cfg.OTP.Step,
		skew:   1,
		clock:  clock,
	}, nil
}

// Generate produces the code for the subject at the current counter.
func (s *hotpService) Generate(_ context.Context, subject string) (string, error) {
	return s.code(s.subjectKey(subject), s.counterAt(s.clock.Now())), nil
}

// Verify recomputes the code at the current counter and its neighbors so a
// code issued near a step boundary still checks out.
func (s *hotpService) Verify(_ context.Context, subject, code string) (bool, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != digits {
		return false, nil
	}

	key := s.subjectKey(subject)
	base := s.counterAt(s.clock.Now())
	for step := -s.skew; step <= s.skew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(s.code(key, counter)), []byte(trimmed)) == 1 {
			return true, nil
		}
	}

	return false, nil
}

// subjectKey binds the shared secret to one subject so codes for different
// emails never collide.
func (s *hotpService) subjectKey(subject string) []byte {
	mac := hmac.New(sha1.New, s.secret)
	_, _ = mac.Write([]byte(strings.ToLower(subject)))

	return mac.Sum(nil)
}

func (s *hotpService) counterAt(now time.Time) int64 {
	return now.Unix() / int64(s.step.Seconds())
}

// code computes the HOTP value with dynamic truncation (RFC 4226 §5.3).
func (s *hotpService) code(key []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod)
}
