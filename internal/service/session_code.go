package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/lms-attendance-api/internal/models"
	"github.com/noah-isme/lms-attendance-api/internal/repository"
)

var errCodesExhausted = errors.New("could not allocate a unique attendance code")

// CodeGenerator produces the opaque token presented as a QR payload.
type CodeGenerator func(issuedAt time.Time) string

// NewCodeGenerator returns codes shaped PREFIX-<unix millis>-<8 hex chars>.
func NewCodeGenerator(prefix string) CodeGenerator {
	if prefix == "" {
		prefix = "ATT"
	}
	return func(issuedAt time.Time) string {
		suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
		return fmt.Sprintf("%s-%d-%s", prefix, issuedAt.UnixMilli(), suffix)
	}
}

type sessionCreator interface {
	Create(ctx context.Context, session *models.Session) error
}

// createWithCode stores session, drawing a new id and code whenever the code
// collides. Other store errors are returned unchanged.
func createWithCode(ctx context.Context, store sessionCreator, codes CodeGenerator, attempts int, session *models.Session) error {
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		session.ID = uuid.NewString()
		session.Code = codes(session.IssuedAt)
		err := store.Create(ctx, session)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrSessionCodeTaken) {
			return err
		}
	}
	return errCodesExhausted
}
