package idgen

import (
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const nanoidAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Message returns a time-ordered id for broker messages.
func Message() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Consumer returns a consumer name unique to this process, e.g. "socketapp-3fK9x2Lq".
func Consumer(prefix string) string {
	return prefix + "-" + Nanoid(8)
}

// RequestID returns an id for correlating one HTTP request across logs.
func RequestID() string {
	return Nanoid(21)
}

func Nanoid(size int) string {
	id, err := gonanoid.Generate(nanoidAlphabet, size)
	if err != nil {
		return uuid.New().String()
	}
	return id
}
