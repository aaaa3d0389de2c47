package testutil

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dbcv/platform/internal/logging"
	internalredis "github.com/dbcv/platform/internal/redis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"
)

func Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
}

// CreateTestRedis starts an in-memory Redis and returns a client bound to it
// along with the server for direct inspection.
func CreateTestRedis(t *testing.T) (internalredis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		client.Close()
	})

	return client, mr
}

func CreateTestRedisClient(t *testing.T) internalredis.Client {
	client, _ := CreateTestRedis(t)
	return client
}

func CreateTestLogger(t *testing.T) *logging.Logger {
	return logging.FromZap(zaptest.NewLogger(t))
}

func RandomString(length int) string {
	b := make([]byte, length+2)
	rand.Read(b)
	return fmt.Sprintf("%x", b)[2 : length+2]
}

func MustMarshalJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
