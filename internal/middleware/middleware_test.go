package middleware

import (
	"testing"
	"time"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/pkg/logger_i"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestIsValidBearerToken(t *testing.T) {
	log := logger_i.NewLogger("test")
	t.Cleanup(func() { Init(config.ServerSettings{}) })

	Init(config.ServerSettings{AuthToken: "s3cret"})
	assert.True(t, IsValidBearerToken("Bearer s3cret", log))
	assert.False(t, IsValidBearerToken("Bearer nope", log))
	assert.False(t, IsValidBearerToken("s3cret", log))
	assert.False(t, IsValidBearerToken("", log))

	Init(config.ServerSettings{})
	assert.False(t, IsValidBearerToken("Bearer ", log))

	Init(config.ServerSettings{NoAuthBypass: true})
	assert.True(t, IsValidBearerToken("", log))
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(0.001), 1)

	assert.True(t, l.GetLimiter("10.0.0.1").Allow())
	assert.False(t, l.GetLimiter("10.0.0.1").Allow())
	assert.True(t, l.GetLimiter("10.0.0.2").Allow())

	assert.Equal(t, 0, l.Prune(time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 2, l.Prune(time.Millisecond))
	assert.True(t, l.GetLimiter("10.0.0.1").Allow())
}
