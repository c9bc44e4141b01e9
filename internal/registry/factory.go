package registry

import (
	"log"

	"wapair/internal/helper"
)

const (
	EnvRedisHost     = "REDIS_HOST"
	EnvRedisPort     = "REDIS_PORT"
	EnvRedisUser     = "REDIS_USERNAME"
	EnvRedisPassword = "REDIS_PASSWORD"
)

// NewStore picks the counter backend from the environment: Redis when
// REDIS_HOST is set, in-memory otherwise. A failed Redis connection falls
// back to memory instead of refusing to start.
func NewStore() AttemptStore {
	redisHost := helper.GetEnv(EnvRedisHost, "")

	if redisHost != "" {
		redisPort := helper.GetEnv(EnvRedisPort, "6379")
		redisUser := helper.GetEnv(EnvRedisUser, "")
		redisPassword := helper.GetEnv(EnvRedisPassword, "")

		st, err := NewRedisStore(redisHost, redisPort, redisUser, redisPassword)
		if err != nil {
			log.Printf("registry: redis connection failed: %v", err)
			log.Println("registry: falling back to in-memory attempt store")
			return NewMemoryStore()
		}
		log.Printf("registry: using redis attempt store at %s:%s", redisHost, redisPort)
		return st
	}

	log.Println("registry: using in-memory attempt store")
	return NewMemoryStore()
}
