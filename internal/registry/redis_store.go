package registry

import (
	"context"
	"log"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "wapair:attempts:"

type RedisStore struct {
	client *redis.Client
	ctx    context.Context
	cancel func()
}

func NewRedisStore(host, port, username, password string) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:     host + ":" + port,
		Username: username,
		Password: password,
		DB:       0,
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithCancel(context.Background())

	st := &RedisStore{
		client: client,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := st.client.Ping(ctx).Err(); err != nil {
		cancel()
		return nil, err
	}

	return st, nil
}

func (st *RedisStore) Increment(number string) int {
	n, err := st.client.Incr(st.ctx, redisKeyPrefix+number).Result()
	if err != nil {
		log.Printf("registry: redis incr failed for %s: %v", number, err)
		return 0
	}
	return int(n)
}

func (st *RedisStore) Count(number string) int {
	val, err := st.client.Get(st.ctx, redisKeyPrefix+number).Result()
	if err == redis.Nil {
		return 0
	}
	if err != nil {
		log.Printf("registry: redis get failed for %s: %v", number, err)
		return 0
	}
	n, _ := strconv.Atoi(val)
	return n
}

func (st *RedisStore) Reset(number string) {
	if err := st.client.Del(st.ctx, redisKeyPrefix+number).Err(); err != nil {
		log.Printf("registry: redis del failed for %s: %v", number, err)
	}
}

func (st *RedisStore) All() map[string]int {
	out := make(map[string]int)
	iter := st.client.Scan(st.ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(st.ctx) {
		key := iter.Val()
		number := key[len(redisKeyPrefix):]
		if n := st.Count(number); n > 0 {
			out[number] = n
		}
	}
	if err := iter.Err(); err != nil {
		log.Printf("registry: redis scan error: %v", err)
	}
	return out
}

func (st *RedisStore) Close() error {
	st.cancel()
	return st.client.Close()
}
