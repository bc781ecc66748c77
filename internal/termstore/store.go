// Package termstore 维护运行期额外保护词：Redis 集合（可增删）与只读词表文件。
package termstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"typogen/pkg/contract"
)

// DefaultKey: 保护词集合的默认 Redis 键。
const DefaultKey = "typogen:protected"

// Options Redis 连接参数。
type Options struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// setClient: Store 使用的 Redis 命令子集。
type setClient interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Close() error
}

// Store 以 Redis 集合保存保护词。
type Store struct {
	client setClient
	key    string
}

// Open 构造 Store；不做连通性探测，首次命令时才建立连接。
func Open(opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, fmt.Errorf("termstore: %w: redis addr required", contract.ErrInvalidInput)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return newStore(client, opts.Key), nil
}

func newStore(c setClient, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: c, key: key}
}

// Add 写入保护词，返回新增个数。
func (s *Store) Add(ctx context.Context, terms ...string) (int64, error) {
	members, err := members(terms)
	if err != nil {
		return 0, err
	}
	n, err := s.client.SAdd(ctx, s.key, members...).Result()
	if err != nil {
		return 0, fmt.Errorf("termstore: sadd %s: %w", s.key, err)
	}
	return n, nil
}

// Remove 删除保护词，返回实际删除个数。
func (s *Store) Remove(ctx context.Context, terms ...string) (int64, error) {
	members, err := members(terms)
	if err != nil {
		return 0, err
	}
	n, err := s.client.SRem(ctx, s.key, members...).Result()
	if err != nil {
		return 0, fmt.Errorf("termstore: srem %s: %w", s.key, err)
	}
	return n, nil
}

// All 返回全部保护词（字典序）。
func (s *Store) All(ctx context.Context) ([]string, error) {
	out, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("termstore: smembers %s: %w", s.key, err)
	}
	sort.Strings(out)
	return out, nil
}

// Close 释放连接池。
func (s *Store) Close() error { return s.client.Close() }

// members 去除首尾空白并拒绝空集合；词内空白保留（多词保护短语）。
func members(terms []string) ([]interface{}, error) {
	out := make([]interface{}, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("termstore: %w: no terms", contract.ErrInvalidInput)
	}
	return out, nil
}
