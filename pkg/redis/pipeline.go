package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Pipeline queues writes and sends them in one round trip on Exec. Queued
// calls never fail; errors surface from Exec. There is no cross-command
// atomicity.
type Pipeline struct {
	pipe redis.Pipeliner
}

func (p *Pipeline) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) > 0 {
		p.pipe.SAdd(ctx, key, toArgs(members)...)
	}
	return nil
}

func (p *Pipeline) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) > 0 {
		p.pipe.SRem(ctx, key, toArgs(members)...)
	}
	return nil
}

func (p *Pipeline) ZAdd(ctx context.Context, key, member string, score float64) error {
	p.pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: member})
	return nil
}

func (p *Pipeline) ZRem(ctx context.Context, key, member string) error {
	p.pipe.ZRem(ctx, key, member)
	return nil
}

func (p *Pipeline) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) > 0 {
		p.pipe.HSet(ctx, key, hashArgs(fields)...)
	}
	return nil
}

func (p *Pipeline) Del(ctx context.Context, keys ...string) error {
	if len(keys) > 0 {
		p.pipe.Del(ctx, keys...)
	}
	return nil
}

// Len returns the number of queued commands.
func (p *Pipeline) Len() int {
	return p.pipe.Len()
}

// Exec flushes every queued command and returns the first failure.
func (p *Pipeline) Exec(ctx context.Context) error {
	if p.pipe.Len() == 0 {
		return nil
	}
	_, err := p.pipe.Exec(ctx)
	return err
}
