package queue

import (
	"testing"

	"communityhub/internal/config"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestRedisConnOpt(t *testing.T) {
	standalone := RedisConnOpt(&config.RedisConfig{Mode: "standalone", Host: "redis", Port: 6380, DB: 2})
	opt, ok := standalone.(asynq.RedisClientOpt)
	require.True(t, ok)
	require.Equal(t, "redis:6380", opt.Addr)
	require.Equal(t, 2, opt.DB)

	sentinel := RedisConnOpt(&config.RedisConfig{Mode: "sentinel", MasterName: "mymaster", SentinelAddrs: []string{"s1:26379"}})
	fo, ok := sentinel.(asynq.RedisFailoverClientOpt)
	require.True(t, ok)
	require.Equal(t, "mymaster", fo.MasterName)

	cluster := RedisConnOpt(&config.RedisConfig{Mode: "cluster", ClusterAddrs: []string{"c1:7000", "c2:7000"}})
	co, ok := cluster.(asynq.RedisClusterClientOpt)
	require.True(t, ok)
	require.Len(t, co.Addrs, 2)
}
