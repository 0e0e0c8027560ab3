package supervisor

import (
	"strconv"
	"strings"
	"time"
)

// ParseQueues parses the `queues` configuration string (spec.md §6.4) into
// one PoolConfig per semicolon-separated pool. Each pool is a
// comma-separated list of "name[:concurrency]" groups. "*" means "all
// queues" (an empty QueueNames list, meaning unfiltered). A "+" prefix on a
// queue name marks ordered handling (the prefix is stripped from the name — FIFO
// within a queue already falls out of the canonical candidate ordering); a
// "-" prefix excludes that name from an otherwise-unfiltered pool.
func ParseQueues(spec string, defaultConcurrency int, pollInterval time.Duration, defaultFetchWindow int) []PoolConfig {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = "*"
	}

	var pools []PoolConfig
	for i, poolSpec := range strings.Split(spec, ";") {
		pool := parsePool(poolSpec, defaultConcurrency)
		if pool.Name == "" {
			pool.Name = "pool-" + strconv.Itoa(i)
		}
		pool.PollInterval = pollInterval
		pool.FetchWindow = defaultFetchWindow
		pools = append(pools, pool)
	}
	return pools
}

func parsePool(poolSpec string, defaultConcurrency int) PoolConfig {
	var names, excluded []string
	totalConcurrency := 0

	for _, group := range strings.Split(poolSpec, ",") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}

		name, concurrency := group, defaultConcurrency
		if idx := strings.LastIndex(name, ":"); idx >= 0 {
			if n, err := strconv.Atoi(name[idx+1:]); err == nil {
				concurrency = n
				name = name[:idx]
			}
		}

		switch {
		case name == "*":
			// all queues, unfiltered
		case strings.HasPrefix(name, "-"):
			excluded = append(excluded, strings.TrimPrefix(name, "-"))
			continue
		case strings.HasPrefix(name, "+"):
			names = append(names, strings.TrimPrefix(name, "+"))
		default:
			names = append(names, name)
		}
		totalConcurrency += concurrency
	}

	if totalConcurrency <= 0 {
		totalConcurrency = defaultConcurrency
	}

	poolName := strings.Join(names, "_")
	if poolName == "" {
		poolName = "all"
	}

	return PoolConfig{
		Name:           poolName,
		QueueNames:     names,
		ExcludedQueues: excluded,
		Concurrency:    totalConcurrency,
	}
}
