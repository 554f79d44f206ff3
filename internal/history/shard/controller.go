// Package shard assigns each execution to a fixed shard via a deterministic
// hash over its namespace/workflow identity, and tracks which shards this
// History host currently owns (spec §3 "Shard ownership").
package shard

import (
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/linkflow/engine/internal/history/types"
)

var (
	ErrShardNotOwned = errors.New("shard not owned by this host")
	ErrShardNotFound = errors.New("shard not found")
)

const defaultShardCount = 16

type Shard interface {
	GetID() int32
}

type shardImpl struct {
	id int32
}

func (s *shardImpl) GetID() int32 {
	return s.id
}

type controllerStatus int32

const (
	statusStopped controllerStatus = iota
	statusStarting
	statusRunning
	statusStopping
)

// Controller owns the set of shards this host is currently serving. Shard
// assignment here is static (every shard is owned from Start to Stop); a
// clustered deployment would replace this with lease-based acquisition
// against a coordination store.
type Controller struct {
	numShards int32
	shards    map[int32]Shard
	mu        sync.RWMutex
	status    atomic.Int32
}

func NewController(numShards int32) *Controller {
	if numShards <= 0 {
		numShards = defaultShardCount
	}
	c := &Controller{
		numShards: numShards,
		shards:    make(map[int32]Shard),
	}
	c.status.Store(int32(statusStopped))
	return c
}

func (c *Controller) Start() error {
	if controllerStatus(c.status.Load()) == statusRunning {
		return nil
	}
	c.status.Store(int32(statusStarting))

	c.mu.Lock()
	for i := int32(0); i < c.numShards; i++ {
		c.shards[i] = &shardImpl{id: i}
	}
	c.mu.Unlock()

	c.status.Store(int32(statusRunning))
	return nil
}

func (c *Controller) Stop() {
	if controllerStatus(c.status.Load()) == statusStopped {
		return
	}
	c.status.Store(int32(statusStopping))

	c.mu.Lock()
	c.shards = make(map[int32]Shard)
	c.mu.Unlock()

	c.status.Store(int32(statusStopped))
}

func (c *Controller) GetShardForExecution(key types.ExecutionKey) (Shard, error) {
	shardID := c.GetShardIDForExecution(key)

	c.mu.RLock()
	shard, ok := c.shards[shardID]
	c.mu.RUnlock()

	if !ok {
		return nil, ErrShardNotFound
	}
	return shard, nil
}

// GetShardIDForExecution hashes namespace+workflowID with FNV-1a so the same
// execution always routes to the same shard across restarts and hosts.
func (c *Controller) GetShardIDForExecution(key types.ExecutionKey) int32 {
	h := fnv.New32a()
	h.Write([]byte(key.NamespaceID))
	h.Write([]byte{'/'})
	h.Write([]byte(key.WorkflowID))
	return int32(h.Sum32() % uint32(c.numShards))
}

func (c *Controller) isShardOwned(shardID int32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.shards[shardID]
	return ok
}
