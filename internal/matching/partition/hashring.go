// Package partition implements partitionForTaskQueue (spec §4.2): routing
// a task queue name to one of a fixed pool of partitions via consistent
// hashing, so queue objects for the same name always land on the same
// partition across the Matching fleet.
package partition

import (
	"hash/fnv"
	"sort"
	"strconv"
)

// Ring is a consistent-hash ring over a fixed set of partition IDs, each
// represented by `replicas` virtual points so additions/removals only
// reshuffle a small fraction of keys.
type Ring struct {
	points     []uint32
	pointOwner map[uint32]int32
	replicas   int
}

func NewRing(replicas int) *Ring {
	return &Ring{
		points:     make([]uint32, 0),
		pointOwner: make(map[uint32]int32),
		replicas:   replicas,
	}
}

// Add places `replicas` virtual points for partitionID on the ring,
// probing forward on hash collision.
func (r *Ring) Add(partitionID int32) {
	for i := 0; i < r.replicas; i++ {
		point := r.hash(strconv.Itoa(int(partitionID)) + "-" + strconv.Itoa(i))
		for {
			if _, taken := r.pointOwner[point]; !taken {
				break
			}
			point++
		}
		r.points = append(r.points, point)
		r.pointOwner[point] = partitionID
	}
	sort.Slice(r.points, func(i, j int) bool { return r.points[i] < r.points[j] })
}

// Get returns the partition owning key: the first ring point at or past
// key's hash, wrapping around to the first point if key hashes past the
// last one.
func (r *Ring) Get(key string) int32 {
	if len(r.points) == 0 {
		return 0
	}
	h := r.hash(key)
	idx := sort.Search(len(r.points), func(i int) bool { return r.points[i] >= h })
	if idx == len(r.points) {
		idx = 0
	}
	return r.pointOwner[r.points[idx]]
}

func (r *Ring) hash(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32()
}

// Remove strips every virtual point belonging to partitionID from the ring.
func (r *Ring) Remove(partitionID int32) {
	remaining := make([]uint32, 0, len(r.points))
	for _, point := range r.points {
		if r.pointOwner[point] == partitionID {
			delete(r.pointOwner, point)
			continue
		}
		remaining = append(remaining, point)
	}
	r.points = remaining
}
