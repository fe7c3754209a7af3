// Package optimizer 提供课表优化算法
package optimizer

import (
	"math/rand"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/placement"
)

// MoveType 邻域移动类型
type MoveType int

const (
	MoveRelocateSlot MoveType = iota // 将一个课时移到随机时段
	MoveRelocateRoom                 // 将一个课时换到随机兼容教室
	MoveSwapSlots                    // 交换两个课时的时段
	MoveRepair                       // 将冲突课时移到空闲组合
)

// NeighborhoodGenerator 邻域生成器
type NeighborhoodGenerator struct {
	rng         *rand.Rand
	pool        *placement.Pool
	moveWeights []moveWeight
}

type moveWeight struct {
	move   MoveType
	weight float64
}

// NewNeighborhoodGenerator 创建邻域生成器
func NewNeighborhoodGenerator(pool *placement.Pool, rng *rand.Rand) *NeighborhoodGenerator {
	return &NeighborhoodGenerator{
		rng:  rng,
		pool: pool,
		moveWeights: []moveWeight{
			{MoveRelocateSlot, 0.35}, // 35% 换时段
			{MoveRelocateRoom, 0.15}, // 15% 换教室
			{MoveSwapSlots, 0.25},    // 25% 交换时段
			{MoveRepair, 0.25},       // 25% 冲突修复
		},
	}
}

// GenerateNeighbor 生成邻域解，适应度由调用方计算
func (n *NeighborhoodGenerator) GenerateNeighbor(current *Solution) *Solution {
	if current == nil || len(current.Schedule) == 0 {
		return nil
	}

	next := current.Schedule.Clone()
	switch n.selectMoveType() {
	case MoveRelocateSlot:
		i := n.rng.Intn(len(next))
		next[i].Slot = n.pool.RandomSlot(n.rng, next[i])
	case MoveRelocateRoom:
		i := n.rng.Intn(len(next))
		next[i].RoomID = n.pool.RandomRoom(n.rng, next[i])
	case MoveSwapSlots:
		if len(next) < 2 {
			return nil
		}
		i := n.rng.Intn(len(next))
		j := n.rng.Intn(len(next) - 1)
		if j >= i {
			j++
		}
		next[i].Slot, next[j].Slot = next[j].Slot, next[i].Slot
	case MoveRepair:
		if !n.repair(next) {
			return nil
		}
	}
	return &Solution{Schedule: next}
}

// selectMoveType 按权重选择移动类型
func (n *NeighborhoodGenerator) selectMoveType() MoveType {
	r := n.rng.Float64()
	acc := 0.0
	for _, mw := range n.moveWeights {
		acc += mw.weight
		if r < acc {
			return mw.move
		}
	}
	return n.moveWeights[len(n.moveWeights)-1].move
}

// repair 随机选一个冲突课时，移到随机一个空闲的 (教室, 时段) 组合
func (n *NeighborhoodGenerator) repair(s model.Schedule) bool {
	conflicting := conflictingIndexes(s)
	if len(conflicting) == 0 {
		return false
	}
	i := conflicting[n.rng.Intn(len(conflicting))]
	moves := n.pool.FreeSlots(placement.OccupancyOf(s, i), s[i])
	if len(moves) == 0 {
		return false
	}
	s[i] = moves[n.rng.Intn(len(moves))]
	return true
}

// conflictingIndexes 返回与前面分配共用教室或教师时段的下标
func conflictingIndexes(s model.Schedule) []int {
	type key struct {
		id   string
		slot int
	}
	rooms := make(map[key]struct{}, len(s))
	teachers := make(map[key]struct{}, len(s))
	var out []int
	for i := range s {
		a := &s[i]
		clash := false
		rk := key{a.RoomID, a.Slot.Index}
		if _, ok := rooms[rk]; ok && a.RoomID != "" {
			clash = true
		}
		rooms[rk] = struct{}{}
		if a.HasTeacher() {
			tk := key{a.TeacherID, a.Slot.Index}
			if _, ok := teachers[tk]; ok {
				clash = true
			}
			teachers[tk] = struct{}{}
		}
		if clash {
			out = append(out, i)
		}
	}
	return out
}
