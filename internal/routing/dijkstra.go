package routing

import (
	"container/heap"
	"context"

	"github.com/jengzang/safety-backend-go/internal/graph"
)

type pqItem struct {
	node int64
	dist float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].dist == pq[j].dist {
		return pq[i].node < pq[j].node
	}
	return pq[i].dist < pq[j].dist
}

func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue) Push(x any) { *pq = append(*pq, x.(pqItem)) }

func (pq *priorityQueue) Pop() any {
	old := *pq
	item := old[len(old)-1]
	*pq = old[:len(old)-1]
	return item
}

// ShortestPath finds the minimum-cost path from src to dst. costs is indexed
// like g.Edges and must be non-negative. It returns the visited nodes and the
// index of the edge taken between each consecutive pair; among parallel edges
// the cheapest (lowest index on ties) is the one reported.
func ShortestPath(ctx context.Context, g *graph.StreetGraph, costs []float64, src, dst int64) ([]int64, []int, error) {
	if _, ok := g.Nodes[src]; !ok {
		return nil, nil, ErrNoPath
	}
	if _, ok := g.Nodes[dst]; !ok {
		return nil, nil, ErrNoPath
	}
	if src == dst {
		return []int64{src}, nil, nil
	}

	dist := map[int64]float64{src: 0}
	via := make(map[int64]int) // node -> index of the edge that reached it
	done := make(map[int64]bool)

	pq := &priorityQueue{{node: src, dist: 0}}
	settled := 0
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if done[cur.node] {
			continue
		}
		done[cur.node] = true
		if cur.node == dst {
			break
		}

		settled++
		if settled%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}

		for _, idx := range g.Outgoing(cur.node) {
			e := g.Edges[idx]
			if done[e.To] {
				continue
			}
			nd := cur.dist + costs[idx]
			if old, seen := dist[e.To]; !seen || nd < old {
				dist[e.To] = nd
				via[e.To] = idx
				heap.Push(pq, pqItem{node: e.To, dist: nd})
			}
		}
	}

	if !done[dst] {
		return nil, nil, ErrNoPath
	}

	var edges []int
	for n := dst; n != src; {
		idx := via[n]
		edges = append(edges, idx)
		n = g.Edges[idx].From
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}

	nodes := make([]int64, 0, len(edges)+1)
	nodes = append(nodes, src)
	for _, idx := range edges {
		nodes = append(nodes, g.Edges[idx].To)
	}
	return nodes, edges, nil
}

// PathCost sums the costs of the given edges
func PathCost(costs []float64, edges []int) float64 {
	total := 0.0
	for _, idx := range edges {
		total += costs[idx]
	}
	return total
}
