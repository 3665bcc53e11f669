package validate

import (
	"sort"
	"strings"

	"github.com/jingkaihe/corpuscheck/pkg/corpus"
)

const (
	unvisited = iota
	visiting
	visited
)

// linkGraph maps each document path to the distinct documents it links to,
// in first-link order. Links that do not resolve to a record are dropped.
func linkGraph(records []*corpus.DocumentRecord) (map[string][]string, []string) {
	known := make(map[string]bool, len(records))
	nodes := make([]string, 0, len(records))
	for _, r := range records {
		known[r.Path] = true
		nodes = append(nodes, r.Path)
	}
	sort.Strings(nodes)

	adj := make(map[string][]string, len(records))
	for _, r := range records {
		seen := make(map[string]bool)
		for _, target := range r.OutboundLinks {
			resolved := ResolveLink(r.Path, target)
			if !known[resolved] || seen[resolved] {
				continue
			}
			seen[resolved] = true
			adj[r.Path] = append(adj[r.Path], resolved)
		}
	}

	return adj, nodes
}

// Cycles detects reference cycles with an iterative depth-first search.
// Each back-edge produces one CyclicReference issue whose Cycle lists the
// documents along the cycle, starting and ending with the same path.
func Cycles(records []*corpus.DocumentRecord) []Issue {
	adj, nodes := linkGraph(records)

	type frame struct {
		node string
		next int
	}

	state := make(map[string]int, len(nodes))
	var issues []Issue

	for _, start := range nodes {
		if state[start] != unvisited {
			continue
		}

		stack := []frame{{node: start}}
		depth := map[string]int{start: 0}
		state[start] = visiting

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			edges := adj[top.node]

			if top.next >= len(edges) {
				state[top.node] = visited
				delete(depth, top.node)
				stack = stack[:len(stack)-1]
				continue
			}

			next := edges[top.next]
			top.next++

			switch state[next] {
			case visiting:
				cycle := make([]string, 0, len(stack)-depth[next]+1)
				for _, f := range stack[depth[next]:] {
					cycle = append(cycle, f.node)
				}
				cycle = append(cycle, next)
				issues = append(issues, cyclicReference(cycle))
			case unvisited:
				state[next] = visiting
				depth[next] = len(stack)
				stack = append(stack, frame{node: next})
			}
		}
	}

	SortIssues(issues)
	return issues
}

// DuplicateNames reports skills or agents whose frontmatter name is already
// used by another document of the same kind. The first document in path
// order keeps the name; every later one gets an issue.
func DuplicateNames(records []*corpus.DocumentRecord) []Issue {
	sorted := append([]*corpus.DocumentRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Path < sorted[j].Path
	})

	owners := map[corpus.Kind]map[string]string{
		corpus.KindSkill: {},
		corpus.KindAgent: {},
	}

	var issues []Issue
	for _, r := range sorted {
		names, ok := owners[r.Kind]
		if !ok {
			continue
		}
		name := strings.TrimSpace(r.Name())
		if name == "" {
			continue
		}
		if first, exists := names[name]; exists {
			issues = append(issues, duplicateName(r.Path, name, first))
			continue
		}
		names[name] = r.Path
	}

	SortIssues(issues)
	return issues
}
