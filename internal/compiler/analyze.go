package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/sprig/internal/ir"
)

// Warning levels.
const (
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// Warning is a static finding about a compiled program. None of them stop
// a build.
type Warning struct {
	Path    []string `json:"path,omitempty"`
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// Analyze inspects a program's rule graph and reports:
//   - recursive rule groups (info; recursion is bounded by maxdepth)
//   - fallback targets not visible from the rule's own scope (warning;
//     building them fails at run time)
//   - rule bodies made only of terminals that parse as an operator
//     string, as "#R{x1}" gives (warning)
//   - rule groups no reference reaches from the top level (info)
//
// Recursion is found with Tarjan's algorithm over the group graph: one
// node per rule group, an edge for every reference that resolves to
// another group.
func Analyze(p *ir.Program) []Warning {
	g := buildGroupGraph(p)

	var warnings []Warning
	for _, scc := range tarjanSCC(g.edges) {
		if len(scc) > 1 || hasSelfLoop(scc[0], g.edges) {
			warnings = append(warnings, recursionWarning(scc, g.edges))
		}
	}

	for _, r := range p.Rules {
		if r.IsRoot() || r.Fallback == "" {
			continue
		}
		if _, _, ok := p.Lookup(r.ID, r.Fallback); !ok {
			warnings = append(warnings, Warning{
				Path:    []string{p.Path(r.ID)},
				Message: fmt.Sprintf("fallback %q of rule %s does not name a rule in scope", r.Fallback, p.Path(r.ID)),
				Level:   LevelWarning,
			})
		}
	}

	for _, r := range p.Rules {
		if text, ok := bodyAsTransform(p, r); ok {
			name := p.Path(r.ID)
			warnings = append(warnings, Warning{
				Path: []string{name},
				Message: fmt.Sprintf(`body of rule %s is the terminal list %q, which reads as a transform; `+
					`the "{" after a rule name opens its body, so write #%s { {%s} ... }`, name, text, r.Name, text),
				Level: LevelWarning,
			})
		}
	}

	reached := g.reachable(rootNode)
	for _, node := range g.nodes {
		if node != rootNode && !reached[node] {
			warnings = append(warnings, Warning{
				Path:    []string{node},
				Message: fmt.Sprintf("rule %s is never referenced", node),
				Level:   LevelInfo,
			})
		}
	}

	return warnings
}

// bodyAsTransform returns the text of r's body when it holds nothing but
// bare terminals that together parse as an operator string.
func bodyAsTransform(p *ir.Program, r *ir.Rule) (string, bool) {
	if r.IsRoot() || len(r.Body) == 0 {
		return "", false
	}
	labels := make([]string, 0, len(r.Body))
	for _, n := range r.Body {
		ref, ok := n.(*ir.Reference)
		if !ok || ref.HasParam {
			return "", false
		}
		if _, _, ok := p.Lookup(r.ID, ref.Label); ok {
			return "", false
		}
		labels = append(labels, ref.Label)
	}
	text := strings.Join(labels, " ")
	if _, err := parseOperator(text, noVars, nil); err != nil {
		return "", false
	}
	return text, true
}

func noVars(string) (float64, bool) { return 0, false }

const rootNode = "<root>"

// groupGraph maps a group path ("Tree", "Tree/Leaf") to the groups its
// rules reference.
type groupGraph struct {
	nodes []string
	edges map[string][]string
}

func groupName(p *ir.Program, key ir.GroupKey) string {
	if parent := p.Path(key.Scope); parent != "" {
		return parent + "/" + key.Name
	}
	return key.Name
}

func buildGroupGraph(p *ir.Program) *groupGraph {
	g := &groupGraph{edges: make(map[string][]string)}
	seen := make(map[string]bool)
	addNode := func(n string) {
		if !seen[n] {
			seen[n] = true
			g.nodes = append(g.nodes, n)
			g.edges[n] = nil
		}
	}

	addNode(rootNode)
	for _, r := range p.Rules {
		from := rootNode
		if !r.IsRoot() {
			from = groupName(p, ir.GroupKey{Scope: r.Parent, Name: r.Name})
			addNode(from)
		}
		for _, n := range r.Body {
			ref, ok := n.(*ir.Reference)
			if !ok {
				continue
			}
			key, _, ok := p.Lookup(r.ID, ref.Label)
			if !ok {
				continue
			}
			to := groupName(p, key)
			addNode(to)
			if !contains(g.edges[from], to) {
				g.edges[from] = append(g.edges[from], to)
			}
		}
		if r.Fallback != "" {
			if key, _, ok := p.Lookup(r.ID, r.Fallback); ok {
				to := groupName(p, key)
				addNode(to)
				if !contains(g.edges[from], to) {
					g.edges[from] = append(g.edges[from], to)
				}
			}
		}
	}
	return g
}

func (g *groupGraph) reachable(start string) map[string]bool {
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, m := range g.edges[n] {
			if !seen[m] {
				seen[m] = true
				queue = append(queue, m)
			}
		}
	}
	return seen
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func hasSelfLoop(node string, edges map[string][]string) bool {
	return contains(edges[node], node)
}

// tarjanSCC finds strongly connected components. Nodes are visited in
// sorted order so the result is deterministic.
func tarjanSCC(edges map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(edges))
	for n := range edges {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

// recursionWarning describes one SCC. A self-loop reads "R → R".
func recursionWarning(scc []string, edges map[string][]string) Warning {
	if len(scc) == 1 {
		return Warning{
			Path:    []string{scc[0], scc[0]},
			Message: fmt.Sprintf("rule %s is recursive; depth is bounded by its maxdepth", scc[0]),
			Level:   LevelInfo,
		}
	}
	path := cyclePath(scc, edges)
	return Warning{
		Path:    path,
		Message: fmt.Sprintf("rules recurse through %s; depth is bounded by maxdepth", strings.Join(path, " → ")),
		Level:   LevelInfo,
	}
}

// cyclePath walks SCC members from the first until it returns to it.
func cyclePath(scc []string, edges map[string][]string) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	path := []string{start}
	visited := map[string]bool{start: true}
	for current := start; ; {
		next := ""
		for _, w := range edges[current] {
			if members[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		current = next
	}
}
