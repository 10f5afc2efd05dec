package story

import "fmt"

// Finding is a non-fatal authoring problem.
type Finding struct {
	Node    NodeID `json:"node"`
	Message string `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s", f.Node, f.Message)
}

// Lint reports authoring problems that do not stop a graph from loading.
// Findings are ordered by node id.
func Lint(g *Graph) []Finding {
	var findings []Finding
	reachable := g.reachable()

	for _, id := range g.NodeIDs() {
		n := g.nodes[id]

		if !reachable[id] && id != g.gameOverID {
			findings = append(findings, Finding{Node: id, Message: "unreachable from the entry node"})
		}
		if n.IsEnding && len(n.Choices) > 0 {
			findings = append(findings, Finding{Node: id, Message: "marked as ending but declares choices that will never be offered"})
		}
		for i, c := range n.Choices {
			if c.Requires != "" && c.Requires == c.HideIf {
				findings = append(findings, Finding{
					Node:    id,
					Message: fmt.Sprintf("choice %d both requires and hides on %q, so it can never be offered", i, c.Requires),
				})
			}
		}
		if n.Jumpscare != nil && n.Jumpscare.Image == "" && n.Jumpscare.Sound == "" {
			findings = append(findings, Finding{Node: id, Message: "jumpscare has neither image nor sound"})
		}
	}
	return findings
}

// reachable walks every edge from the entry node, ignoring item conditions.
func (g *Graph) reachable() map[NodeID]bool {
	seen := map[NodeID]bool{g.entryID: true}
	queue := []NodeID{g.entryID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n, ok := g.nodes[id]
		if !ok || n.IsEnding {
			continue
		}
		for _, c := range n.Choices {
			if !seen[c.To] {
				seen[c.To] = true
				queue = append(queue, c.To)
			}
		}
	}
	return seen
}
