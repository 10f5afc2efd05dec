package story

// NodeID identifies a node in a story graph.
type NodeID string

// ItemID identifies an inventory item.
type ItemID string

const (
	DefaultEntryID    NodeID = "start"       // Where every new game begins
	DefaultGameOverID NodeID = "gameOver_hp" // Forced destination when health runs out
)

// Choice is an edge between two nodes, optionally gated by inventory.
type Choice struct {
	Text     string `json:"text"`
	To       NodeID `json:"to"`
	Requires ItemID `json:"requires,omitempty"` // Offered only while this item is held
	HideIf   ItemID `json:"hideIf,omitempty"`   // Suppressed while this item is held
}

// OnArrive describes the effects applied when a node is entered.
type OnArrive struct {
	AddItem ItemID `json:"addItem,omitempty"`
	Damage  int    `json:"takeDamage,omitempty"`
}

// Jumpscare is a presentation payload. The engine passes it through untouched.
type Jumpscare struct {
	Image string `json:"image"`
	Sound string `json:"sound"`
}

// Node is a single narrative beat.
type Node struct {
	ID        NodeID     `json:"id"`
	Text      string     `json:"text"`
	Choices   []Choice   `json:"choices,omitempty"`
	OnArrive  *OnArrive  `json:"onArrive,omitempty"`
	IsEnding  bool       `json:"isEnding,omitempty"`
	Jumpscare *Jumpscare `json:"jumpScare,omitempty"`
}

// IsTerminal reports whether the playthrough ends at this node. Authored content
// marks endings either with isEnding or by omitting choices, so both count.
func (n *Node) IsTerminal() bool {
	return n.IsEnding || len(n.Choices) == 0
}

// Damage returns the damage dealt on arrival, or zero.
func (n *Node) Damage() int {
	if n.OnArrive == nil {
		return 0
	}
	return n.OnArrive.Damage
}

// GrantedItem returns the item granted on arrival, or "".
func (n *Node) GrantedItem() ItemID {
	if n.OnArrive == nil {
		return ""
	}
	return n.OnArrive.AddItem
}

// Holder is anything that can answer inventory membership.
type Holder interface {
	Has(item ItemID) bool
}

// AvailableChoices returns the choices of node a player holding inv may take,
// in authored order. A choice is available when its requires item is held (or
// absent) and its hideIf item is not held (or absent).
func AvailableChoices(node *Node, inv Holder) []Choice {
	if node == nil {
		return nil
	}
	available := make([]Choice, 0, len(node.Choices))
	for _, c := range node.Choices {
		if c.Requires != "" && !inv.Has(c.Requires) {
			continue
		}
		if c.HideIf != "" && inv.Has(c.HideIf) {
			continue
		}
		available = append(available, c)
	}
	return available
}

// FindAvailable returns the first available choice of node that leads to to.
func FindAvailable(node *Node, inv Holder, to NodeID) (Choice, bool) {
	for _, c := range AvailableChoices(node, inv) {
		if c.To == to {
			return c, true
		}
	}
	return Choice{}, false
}
