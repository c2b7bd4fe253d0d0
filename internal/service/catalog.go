package service

// The catalogs are static: content management lives in a separate system and
// the engine only needs stable ids and coin prices to validate commands.

type Algorithm struct {
	ID   string
	Name string
}

type Item struct {
	ID    string
	Name  string
	Price int
}

type Spell struct {
	ID    string
	Name  string
	Price int
}

type Catalog struct {
	algorithms map[string]Algorithm
	items      map[string]Item
	spells     map[string]Spell
}

func NewCatalog() *Catalog {
	c := &Catalog{
		algorithms: make(map[string]Algorithm),
		items:      make(map[string]Item),
		spells:     make(map[string]Spell),
	}
	for _, a := range defaultAlgorithms {
		c.algorithms[a.ID] = a
	}
	for _, i := range defaultItems {
		c.items[i.ID] = i
	}
	for _, s := range defaultSpells {
		c.spells[s.ID] = s
	}
	return c
}

func (c *Catalog) Algorithm(id string) (Algorithm, bool) {
	a, ok := c.algorithms[id]
	return a, ok
}

func (c *Catalog) Item(id string) (Item, bool) {
	i, ok := c.items[id]
	return i, ok
}

func (c *Catalog) Spell(id string) (Spell, bool) {
	s, ok := c.spells[id]
	return s, ok
}

var defaultAlgorithms = []Algorithm{
	{ID: "greedy", Name: "Greedy"},
	{ID: "dp", Name: "Dynamic Programming"},
	{ID: "dfs", Name: "Depth-First Search"},
	{ID: "bfs", Name: "Breadth-First Search"},
	{ID: "binary-search", Name: "Binary Search"},
	{ID: "two-pointers", Name: "Two Pointers"},
	{ID: "union-find", Name: "Union-Find"},
	{ID: "segment-tree", Name: "Segment Tree"},
	{ID: "shortest-path", Name: "Shortest Path"},
	{ID: "backtracking", Name: "Backtracking"},
}

var defaultItems = []Item{
	{ID: "hint", Name: "Hint", Price: 30},
	{ID: "skip-testcase", Name: "Skip Testcase", Price: 50},
	{ID: "extra-time", Name: "Extra Time", Price: 40},
	{ID: "shield", Name: "Shield", Price: 60},
}

var defaultSpells = []Spell{
	{ID: "screen-shake", Name: "Screen Shake", Price: 25},
	{ID: "ink-splash", Name: "Ink Splash", Price: 35},
	{ID: "keyboard-lock", Name: "Keyboard Lock", Price: 50},
}
