package treefile

// NodeEntry is one bookmark or folder in the tree YAML. Entries with
// children and no url are folders.
type NodeEntry struct {
	ID       string      `yaml:"id"`
	Title    string      `yaml:"title"`
	URL      string      `yaml:"url"`
	Notes    string      `yaml:"notes"`
	Tags     []string    `yaml:"tags"`
	Children []NodeEntry `yaml:"children"`
}

// TreeConfig is the root structure for the bookmark tree file.
type TreeConfig struct {
	Roots []NodeEntry `yaml:"roots"`
}
