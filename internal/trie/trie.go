// Package trie implements a rune-keyed prefix index over candidate subwords.
package trie

type node struct {
	children map[rune]*node
	isToken  bool
	freq     int
}

// Trie maps complete tokens to a frequency and answers prefix walks.
type Trie struct {
	root node
	size int
}

// New returns an empty trie.
func New() *Trie {
	return &Trie{}
}

// Insert adds token with freq, overwriting the frequency of an existing token.
func (t *Trie) Insert(token string, freq int) {
	if token == "" {
		return
	}

	n := &t.root
	for _, r := range token {
		if n.children == nil {
			n.children = make(map[rune]*node)
		}

		child, ok := n.children[r]
		if !ok {
			child = &node{}
			n.children[r] = child
		}
		n = child
	}

	if !n.isToken {
		t.size++
	}
	n.isToken = true
	n.freq = freq
}

// Lookup returns the frequency of token and whether it is a complete token.
func (t *Trie) Lookup(token string) (int, bool) {
	n := t.find(token)
	if n == nil || !n.isToken {
		return 0, false
	}

	return n.freq, true
}

// Contains reports whether token is a complete token.
func (t *Trie) Contains(token string) bool {
	_, ok := t.Lookup(token)
	return ok
}

// Remove unmarks token and prunes branches left without tokens.
func (t *Trie) Remove(token string) bool {
	if token == "" {
		return false
	}

	removed := remove(&t.root, []rune(token))
	if removed {
		t.size--
	}

	return removed
}

func remove(n *node, key []rune) bool {
	if len(key) == 0 {
		if !n.isToken {
			return false
		}

		n.isToken = false
		n.freq = 0

		return true
	}

	child, ok := n.children[key[0]]
	if !ok || !remove(child, key[1:]) {
		return false
	}

	if !child.isToken && len(child.children) == 0 {
		delete(n.children, key[0])
	}

	return true
}

// Len returns the number of complete tokens.
func (t *Trie) Len() int { return t.size }

// Walk visits every complete token that starts at text[start] and is at most
// maxLen runes long, shortest first. fn receives the exclusive end offset and
// the token frequency; returning false stops the walk.
func (t *Trie) Walk(text []rune, start, maxLen int, fn func(end, freq int) bool) {
	n := &t.root
	limit := min(len(text), start+maxLen)

	for i := start; i < limit; i++ {
		child, ok := n.children[text[i]]
		if !ok {
			return
		}
		n = child

		if n.isToken && !fn(i+1, n.freq) {
			return
		}
	}
}

// LongestPrefix returns the length in runes of the longest complete token
// that prefixes text.
func (t *Trie) LongestPrefix(text string) int {
	best := 0
	runes := []rune(text)
	t.Walk(runes, 0, len(runes), func(end, _ int) bool {
		best = end
		return true
	})

	return best
}

func (t *Trie) find(token string) *node {
	n := &t.root
	for _, r := range token {
		child, ok := n.children[r]
		if !ok {
			return nil
		}
		n = child
	}

	return n
}
