package editor

import (
	"sort"
	"strings"
	"sync"
)

// Action is what a key combination asks a session to do
type Action string

const (
	ActionUndo Action = "undo"
	ActionRedo Action = "redo"
)

// DefaultKeymap binds the usual undo/redo combinations
var DefaultKeymap = map[string]Action{
	"ctrl+z":       ActionUndo,
	"meta+z":       ActionUndo,
	"ctrl+y":       ActionRedo,
	"ctrl+shift+z": ActionRedo,
	"meta+shift+z": ActionRedo,
}

var modifierOrder = map[string]int{"ctrl": 0, "alt": 1, "shift": 2, "meta": 3}

var modifierAliases = map[string]string{
	"control": "ctrl",
	"cmd":     "meta",
	"command": "meta",
	"super":   "meta",
	"option":  "alt",
}

// NormalizeCombo lowercases a combination such as "Shift+Ctrl+Z" and orders
// its modifiers as ctrl, alt, shift, meta.
func NormalizeCombo(combo string) string {
	parts := strings.Split(strings.ToLower(strings.ReplaceAll(combo, " ", "")), "+")
	var mods []string
	key := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if alias, ok := modifierAliases[p]; ok {
			p = alias
		}
		if _, ok := modifierOrder[p]; ok {
			mods = append(mods, p)
			continue
		}
		key = p
	}
	sort.Slice(mods, func(i, j int) bool { return modifierOrder[mods[i]] < modifierOrder[mods[j]] })
	if key != "" {
		mods = append(mods, key)
	}
	return strings.Join(mods, "+")
}

type keyListener struct {
	id int
	fn func(Action)
}

// KeyHub routes key combinations to the most recently registered listener,
// which is the focused editor.
type KeyHub struct {
	mu        sync.Mutex
	keymap    map[string]Action
	listeners []keyListener
	next      int
}

// NewKeyHub creates a hub using keymap, or DefaultKeymap when nil
func NewKeyHub(keymap map[string]Action) *KeyHub {
	if keymap == nil {
		keymap = DefaultKeymap
	}
	km := make(map[string]Action, len(keymap))
	for combo, a := range keymap {
		km[NormalizeCombo(combo)] = a
	}
	return &KeyHub{keymap: km}
}

// Resolve returns the action bound to combo
func (h *KeyHub) Resolve(combo string) (Action, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.keymap[NormalizeCombo(combo)]
	return a, ok
}

// Listen registers fn and returns the function that removes it
func (h *KeyHub) Listen(fn func(Action)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	h.listeners = append(h.listeners, keyListener{id: id, fn: fn})

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, l := range h.listeners {
			if l.id == id {
				h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
				return
			}
		}
	}
}

// Dispatch resolves combo and hands the action to the newest listener. It
// reports the action and whether anything handled it.
func (h *KeyHub) Dispatch(combo string) (Action, bool) {
	h.mu.Lock()
	a, ok := h.keymap[NormalizeCombo(combo)]
	var fn func(Action)
	if ok && len(h.listeners) > 0 {
		fn = h.listeners[len(h.listeners)-1].fn
	}
	h.mu.Unlock()

	if fn == nil {
		return a, false
	}
	fn(a)
	return a, true
}

// Listeners returns the number of registered listeners
func (h *KeyHub) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}
