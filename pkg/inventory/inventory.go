package inventory

import "sort"

// DefaultCapacity is the slot count of a player backpack.
const DefaultCapacity = 24

// DefaultHotbarCapacity is the slot count of a player hotbar.
const DefaultHotbarCapacity = 6

// Stack is an item id with a positive quantity.
type Stack struct {
	ItemID   int `json:"itemId"`
	Quantity int `json:"quantity"`
}

// Entry is the persisted and replicated form of one occupied slot.
type Entry struct {
	ItemID    int `json:"itemId"`
	SlotIndex int `json:"slotIndex"`
	Quantity  int `json:"quantity"`
}

// Inventory is a fixed-capacity list of slots plus an aggregate count per
// item id. The aggregate is rebuilt from the slots after every structural
// change and always equals the per-id sum of slot quantities.
//
// Inventory is not safe for concurrent use; callers serialize access
// through the owning session.
type Inventory struct {
	slots     []*Stack
	counts    map[int]int
	listeners []func()
}

// New creates an empty inventory. A capacity below 1 uses DefaultCapacity.
func New(capacity int) *Inventory {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Inventory{
		slots:  make([]*Stack, capacity),
		counts: make(map[int]int),
	}
}

// OnChange registers fn to run once after each logical mutation.
func (inv *Inventory) OnChange(fn func()) {
	inv.listeners = append(inv.listeners, fn)
}

// Capacity returns the slot count.
func (inv *Inventory) Capacity() int { return len(inv.slots) }

// Add stacks qty onto the first slot holding itemID, otherwise places it in
// the first empty slot. It reports false, leaving the inventory untouched,
// when neither exists. Quantities below 1 are treated as 1.
func (inv *Inventory) Add(itemID, qty int) bool {
	if itemID <= 0 {
		return false
	}
	if qty < 1 {
		qty = 1
	}
	for _, s := range inv.slots {
		if s != nil && s.ItemID == itemID {
			s.Quantity += qty
			inv.changed()
			return true
		}
	}
	idx := inv.FirstEmptySlot()
	if idx < 0 {
		return false
	}
	inv.slots[idx] = &Stack{ItemID: itemID, Quantity: qty}
	inv.changed()
	return true
}

// PlaceInFirstEmpty puts a new stack in the first empty slot without
// merging into existing stacks. It returns the slot used.
func (inv *Inventory) PlaceInFirstEmpty(itemID, qty int) (int, bool) {
	if itemID <= 0 {
		return -1, false
	}
	if qty < 1 {
		qty = 1
	}
	idx := inv.FirstEmptySlot()
	if idx < 0 {
		return -1, false
	}
	inv.slots[idx] = &Stack{ItemID: itemID, Quantity: qty}
	inv.changed()
	return idx, true
}

// TakeSlot empties slot index and returns what it held.
func (inv *Inventory) TakeSlot(index int) (Stack, bool) {
	if index < 0 || index >= len(inv.slots) || inv.slots[index] == nil {
		return Stack{}, false
	}
	s := *inv.slots[index]
	inv.slots[index] = nil
	inv.changed()
	return s, true
}

// CanAccept reports whether Add(itemID, ...) would succeed.
func (inv *Inventory) CanAccept(itemID int) bool {
	return itemID > 0 && (inv.counts[itemID] > 0 || inv.FirstEmptySlot() >= 0)
}

// Remove takes up to amount of itemID out of the slots in index order and
// returns how many were removed. Slots reaching zero become empty.
func (inv *Inventory) Remove(itemID, amount int) int {
	removed := inv.remove(itemID, amount)
	if removed > 0 {
		inv.changed()
	}
	return removed
}

// RemoveAll removes every stack as a single logical operation. Callers are
// expected to check availability first with HasAll.
func (inv *Inventory) RemoveAll(stacks []Stack) int {
	total := 0
	for _, s := range stacks {
		total += inv.remove(s.ItemID, s.Quantity)
	}
	if total > 0 {
		inv.changed()
	}
	return total
}

func (inv *Inventory) remove(itemID, amount int) int {
	removed := 0
	for i, s := range inv.slots {
		if removed >= amount {
			break
		}
		if s == nil || s.ItemID != itemID {
			continue
		}
		take := min(s.Quantity, amount-removed)
		s.Quantity -= take
		removed += take
		if s.Quantity <= 0 {
			inv.slots[i] = nil
		}
	}
	return removed
}

// Count returns the total quantity held of itemID.
func (inv *Inventory) Count(itemID int) int { return inv.counts[itemID] }

// Has reports whether at least amount of itemID is held.
func (inv *Inventory) Has(itemID, amount int) bool { return inv.counts[itemID] >= amount }

// HasAll reports whether every stack is covered, summing repeated ids.
func (inv *Inventory) HasAll(stacks []Stack) bool {
	need := make(map[int]int, len(stacks))
	for _, s := range stacks {
		need[s.ItemID] += s.Quantity
	}
	for id, n := range need {
		if inv.counts[id] < n {
			return false
		}
	}
	return true
}

// Counts returns a copy of the aggregate counts.
func (inv *Inventory) Counts() map[int]int {
	out := make(map[int]int, len(inv.counts))
	for k, v := range inv.counts {
		out[k] = v
	}
	return out
}

// Slot returns the stack at index, if any.
func (inv *Inventory) Slot(index int) (Stack, bool) {
	if index < 0 || index >= len(inv.slots) || inv.slots[index] == nil {
		return Stack{}, false
	}
	return *inv.slots[index], true
}

// FirstEmptySlot returns the lowest empty slot index or -1 when full.
func (inv *Inventory) FirstEmptySlot() int {
	for i, s := range inv.slots {
		if s == nil {
			return i
		}
	}
	return -1
}

// Snapshot lists the occupied slots in ascending slot order.
func (inv *Inventory) Snapshot() []Entry {
	out := make([]Entry, 0, len(inv.slots))
	for i, s := range inv.slots {
		if s != nil {
			out = append(out, Entry{ItemID: s.ItemID, SlotIndex: i, Quantity: s.Quantity})
		}
	}
	return out
}

// Restore replaces the contents with entries, each placed at its own slot
// index. Entries with an out-of-range slot, a non-positive id or quantity,
// or a slot already taken are skipped and returned.
func (inv *Inventory) Restore(entries []Entry) []Entry {
	for i := range inv.slots {
		inv.slots[i] = nil
	}
	var skipped []Entry
	for _, e := range entries {
		if e.SlotIndex < 0 || e.SlotIndex >= len(inv.slots) || e.ItemID <= 0 || e.Quantity <= 0 ||
			inv.slots[e.SlotIndex] != nil {
			skipped = append(skipped, e)
			continue
		}
		inv.slots[e.SlotIndex] = &Stack{ItemID: e.ItemID, Quantity: e.Quantity}
	}
	inv.changed()
	return skipped
}

// Clear empties every slot.
func (inv *Inventory) Clear() {
	inv.Restore(nil)
}

// Columns splits a snapshot into parallel id, slot and quantity arrays.
func Columns(entries []Entry) (ids, slots, qtys []int) {
	ids = make([]int, len(entries))
	slots = make([]int, len(entries))
	qtys = make([]int, len(entries))
	for i, e := range entries {
		ids[i], slots[i], qtys[i] = e.ItemID, e.SlotIndex, e.Quantity
	}
	return ids, slots, qtys
}

// FromColumns rebuilds entries from parallel arrays, truncating to the
// shortest array.
func FromColumns(ids, slots, qtys []int) []Entry {
	n := min(len(ids), len(slots), len(qtys))
	out := make([]Entry, n)
	for i := range n {
		out[i] = Entry{ItemID: ids[i], SlotIndex: slots[i], Quantity: qtys[i]}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotIndex < out[j].SlotIndex })
	return out
}

func (inv *Inventory) changed() {
	clear(inv.counts)
	for _, s := range inv.slots {
		if s != nil {
			inv.counts[s.ItemID] += s.Quantity
		}
	}
	for _, fn := range inv.listeners {
		fn()
	}
}
