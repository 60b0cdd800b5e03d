package quest

// ProgressRecord is the persisted form of one active quest.
type ProgressRecord struct {
	QuestID string `json:"questId"`
	Amounts []int  `json:"amounts"`
}

// Lookup resolves a quest id to its definition.
type Lookup interface {
	Get(id string) (*Definition, bool)
}

// Snapshot captures the active progresses and the handed-in ids.
func (l *Log) Snapshot() ([]ProgressRecord, []string) {
	records := make([]ProgressRecord, 0, len(l.active))
	for _, p := range l.active {
		records = append(records, ProgressRecord{QuestID: p.def.ID, Amounts: p.Amounts()})
	}
	return records, l.HandedIn()
}

// Restore replaces the log with persisted state, then recomputes the
// CollectItem objectives from counts. Unknown quest ids and duplicates
// are skipped and returned. Amounts are clamped to each requirement.
func (l *Log) Restore(records []ProgressRecord, handedIn []string, defs Lookup, counts map[int]int) []string {
	var skipped []string
	l.active = l.active[:0]
	l.handedIn = make(map[string]struct{}, len(handedIn))
	for _, id := range handedIn {
		l.handedIn[id] = struct{}{}
	}
	for _, rec := range records {
		def, ok := defs.Get(rec.QuestID)
		if !ok || l.find(rec.QuestID) >= 0 {
			skipped = append(skipped, rec.QuestID)
			continue
		}
		p := newProgress(def)
		for i := range p.current {
			if i < len(rec.Amounts) {
				p.current[i] = max(0, min(rec.Amounts[i], def.Objectives[i].Required))
			}
		}
		p.recompute(counts)
		l.active = append(l.active, p)
	}
	l.notify()
	return skipped
}
