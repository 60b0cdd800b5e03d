package content

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/questkeeper/pkg/actor"
	"github.com/jwebster45206/questkeeper/pkg/catalog"
	"github.com/jwebster45206/questkeeper/pkg/dialogue"
	"github.com/jwebster45206/questkeeper/pkg/quest"
	"github.com/jwebster45206/questkeeper/pkg/quiz"
	"github.com/jwebster45206/questkeeper/pkg/world"
)

// QuizNPC turns an NPC into a quiz tutor driven by the question bank.
type QuizNPC struct {
	NPCID            string           `json:"npc_id"`
	StartMin         *quiz.Difficulty `json:"start_min,omitempty"`
	StartMax         *quiz.Difficulty `json:"start_max,omitempty"`
	HardCap          *quiz.Difficulty `json:"hard_cap,omitempty"`
	CorrectToLevelUp int              `json:"correct_to_level_up,omitempty"`
	DemoteOnWrong    bool             `json:"demote_on_wrong,omitempty"`
	Type             quiz.Type        `json:"type,omitempty"`
	NoShuffle        bool             `json:"no_shuffle,omitempty"`
}

// DriverConfig applies the overrides to the default progression.
func (q QuizNPC) DriverConfig() quiz.DriverConfig {
	cfg := quiz.DefaultDriverConfig()
	if q.StartMin != nil {
		cfg.StartMin = *q.StartMin
	}
	if q.StartMax != nil {
		cfg.StartMax = *q.StartMax
	}
	if q.HardCap != nil {
		cfg.HardCap = *q.HardCap
	}
	if q.CorrectToLevelUp > 0 {
		cfg.CorrectToLevelUp = q.CorrectToLevelUp
	}
	cfg.DemoteOnWrong = q.DemoteOnWrong
	cfg.Type = q.Type
	cfg.Shuffle = !q.NoShuffle
	return cfg
}

// EnemySpawn places one enemy of TypeID when the world starts.
type EnemySpawn struct {
	TypeID int     `json:"type_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Bundle is all static game content of a world.
type Bundle struct {
	Items     []catalog.Template     `json:"items,omitempty"`
	Quests    []*quest.Definition    `json:"quests,omitempty"`
	Dialogues []*dialogue.Script     `json:"dialogues,omitempty"`
	Questions []*quiz.Question       `json:"questions,omitempty"`
	Enemies   []*actor.EnemyTemplate `json:"enemies,omitempty"`
	Chests    []world.Chest          `json:"chests,omitempty"`
	QuizNPCs  []QuizNPC              `json:"quiz_npcs,omitempty"`
	Spawns    []EnemySpawn           `json:"spawns,omitempty"`
}

func (b *Bundle) merge(o *Bundle) {
	b.Items = append(b.Items, o.Items...)
	b.Quests = append(b.Quests, o.Quests...)
	b.Dialogues = append(b.Dialogues, o.Dialogues...)
	b.Questions = append(b.Questions, o.Questions...)
	b.Enemies = append(b.Enemies, o.Enemies...)
	b.Chests = append(b.Chests, o.Chests...)
	b.QuizNPCs = append(b.QuizNPCs, o.QuizNPCs...)
	b.Spawns = append(b.Spawns, o.Spawns...)
}

// LoadDir reads every .json and .lua file in dir, in name order, into one
// bundle. NPC ids are case-folded so content may refer to them loosely.
func LoadDir(dir string) (*Bundle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read content directory %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".json", ".lua":
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no content files found in %s", dir)
	}
	sort.Strings(names)

	b := &Bundle{}
	for _, name := range names {
		path := filepath.Join(dir, name)
		var part *Bundle
		if strings.HasSuffix(name, ".lua") {
			part, err = LoadLua(path)
		} else {
			part, err = LoadJSON(path)
		}
		if err != nil {
			return nil, err
		}
		b.merge(part)
	}
	b.normalize()
	return b, nil
}

// LoadJSON reads one JSON content file. Unknown fields are rejected.
func LoadJSON(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var b Bundle
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return &b, nil
}

// NormalizeNPCID folds an NPC id to its canonical form.
func NormalizeNPCID(id string) string {
	return cases.Fold().String(strings.TrimSpace(id))
}

// DisplayName derives a readable name from an id such as "old_tanner".
func DisplayName(id string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(id, "_", " "))
}

func (b *Bundle) normalize() {
	for _, s := range b.Dialogues {
		if s.NPC.Name == "" {
			s.NPC.Name = DisplayName(s.NPC.ID)
		}
		s.NPC.ID = NormalizeNPCID(s.NPC.ID)
	}
	for _, d := range b.Quests {
		for i, o := range d.Objectives {
			if t, ok := o.Target.(quest.TalkNPC); ok {
				d.Objectives[i].Target = quest.TalkNPC{NPCID: NormalizeNPCID(t.NPCID)}
			}
		}
	}
	for i := range b.QuizNPCs {
		b.QuizNPCs[i].NPCID = NormalizeNPCID(b.QuizNPCs[i].NPCID)
	}
}

// Catalog builds the item catalog.
func (b *Bundle) Catalog() (*catalog.Catalog, error) {
	return catalog.New(b.Items...)
}

// Registry builds the quest registry.
func (b *Bundle) Registry() (*quest.Registry, error) {
	return quest.NewRegistry(b.Quests...)
}

// QuestionBank builds the quiz question bank.
func (b *Bundle) QuestionBank() *quiz.Bank {
	return quiz.NewBank(b.Questions...)
}

// EnemyTemplates indexes enemy templates by type id.
func (b *Bundle) EnemyTemplates() map[int]*actor.EnemyTemplate {
	out := make(map[int]*actor.EnemyTemplate, len(b.Enemies))
	for _, e := range b.Enemies {
		out[e.TypeID] = e
	}
	return out
}
