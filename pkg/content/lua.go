package content

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
)

// collector accumulates definitions while a Lua file runs.
type collector struct {
	items     []any
	quests    []any
	dialogues []any
	questions []any
	enemies   []any
	chests    []any
	quizNPCs  []any
	spawns    []any
}

// LoadLua runs one Lua content file in a sandboxed VM and decodes the
// definitions it declares. The VM is discarded afterwards.
func LoadLua(path string) (*Bundle, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "rawset", "rawget", "rawequal", "collectgarbage"} {
		L.SetGlobal(name, lua.LNil)
	}

	coll := &collector{}
	registerAPI(L, coll)

	if err := L.DoFile(path); err != nil {
		return nil, fmt.Errorf("executing %s: %w", filepath.Base(path), err)
	}

	doc := map[string]any{
		"items":     coll.items,
		"quests":    coll.quests,
		"dialogues": coll.dialogues,
		"questions": coll.questions,
		"enemies":   coll.enemies,
		"chests":    coll.chests,
		"quiz_npcs": coll.quizNPCs,
		"spawns":    coll.spawns,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return &b, nil
}

func registerAPI(L *lua.LState, coll *collector) {
	// Item { id = 1, name = "Gold" }
	L.SetGlobal("Item", plain(L, &coll.items))
	// Enemy { type_id = 2, name = "Wolf", ... }
	L.SetGlobal("Enemy", plain(L, &coll.enemies))
	// Spawn { type_id = 2, x = 10, y = 4 }
	L.SetGlobal("Spawn", plain(L, &coll.spawns))

	// Quest "id" { title = "...", objectives = { ... } }
	L.SetGlobal("Quest", curried(L, &coll.quests, func(id string, m map[string]any) { m["id"] = id }))
	// Question "id" { prompt = "...", options = { ... } }
	L.SetGlobal("Question", curried(L, &coll.questions, func(id string, m map[string]any) { m["id"] = id }))
	// Chest "id" { x = 0, y = 0, loot = { ... } }
	L.SetGlobal("Chest", curried(L, &coll.chests, func(id string, m map[string]any) { m["id"] = id }))
	// QuizNPC "npc_id" { start_max = "B1" }
	L.SetGlobal("QuizNPC", curried(L, &coll.quizNPCs, func(id string, m map[string]any) { m["npc_id"] = id }))
	// Dialogue "npc_id" { name = "Hilda", lines = { ... } }
	L.SetGlobal("Dialogue", curried(L, &coll.dialogues, func(id string, m map[string]any) {
		npc := map[string]any{"id": id}
		for _, k := range []string{"name", "portrait"} {
			if v, ok := m[k]; ok {
				npc[k] = v
				delete(m, k)
			}
		}
		m["npc"] = npc
	}))
}

func plain(L *lua.LState, dst *[]any) *lua.LFunction {
	return L.NewFunction(func(L *lua.LState) int {
		*dst = append(*dst, toGoValue(L.CheckTable(1)))
		return 0
	})
}

func curried(L *lua.LState, dst *[]any, shape func(id string, m map[string]any)) *lua.LFunction {
	return L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			m, ok := toGoValue(L.CheckTable(1)).(map[string]any)
			if !ok {
				m = map[string]any{}
			}
			shape(id, m)
			*dst = append(*dst, m)
			return 0
		}))
		return 1
	})
}

// toGoValue converts a Lua value to plain Go values suitable for JSON.
// Tables with sequential integer keys become slices.
func toGoValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == float64(int(f)) {
			return int(f)
		}
		return f
	case *lua.LNilType:
		return nil
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if maxN := val.MaxN(); maxN > 0 {
			arr := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				arr = append(arr, toGoValue(val.RawGetInt(i)))
			}
			return arr
		}
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = toGoValue(v)
			}
		})
		if len(m) == 0 {
			return nil
		}
		return m
	default:
		return nil
	}
}
