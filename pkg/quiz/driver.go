package quiz

import (
	"log/slog"
	"math/rand/v2"

	"github.com/jwebster45206/questkeeper/pkg/dialogue"
)

// DriverConfig sets the difficulty band and progression of a Driver.
type DriverConfig struct {
	StartMin         Difficulty
	StartMax         Difficulty
	HardCap          Difficulty
	CorrectToLevelUp int
	DemoteOnWrong    bool
	Type             Type
	Shuffle          bool
	TypingMS         int
}

// DefaultDriverConfig starts at A1..A2 and raises the band every three
// correct answers up to C2.
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{StartMin: A1, StartMax: A2, HardCap: C2, CorrectToLevelUp: 3, Shuffle: true, TypingMS: DefaultTypingMS}
}

// Driver feeds one quiz NPC a new question for every conversation and
// moves the difficulty band with the player's answers. It implements
// dialogue.ScriptProvider and dialogue.Observer and relies on the player
// lock for synchronization.
type Driver struct {
	npcID   string
	bank    *Bank
	cfg     DriverConfig
	rng     *rand.Rand
	logger  *slog.Logger
	curMin  Difficulty
	curMax  Difficulty
	streak  int
	current *Question
}

// NewDriver creates a driver for npcID and picks its first question.
func NewDriver(npcID string, bank *Bank, cfg DriverConfig, rng *rand.Rand, logger *slog.Logger) *Driver {
	if cfg.CorrectToLevelUp < 1 {
		cfg.CorrectToLevelUp = 1
	}
	d := &Driver{
		npcID:  npcID,
		bank:   bank,
		cfg:    cfg,
		rng:    rng,
		logger: logger,
		curMin: cfg.StartMin,
		curMax: cfg.StartMax,
	}
	d.prepare()
	return d
}

// Band returns the current difficulty band.
func (d *Driver) Band() (Difficulty, Difficulty) { return d.curMin, d.curMax }

// Current returns the question the next conversation will ask.
func (d *Driver) Current() *Question { return d.current }

// ScriptFor builds the quiz conversation for the prepared question.
func (d *Driver) ScriptFor(npc dialogue.NPC) (*dialogue.Script, bool) {
	if d.current == nil {
		return nil, false
	}
	var rng *rand.Rand
	if d.cfg.Shuffle {
		rng = d.rng
	}
	s := BuildScript(d.current, npc, rng)
	if s == nil {
		return nil, false
	}
	s.TypingMS = max(0, d.cfg.TypingMS)
	return s, true
}

// DialogueEvent tracks answers given to this driver's NPC.
func (d *Driver) DialogueEvent(ev dialogue.Event) {
	if ev.NPCID != d.npcID || ev.Type != dialogue.EventAnswered {
		return
	}
	d.Answered(ev.Correct)
}

// Answered updates the band and prepares the next question.
func (d *Driver) Answered(correct bool) {
	switch {
	case correct:
		d.streak++
		if d.streak >= d.cfg.CorrectToLevelUp {
			d.streak = 0
			if d.curMax < d.cfg.HardCap {
				d.curMax++
			} else if d.curMin < d.cfg.HardCap {
				d.curMin++
			}
		}
	case d.cfg.DemoteOnWrong:
		d.streak = 0
		if d.curMin > d.cfg.StartMin {
			d.curMin--
		}
		if d.curMax > d.curMin {
			d.curMax = d.curMin
		}
	}
	d.prepare()
}

func (d *Driver) prepare() {
	q := d.bank.Random(d.rng, d.curMin, d.curMax, d.cfg.Type)
	if q == nil {
		d.logger.Warn("No quiz question in band", "npc_id", d.npcID, "min", d.curMin.String(), "max", d.curMax.String())
		return
	}
	d.current = q
}
