package internal

import (
	"time"
)

// Conn is a live client connection as seen by a room.
type Conn interface {
	ID() string
	Send(msg Message[any]) error
	Close(reason string)
}

type Player struct {
	Name      string               `json:"name"`
	Role      PlayerRole           `json:"role"`
	Conn      Conn                 `json:"-"`
	Path      []PathEntry          `json:"path"`
	Inventory map[AdditionType]int `json:"inventory"`
	JoinedAt  time.Time            `json:"joined_at"`

	// Round state
	UsedAddition bool `json:"used_addition"`

	// Surrender freezes the path and turns the player into an observer
	Surrendered   bool      `json:"surrendered"`
	SurrenderedAt time.Time `json:"surrendered_at"`

	// Additions received, drained when earned additions are granted
	Exposure int `json:"exposure"`
}

type PlayerSnapshot struct {
	Name         string               `json:"name"`
	Role         PlayerRole           `json:"role"`
	IsConnected  bool                 `json:"is_connected"`
	IsCreator    bool                 `json:"is_creator"`
	Path         []PathEntry          `json:"path"`
	Inventory    map[AdditionType]int `json:"inventory"`
	Submitted    bool                 `json:"submitted"`
	UsedAddition bool                 `json:"used_addition"`
	Surrendered  bool                 `json:"surrendered"`
}

func NewPlayer(name string, role PlayerRole, now time.Time) *Player {
	return &Player{
		Name:      name,
		Role:      role,
		Inventory: make(map[AdditionType]int),
		JoinedAt:  now,
	}
}

func (p *Player) IsConnected() bool {
	return p.Conn != nil
}

// Active players race; observers and surrendered players only watch.
func (p *Player) Active() bool {
	return p.Role == RolePlayer && !p.Surrendered
}

// CurrentIndex returns the index of the most recent entry that is not cancelled, or -1.
func (p *Player) CurrentIndex() int {
	for i := len(p.Path) - 1; i >= 0; i-- {
		if p.Path[i].Effect != EffectCancelled {
			return i
		}
	}
	return -1
}

func (p *Player) CurrentRef() string {
	if i := p.CurrentIndex(); i >= 0 {
		return p.Path[i].Ref
	}
	return ""
}

// PreviousIndex returns the live entry before index i, or -1.
func (p *Player) PreviousIndex(i int) int {
	for j := i - 1; j >= 0; j-- {
		if p.Path[j].Effect != EffectCancelled {
			return j
		}
	}
	return -1
}

// RecentlyAffected reports whether the last or second-to-last entry carries an addition effect.
func (p *Player) RecentlyAffected() bool {
	n := len(p.Path)
	for i := n - 1; i >= 0 && i >= n-2; i-- {
		if p.Path[i].Effect.FromAddition() {
			return true
		}
	}
	return false
}

// Steps counts live moves after the start entry.
func (p *Player) Steps() int {
	steps := 0
	for _, e := range p.Path {
		switch e.Effect {
		case EffectStart, EffectCancelled, EffectSurrender:
		default:
			steps++
		}
	}
	return steps
}

func (p *Player) TotalInventory() int {
	total := 0
	for _, n := range p.Inventory {
		total += n
	}
	return total
}

func (p *Player) ResetRoundState() {
	p.UsedAddition = false
}

// ResetForLobby clears everything a finished game left on the player.
func (p *Player) ResetForLobby() {
	p.Path = nil
	p.Inventory = make(map[AdditionType]int)
	p.UsedAddition = false
	p.Exposure = 0
	if p.Surrendered {
		p.Surrendered = false
		p.SurrenderedAt = time.Time{}
		p.Role = RolePlayer
	}
}

func (p *Player) Snapshot() PlayerSnapshot {
	path := make([]PathEntry, len(p.Path))
	copy(path, p.Path)
	inventory := make(map[AdditionType]int, len(p.Inventory))
	for k, v := range p.Inventory {
		inventory[k] = v
	}
	return PlayerSnapshot{
		Name:         p.Name,
		Role:         p.Role,
		IsConnected:  p.IsConnected(),
		Path:         path,
		Inventory:    inventory,
		UsedAddition: p.UsedAddition,
		Surrendered:  p.Surrendered,
	}
}
