package entity

// Attribute types carried by the built-in behaviours, archetype configs and
// the gateway. Domain code is free to define its own Attribute
// implementations alongside these.
const (
	TypePosition AttributeType = "position"
	TypeHealth   AttributeType = "health"
	TypeNick     AttributeType = "nick"
)

// Position is a 2D world position.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (Position) AttributeType() AttributeType { return TypePosition }

// Health tracks current and maximum hit points.
type Health struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

func (Health) AttributeType() AttributeType { return TypeHealth }

// Nick is a display name.
type Nick struct {
	Value string `json:"value"`
}

func (Nick) AttributeType() AttributeType { return TypeNick }
