package types

type TypeID int

const (
	Invalid TypeID = iota
	Boolean
	Integer
	Float
	Varchar
)

func (t TypeID) String() string {
	switch t {
	case Boolean:
		return "BOOLEAN"
	case Integer:
		return "INTEGER"
	case Float:
		return "FLOAT"
	case Varchar:
		return "VARCHAR"
	default:
		return "INVALID"
	}
}

// Size returns the inlined byte width of the type. Varchar payloads are
// stored out of line, only a 4 byte length prefix is inlined.
func (t TypeID) Size() uint32 {
	switch t {
	case Boolean:
		return 1
	case Integer:
		return 4
	case Float:
		return 4
	case Varchar:
		return 4
	default:
		return 0
	}
}
