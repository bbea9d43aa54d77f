package types

type ReadingStatus string

const (
	StatusCurrent ReadingStatus = "Currently Reading"
	StatusPast    ReadingStatus = "Past Read"
	StatusRented  ReadingStatus = "On Rent"
	StatusOwned   ReadingStatus = "Owned"
)

func (s ReadingStatus) Valid() bool {
	switch s {
	case StatusCurrent, StatusPast, StatusRented, StatusOwned:
		return true
	}

	return false
}

type BookCondition string

const (
	ConditionNew     BookCondition = "New"
	ConditionGood    BookCondition = "Good"
	ConditionVintage BookCondition = "Vintage"
	ConditionWorn    BookCondition = "Worn"
)

// Book is one copy on somebody's shelf or one row of the community catalog.
// Ids are unique only within their originating pool; catalog ids carry a
// "catalog-" prefix and shelf ids are uuids, so the pools cannot collide.
type Book struct {
	Id            string        `json:"id"`
	Title         string        `json:"title"`
	Author        string        `json:"author"`
	Isbn          string        `json:"isbn,omitempty"`
	Genre         string        `json:"genre"`
	Summary       string        `json:"summary"`
	Cover         string        `json:"cover_url"`
	Status        ReadingStatus `json:"status"`
	Condition     BookCondition `json:"condition,omitempty"`
	ConditionNote string        `json:"condition_note,omitempty"`
	Language      string        `json:"language"`
	AddedAt       int64         `json:"added_at"`
}

type Resident struct {
	Id      string   `json:"id"`
	Name    string   `json:"name"`
	Avatar  string   `json:"avatar_url"`
	Society string   `json:"society"`
	Public  bool     `json:"public"`
	Friends []string `json:"friend_ids"`
}
